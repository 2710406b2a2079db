package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{SecretKey: []byte("test-secret"), Issuer: "solosso", KeyID: "k1"})
	require.NoError(t, err)
	iss.now = func() time.Time { return now }
	return iss
}

func TestNewIssuer_RejectsBadConfig(t *testing.T) {
	_, err := NewIssuer(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewIssuer(Config{SecretKey: []byte("k"), Leeway: time.Hour})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMintAndParse(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, now)

	raw, err := iss.Mint("user-1", "session-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := iss.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "session-1", claims.SID)
	assert.Equal(t, "solosso", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, now.Add(time.Hour).Equal(claims.ExpiresAt.Time))

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, &Claims{})
	require.NoError(t, err)
	assert.Equal(t, "k1", parsed.Header["kid"])
}

func TestMint_DistinctTokensForSameSubject(t *testing.T) {
	iss := newTestIssuer(t, time.Now())

	a, err := iss.Mint("user-1", "session-1", time.Hour)
	require.NoError(t, err)
	b, err := iss.Mint("user-1", "session-2", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMint_RejectsNonPositiveTTL(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	_, err := iss.Mint("user-1", "session-1", 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParse_Rejects(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, now)
	raw, err := iss.Mint("user-1", "session-1", time.Hour)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := newTestIssuer(t, now.Add(2*time.Hour))
		_, err := later.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewIssuer(Config{SecretKey: []byte("other"), Issuer: "solosso"})
		require.NoError(t, err)
		other.now = func() time.Time { return now }
		_, err = other.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewIssuer(Config{SecretKey: []byte("test-secret"), Issuer: "someone-else"})
		require.NoError(t, err)
		other.now = func() time.Time { return now }
		_, err = other.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := iss.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing session id", func(t *testing.T) {
		noSID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				Issuer:    "solosso",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = iss.Parse(noSID)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
