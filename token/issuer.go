// Package token mints and verifies the bearer tokens handed out at login.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidConfig = errors.New("invalid token issuer configuration")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims carried by an access token. Subject is the user id.
type Claims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// Config configures an Issuer.
type Config struct {
	SecretKey []byte
	Issuer    string
	KeyID     string
	Leeway    time.Duration
}

// Issuer signs HS256 access tokens.
type Issuer struct {
	secret []byte
	issuer string
	keyID  string
	leeway time.Duration
	now    func() time.Time
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.SecretKey) == 0 {
		return nil, fmt.Errorf("%w: empty secret key", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway out of range", ErrInvalidConfig)
	}
	return &Issuer{
		secret: cfg.SecretKey,
		issuer: cfg.Issuer,
		keyID:  cfg.KeyID,
		leeway: cfg.Leeway,
		now:    time.Now,
	}, nil
}

// Mint returns a signed token for the given subject and session, valid for ttl.
func (i *Issuer) Mint(subjectID, sessionID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("%w: non-positive ttl", ErrInvalidConfig)
	}
	now := i.now()
	claims := Claims{
		SID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if i.keyID != "" {
		tok.Header["kid"] = i.keyID
	}
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and time claims of raw and returns its claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(i.leeway),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.SID == "" {
		return nil, fmt.Errorf("%w: missing subject or session id", ErrInvalidToken)
	}
	return claims, nil
}
