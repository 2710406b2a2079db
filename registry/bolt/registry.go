// Package bolt implements a SessionRegistry kept in a local bbolt file, so
// active sessions survive a restart of a single instance.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
	"go.pilab.hu/solosso/domain"
)

var (
	usersBucket    = []byte("users")    // username -> session id
	sessionsBucket = []byte("sessions") // session id -> session JSON
)

const maxIDAttempts = 3

var errIDCollision = errors.New("session id collision")

// Registry is a bbolt-backed domain.SessionRegistry. bbolt runs one write
// transaction at a time, which makes Register a single atomic step.
type Registry struct {
	db    *bbolt.DB
	now   func() time.Time
	newID func() string
}

// Open opens (or creates) the registry file at path.
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	log.Info().Str("path", path).Msg("Opening bbolt session registry")
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{usersBucket, sessionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Registry{db: db, now: time.Now, newID: uuid.NewString}, nil
}

// Close releases the file lock.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Register implements domain.SessionRegistry.
func (r *Registry) Register(_ context.Context, user domain.User) (*domain.Session, error) {
	var session *domain.Session
	err := r.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(usersBucket)
		sessions := tx.Bucket(sessionsBucket)

		if users.Get([]byte(user.Username)) != nil {
			return domain.ErrDuplicateSession
		}

		id := ""
		for attempt := 0; attempt < maxIDAttempts; attempt++ {
			candidate := r.newID()
			if sessions.Get([]byte(candidate)) == nil {
				id = candidate
				break
			}
		}
		if id == "" {
			return errIDCollision
		}

		session = domain.NewSession(id, user, r.now().UTC())
		blob, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		if err := users.Put([]byte(user.Username), []byte(id)); err != nil {
			return err
		}
		return sessions.Put([]byte(id), blob)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Release implements domain.SessionRegistry.
func (r *Registry) Release(_ context.Context, username string) (*domain.Session, error) {
	var released *domain.Session
	err := r.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(usersBucket)
		sessions := tx.Bucket(sessionsBucket)

		sid := users.Get([]byte(username))
		if sid == nil {
			return nil
		}
		sid = append([]byte(nil), sid...)

		if blob := sessions.Get(sid); blob != nil {
			s, err := decodeSession(blob)
			if err != nil {
				return err
			}
			released = s
		}
		if err := users.Delete([]byte(username)); err != nil {
			return err
		}
		return sessions.Delete(sid)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to release session: %w", err)
	}
	return released, nil
}

// Unregister implements domain.SessionRegistry.
func (r *Registry) Unregister(_ context.Context, sessionID string) error {
	err := r.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(usersBucket)
		sessions := tx.Bucket(sessionsBucket)

		blob := sessions.Get([]byte(sessionID))
		if blob == nil {
			return nil
		}
		s, err := decodeSession(blob)
		if err != nil {
			return err
		}
		if string(users.Get([]byte(s.Username))) == sessionID {
			if err := users.Delete([]byte(s.Username)); err != nil {
				return err
			}
		}
		return sessions.Delete([]byte(sessionID))
	})
	if err != nil {
		return fmt.Errorf("failed to unregister session: %w", err)
	}
	return nil
}

// Lookup implements domain.SessionRegistry.
func (r *Registry) Lookup(_ context.Context, sessionID string) (*domain.Session, error) {
	var session *domain.Session
	err := r.db.View(func(tx *bbolt.Tx) error {
		blob := tx.Bucket(sessionsBucket).Get([]byte(sessionID))
		if blob == nil {
			return domain.ErrSessionNotFound
		}
		s, err := decodeSession(blob)
		session = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Count implements domain.SessionRegistry.
func (r *Registry) Count(_ context.Context) (int, error) {
	n := 0
	err := r.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(sessionsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// decodeSession copies out of blob, which is only valid inside the
// transaction.
func decodeSession(blob []byte) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal(blob, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

var _ domain.SessionRegistry = (*Registry)(nil)
