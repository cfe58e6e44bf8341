package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"parley/internal/types"
)

var (
	bucketTraces   = []byte("traces")
	bucketAppState = []byte("app_state")
	keyAppState    = []byte("state")
)

type bboltRepository struct {
	db       *bolt.DB
	traces   TraceCacheStore
	appState AppStateStore
}

func NewBboltRepository(path string) (Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("repository db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := initBboltSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &bboltRepository{
		db:       db,
		traces:   &bboltTraceCacheStore{db: db},
		appState: &bboltAppStateStore{db: db},
	}, nil
}

func (r *bboltRepository) Traces() TraceCacheStore {
	return r.traces
}

func (r *bboltRepository) AppState() AppStateStore {
	return r.appState
}

func (r *bboltRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func initBboltSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTraces); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketAppState); err != nil {
			return err
		}
		return nil
	})
}

type cachedTrace struct {
	Events  []types.TraceEvent `json:"events"`
	LastSeq int64              `json:"last_seq"`
	SavedAt time.Time          `json:"saved_at"`
}

type bboltTraceCacheStore struct {
	db *bolt.DB
	mu sync.Mutex
}

func (s *bboltTraceCacheStore) Put(ctx context.Context, sessionID string, events []types.TraceEvent, lastSeq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session id is required")
	}
	raw, err := json.Marshal(cachedTrace{
		Events:  events,
		LastSeq: lastSeq,
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTraces)
		if b == nil {
			return errors.New("traces bucket missing")
		}
		return b.Put([]byte(sessionID), raw)
	})
}

func (s *bboltTraceCacheStore) Get(ctx context.Context, sessionID string) ([]types.TraceEvent, int64, bool, error) {
	var (
		cached cachedTrace
		ok     bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTraces)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(sessionID))
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, &cached); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return nil, 0, false, err
	}
	if !ok {
		return nil, 0, false, nil
	}
	return cached.Events, cached.LastSeq, true, nil
}

func (s *bboltTraceCacheStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTraces)
		if b == nil {
			return errors.New("traces bucket missing")
		}
		return b.Delete([]byte(sessionID))
	})
}

type bboltAppStateStore struct {
	db *bolt.DB
}

func (s *bboltAppStateStore) Load(ctx context.Context) (*types.AppState, error) {
	state := &types.AppState{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAppState)
		if b == nil {
			return nil
		}
		raw := b.Get(keyAppState)
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *bboltAppStateStore) Save(ctx context.Context, state *types.AppState) error {
	if state == nil {
		return errors.New("state is required")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAppState)
		if b == nil {
			return errors.New("app state bucket missing")
		}
		return b.Put(keyAppState, raw)
	})
}
