package settings

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketSettings = "settings"

// boltStore keeps settings in a bbolt database, one key per setting.
type boltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the database at path.
func NewBoltStore(path string) (Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening settings database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSettings))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing settings database: %w", err)
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Get(key string, v any) error {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSettings))
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		raw = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse setting %q: %w", key, err)
	}
	return nil
}

func (s *boltStore) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to persist setting %q: %w", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSettings)).Put([]byte(key), raw)
	})
}

func (s *boltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSettings)).Delete([]byte(key))
	})
}

func (s *boltStore) Close() error { return s.db.Close() }
