package memory

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var (
	stateBucket = []byte("scheduler")
	epochKey    = []byte("epoch")
)

// epochStore persists the current epoch in a bolt database.
type epochStore struct {
	db *bolt.DB
}

func openEpochStore(path string) (*epochStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("memory: open state %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: init state %s: %w", path, err)
	}
	return &epochStore{db: db}, nil
}

// load returns the stored epoch, if any.
func (s *epochStore) load() (epoch uint64, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(stateBucket).Get(epochKey)
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("memory: corrupt epoch record (%d bytes)", len(v))
		}
		epoch, ok = binary.BigEndian.Uint64(v), true
		return nil
	})
	return epoch, ok, err
}

func (s *epochStore) save(epoch uint64) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], epoch)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put(epochKey, v[:])
	})
}

func (s *epochStore) close() error { return s.db.Close() }
