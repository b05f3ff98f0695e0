package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	klog "github.com/wallet3/wallet3d/internal/log"
	"github.com/wallet3/wallet3d/internal/storage"
)

// ErrKeyNotFound is returned when a key record does not exist.
var ErrKeyNotFound = errors.New("key not found in keystore")

// keyPrefix namespaces key records in the database.
const keyPrefix = "key:"

// Store persists Key records in the key-value database.
type Store struct {
	db     storage.DB
	logger zerolog.Logger
}

// NewStore creates a keystore backed by db.
func NewStore(db storage.DB) *Store {
	return &Store{
		db:     db,
		logger: klog.Keystore,
	}
}

func recordKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Save writes a key record.
func (s *Store) Save(k *Key) error {
	data, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	if err := s.db.Put(recordKey(k.ID), data); err != nil {
		return fmt.Errorf("store key %s: %w", k.ID, err)
	}
	s.logger.Info().Str("key_id", k.ID).Str("kind", k.Kind.String()).Msg("Key saved")
	return nil
}

// Get loads a key record by ID.
func (s *Store) Get(id string) (*Key, error) {
	data, err := s.db.Get(recordKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", id, err)
	}
	var k Key
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("parse key %s: %w", id, err)
	}
	return &k, nil
}

// List returns all key records, ordered by creation time.
func (s *Store) List() ([]*Key, error) {
	var keys []*Key
	err := s.db.ForEach([]byte(keyPrefix), func(_, value []byte) error {
		var k Key
		if err := json.Unmarshal(value, &k); err != nil {
			return fmt.Errorf("parse key record: %w", err)
		}
		keys = append(keys, &k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.Before(keys[j].CreatedAt)
	})
	return keys, nil
}

// Delete removes a key record and every piece of derived on-disk state:
// the removed-index set and the address counter.
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	if err := s.db.Delete(recordKey(id)); err != nil {
		return fmt.Errorf("delete key %s: %w", id, err)
	}
	if err := s.db.Delete(RemovedIndexesKey(id)); err != nil {
		return fmt.Errorf("delete removed indexes for %s: %w", id, err)
	}
	if err := s.db.Delete(AddressCountKey(id)); err != nil {
		return fmt.Errorf("delete address count for %s: %w", id, err)
	}
	s.logger.Info().Str("key_id", id).Msg("Key deleted")
	return nil
}
