// Package storage persists captured traffic and synthesized endpoints so a
// capture session can survive restarts.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/PentesterFlow/OpenScribe/internal/endpoint"
	"github.com/PentesterFlow/OpenScribe/internal/errors"
	"github.com/PentesterFlow/OpenScribe/internal/exchange"
)

var (
	bucketExchanges = []byte("exchanges")
	bucketEndpoints = []byte("endpoints")
)

// Store is the persistence contract the capture engine depends on.
type Store interface {
	// SaveExchange appends one captured exchange in arrival order.
	SaveExchange(ex *exchange.Exchange) error

	// LoadExchanges returns every stored exchange in arrival order.
	LoadExchanges() ([]*exchange.Exchange, error)

	// UpsertEndpoint stores the accumulated record for its endpoint key,
	// replacing any previous snapshot.
	UpsertEndpoint(rec *endpoint.Record) error

	// LoadEndpoints returns every stored endpoint record.
	LoadEndpoints() ([]*endpoint.Record, error)

	// Clear drops all stored exchanges and endpoints.
	Clear() error

	Close() error
}

// BoltStore implements Store on a single BoltDB file. Exchanges are keyed by
// bucket sequence so arrival order survives the round trip.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewStorageError("create directory", dir, err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, errors.NewStorageError("open database", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketExchanges); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketEndpoints)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.NewStorageError("create buckets", path, err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// SaveExchange appends one exchange under the next sequence key.
func (s *BoltStore) SaveExchange(ex *exchange.Exchange) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return errors.NewStorageError("marshal exchange", s.path, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExchanges)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
	if err != nil {
		return errors.NewStorageError("save exchange", s.path, err)
	}
	return nil
}

// LoadExchanges returns the stored exchanges. Entries that no longer
// unmarshal are skipped rather than failing the whole load.
func (s *BoltStore) LoadExchanges() ([]*exchange.Exchange, error) {
	var out []*exchange.Exchange

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketExchanges).ForEach(func(k, v []byte) error {
			var ex exchange.Exchange
			if err := json.Unmarshal(v, &ex); err != nil {
				return nil
			}
			out = append(out, &ex)
			return nil
		})
	})
	if err != nil {
		return nil, errors.NewStorageError("load exchanges", s.path, err)
	}
	return out, nil
}

// UpsertEndpoint stores the record snapshot under its endpoint key.
func (s *BoltStore) UpsertEndpoint(rec *endpoint.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.NewStorageError("marshal endpoint", s.path, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEndpoints).Put([]byte(rec.Key()), data)
	})
	if err != nil {
		return errors.NewStorageError("save endpoint", s.path, err)
	}
	return nil
}

// LoadEndpoints returns the stored endpoint records.
func (s *BoltStore) LoadEndpoints() ([]*endpoint.Record, error) {
	var out []*endpoint.Record

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEndpoints).ForEach(func(k, v []byte) error {
			var rec endpoint.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			out = append(out, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, errors.NewStorageError("load endpoints", s.path, err)
	}
	return out, nil
}

// Clear drops and recreates both buckets.
func (s *BoltStore) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketExchanges, bucketEndpoints} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.NewStorageError("clear", s.path, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
