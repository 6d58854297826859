package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// DefaultFileName is the database file created under the data directory
const DefaultFileName = "rackmon.db"

// bucketRecords holds one nested bucket per config record
var bucketRecords = []byte("records")

var errStale = errors.New("record version changed since read")

// BoltStore keeps config records in a local BoltDB file. Each record is a
// nested bucket named "namespace/name" whose sequence number is the record
// version.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed record store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, DefaultFileName)

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketRecords, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func recordKey(ref types.RecordRef) []byte {
	return []byte(ref.Namespace + "/" + ref.Name)
}

func version(b *bolt.Bucket) string {
	if b == nil {
		return "0"
	}
	return strconv.FormatUint(b.Sequence(), 10)
}

// Read returns the value stored under ref. A record that was never written
// reads as an empty value at version "0".
func (s *BoltStore) Read(_ context.Context, ref types.RecordRef) (*types.Record, error) {
	rec := &types.Record{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords).Bucket(recordKey(ref))
		rec.Version = version(b)
		if b == nil {
			return nil
		}
		if data := b.Get([]byte(ref.Key)); data != nil {
			rec.Value = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, errdefs.SourceFailure(fmt.Sprintf("failed to read record %s", ref), err)
	}
	return rec, nil
}

// Write stores value under ref when the record is still at expected. An empty
// expected version skips the check.
func (s *BoltStore) Write(_ context.Context, ref types.RecordRef, value []byte, expected string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketRecords).CreateBucketIfNotExists(recordKey(ref))
		if err != nil {
			return err
		}
		if expected != "" && expected != version(b) {
			return errStale
		}
		if _, err := b.NextSequence(); err != nil {
			return err
		}
		return b.Put([]byte(ref.Key), value)
	})
	if errors.Is(err, errStale) {
		return errdefs.Conflict(fmt.Sprintf("record %s was modified", ref), err)
	}
	if err != nil {
		return errdefs.SourceFailure(fmt.Sprintf("failed to write record %s", ref), err)
	}
	return nil
}
