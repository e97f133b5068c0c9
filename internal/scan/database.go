package scan

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const scanBucketName = "scans"

// DB defines the interface for scan record persistence
type DB interface {
	// CreateScan persists a new scan record
	CreateScan(rec *Record) error

	// GetScan retrieves a scan record by ID
	GetScan(id string) (*Record, error)

	// ListScansByOwner returns all scans for an owner, newest first
	ListScansByOwner(ownerID string) ([]*Record, error)

	// UpdateScan applies a mutation to the record identified by id, but only
	// if its current status equals from; otherwise it fails with
	// ErrStatusConflict. The check and the write happen in one transaction so
	// concurrent pipelines cannot both commit from stale reads. Returns the
	// updated record.
	UpdateScan(id string, from Status, apply func(*Record)) (*Record, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(scanBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// CreateScan persists a new scan record
func (b *BoltDB) CreateScan(rec *Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scanBucketName))
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling scan: %w", err)
		}
		return bucket.Put([]byte(rec.ScanID), data)
	})
}

// GetScan retrieves a scan record by ID
func (b *BoltDB) GetScan(id string) (*Record, error) {
	var rec *Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scanBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListScansByOwner returns all scans for an owner, newest first
func (b *BoltDB) ListScansByOwner(ownerID string) ([]*Record, error) {
	scans := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scanBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling scan: %w", err)
			}
			if rec.OwnerID == ownerID {
				scans = append(scans, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})
	return scans, nil
}

// UpdateScan applies a mutation under a compare-and-swap on the prior status.
func (b *BoltDB) UpdateScan(id string, from Status, apply func(*Record)) (*Record, error) {
	var rec *Record
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scanBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("unmarshaling scan: %w", err)
		}
		if rec.Status != from {
			return fmt.Errorf("%w: expected %s, found %s", ErrStatusConflict, from, rec.Status)
		}

		apply(rec)

		updated, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling scan: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
