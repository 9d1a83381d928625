// Package bench is not part of the capture database itself: it holds
// alternative row-storage backends used only to benchmark
// internal/column's columnar layout against conventional embedded
// stores, to justify (or eventually revisit) the columnar design.
package bench

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketRows = []byte("rows")

// RowStore stores one JSON-marshalled row per key in a single BoltDB
// bucket, one marshalled value per entity the way a BoltDB-backed
// cluster-state store would. It is the row-oriented baseline: Average
// must deserialize every row to read delta_ns, unlike the column
// store's column-only scan.
type RowStore struct {
	db *bolt.DB
}

type boltRow struct {
	Name    string `json:"name"`
	StartNs int64  `json:"start_ns"`
	DeltaNs int64  `json:"delta_ns"`
}

// OpenRowStore opens (creating if necessary) a BoltDB file under dir.
func OpenRowStore(dir string) (*RowStore, error) {
	db, err := bolt.Open(filepath.Join(dir, "rows.bolt"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("bench: open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRows)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bench: create bucket: %w", err)
	}
	return &RowStore{db: db}, nil
}

// Append assigns the next sequential key and stores the row as JSON.
func (s *RowStore) Append(name string, startNs, deltaNs int64) (uint64, error) {
	var id uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq - 1
		data, err := json.Marshal(boltRow{Name: name, StartNs: startNs, DeltaNs: deltaNs})
		if err != nil {
			return err
		}
		return b.Put(keyFor(id), data)
	})
	return id, err
}

// Average scans every row in the bucket, unmarshalling each one to
// check function_name, in contrast to the column store's column-only
// scan.
func (s *RowStore) Average(name string) (float64, error) {
	var sum int64
	var count int64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		return b.ForEach(func(_, v []byte) error {
			var row boltRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			if row.Name == name {
				sum += row.DeltaNs
				count++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	return float64(sum) / float64(count), nil
}

// ContainsName scans every row in the bucket, unmarshalling each one,
// until it finds a match or exhausts the bucket.
func (s *RowStore) ContainsName(name string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var row boltRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			if row.Name == name {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

// Close releases the underlying BoltDB file.
func (s *RowStore) Close() error { return s.db.Close() }

func keyFor(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}
