// Package ringstore persists the snapshot ring's *metadata* (never test
// results, never on-disk test bodies) to a small local bbolt database so
// a restarted server can answer snapshot-status immediately instead of
// reporting an empty history. This supplements spec.md's Non-goal that
// results are not durable; it never rehydrates a Snapshot's Exists flag
// for a directory that is actually gone (see Entry's doc comment).
//
// Grounded on internal/store/bbolt/store.go's bucket-per-concern layout
// and New(path, codec) constructor shape, narrowed from a full revision
// store down to one bucket of ring-metadata records.
package ringstore

import (
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketRing = []byte("ring")

// Entry is the metadata persisted for one Snapshot. It deliberately
// excludes results and omits Exists — a restart never claims a
// directory still exists without checking disk.
type Entry struct {
	Name      string            `msgpack:"n"`
	Timestamp int64             `msgpack:"t"`
	Repos     []string          `msgpack:"r"`
	Shas      map[string]string `msgpack:"s"`
	TestCount int               `msgpack:"c"`
}

// Store is a bbolt-backed store of Entry records keyed by snapshot name.
type Store struct {
	db    *bbolt.DB
	codec Codec
}

// Open opens (or creates) the ring metadata database at path. Pass nil
// for codec to use the default MessagePack implementation.
func Open(path string, codec Codec) (*Store, error) {
	if codec == nil {
		codec = DefaultCodec
	}
	db, err := bbolt.Open(path, 0o666, &bbolt.Options{FreelistType: bbolt.FreelistMapType})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketRing)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ring bucket: %w", err)
	}
	return &Store{db: db, codec: codec}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put upserts entry, keyed by its Name.
func (s *Store) Put(entry Entry) error {
	data, err := s.codec.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRing).Put([]byte(entry.Name), data)
	})
}

// DeleteBefore removes every entry whose Timestamp is strictly less
// than cutoffMillis, mirroring the ring's own age-based eviction so the
// metadata store never grows unbounded.
func (s *Store) DeleteBefore(cutoffMillis int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRing)
		c := b.Cursor()
		var toDelete [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e Entry
			if err := s.codec.Unmarshal(v, &e); err != nil {
				continue
			}
			if e.Timestamp < cutoffMillis {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadAll returns every persisted Entry, newest first.
func (s *Store) LoadAll() ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRing).ForEach(func(_, v []byte) error {
			var e Entry
			if err := s.codec.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sortByTimestampDesc(out)
	return out, nil
}

func sortByTimestampDesc(entries []Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Timestamp < entries[j].Timestamp; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}
