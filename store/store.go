package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("component", "store")

var bucketName = []byte("translations")

// Sentinel errors for package store.
var (
	// ErrNotFound is returned by Remove when no entry exists for the path.
	ErrNotFound = errors.New("translation not found")
	// ErrCorrupt wraps any failure to open or verify the table file.
	ErrCorrupt = errors.New("translation table is corrupt")
	// ErrReadOnly is returned by mutations on a store opened read-only.
	ErrReadOnly = errors.New("translation table opened read-only")
)

type (
	// Entry is a single virtual path to real path mapping.
	Entry struct {
		Original   string `json:"original"`   // virtual path in the mounted namespace
		Translated string `json:"translated"` // real path on the translated-content tree
	}

	// record is the value stored under each original path.
	record struct {
		Translated string    `json:"translated"`
		Created    time.Time `json:"created"`
		Updated    time.Time `json:"updated"`
	}
)

// Options tune how the table file is opened.
type Options struct {
	// ReadOnly opens the file with a shared lock and rejects mutations.
	ReadOnly bool
	// Timeout bounds the wait for the file lock held by another process.
	Timeout time.Duration
}

// Store is the durable translation table, one bolt file with a single bucket
// keyed by original path.
type Store struct {
	db       *bolt.DB
	path     string
	readOnly bool
}

// Open opens or creates the table file at path and verifies its integrity.
// The page structure of an existing file is checked before bolt maps it and
// the records are checked before anything is written. Any failure to do so
// is reported wrapped in ErrCorrupt, except a missing file in read-only mode,
// which is reported as is.
func Open(path string, opts Options) (*Store, error) {
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	if opts.ReadOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create table directory: %w", err)
	}

	logger.WithField("path", path).Debug("opening translation table")
	if err := verifyPath(path, opts.Timeout); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.Timeout, ReadOnly: opts.ReadOnly})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("translation table %s is locked by another process: %w", path, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}

	// nothing is written before the file has been checked
	s := &Store{db: db, path: path, readOnly: opts.ReadOnly}
	if err := s.Check(); err != nil {
		db.Close()
		return nil, err
	}
	if !opts.ReadOnly {
		if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketName)
			return err
		}); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare translation table: %w", err)
		}
	}
	return s, nil
}

// Close releases the table file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Check walks every page of the table file and decodes every record. All
// problems found are joined and wrapped in ErrCorrupt.
func (s *Store) Check() error {
	var errs []error
	err := s.db.View(func(tx *bolt.Tx) error {
		for cerr := range tx.Check() {
			errs = append(errs, cerr)
		}
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				errs = append(errs, fmt.Errorf("entry %q: %w", k, err))
			}
			return nil
		})
	})
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, errors.Join(errs...))
	}
	return nil
}

// Upsert inserts or replaces the entry for original. The write is committed
// and synced before Upsert returns nil.
func (s *Store) Upsert(original, translated string) error {
	return s.UpsertAll([]Entry{{Original: original, Translated: translated}})
}

// UpsertAll applies every entry in a single transaction: either all of them
// are stored or none are.
func (s *Store) UpsertAll(entries []Entry) error {
	if s.readOnly {
		return ErrReadOnly
	}
	now := time.Now().UTC()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, e := range entries {
			r := record{Translated: e.Translated, Created: now, Updated: now}
			if prev := b.Get([]byte(e.Original)); prev != nil {
				var old record
				if err := json.Unmarshal(prev, &old); err == nil {
					r.Created = old.Created
				}
			}
			v, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to serialize %q: %w", e.Original, err)
			}
			if err := b.Put([]byte(e.Original), v); err != nil {
				return fmt.Errorf("failed to store %q: %w", e.Original, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// Remove deletes the entry for original. It returns ErrNotFound, and leaves
// the table untouched, when there is no such entry.
func (s *Store) Remove(original string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(original)) == nil {
			return ErrNotFound
		}
		if err := b.Delete([]byte(original)); err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}
		return nil
	})
}

// Get returns the entry for original, if any.
func (s *Store) Get(original string) (Entry, bool, error) {
	var (
		e     Entry
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(original))
		if v == nil {
			return nil
		}
		var r record
		if err := json.Unmarshal(v, &r); err != nil {
			return fmt.Errorf("failed to deserialize %q: %w", original, err)
		}
		e = Entry{Original: original, Translated: r.Translated}
		found = true
		return nil
	})
	return e, found, err
}

// Originals returns every original path mapped to translated.
func (s *Store) Originals(translated string) ([]string, error) {
	var out []string
	err := s.walk(func(e Entry) {
		if e.Translated == translated {
			out = append(out, e.Original)
		}
	})
	return out, err
}

// List returns every entry ordered by original path.
func (s *Store) List() ([]Entry, error) {
	var out []Entry
	err := s.walk(func(e Entry) {
		out = append(out, e)
	})
	return out, err
}

func (s *Store) walk(fn func(Entry)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to deserialize %q: %w", k, err)
			}
			// keys and values are only valid inside the transaction
			fn(Entry{Original: string(k), Translated: r.Translated})
			return nil
		})
	})
}
