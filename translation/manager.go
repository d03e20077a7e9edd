// Package translation coordinates the durable store and the in-memory table.
//
// The Manager is the only writer of either. Every mutation is written to the
// store first and applied to the table only once the store has committed, so
// a successful return means the change is on disk and visible to every
// subsequent Resolve.
package translation

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dendrascience/transfs/store"
	"github.com/dendrascience/transfs/table"
	"github.com/dendrascience/transfs/util"
)

var logger = log.WithField("component", "translation")

var (
	// ErrInvalidPath wraps validation failures of the paths given to Add,
	// Remove and Lookup.
	ErrInvalidPath = errors.New("invalid path")
	// ErrNoBackupDir is returned by Backup when no backup directory is set.
	ErrNoBackupDir = errors.New("no backup directory configured")
)

// ManagerOptions configures backups taken by a Manager.
type ManagerOptions struct {
	BackupDir      string
	BackupKeep     int  // newest backups retained, 0 keeps all
	BackupOnRemove bool // snapshot the store before every Remove
}

// Manager owns the translation store and table.
type Manager struct {
	store *store.Store
	table *table.Table
	opts  ManagerOptions

	// serializes mutations so store and table see them in the same order
	mu sync.Mutex
}

// NewManager loads every entry of st into a new table.
func NewManager(st *store.Store, opts ManagerOptions) (*Manager, error) {
	entries, err := st.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	m := &Manager{
		store: st,
		table: table.New(entries),
		opts:  opts,
	}
	logger.WithField("entries", len(entries)).Info("loaded translation table")
	return m, nil
}

// Table returns the table the overlay engine resolves against.
func (m *Manager) Table() *table.Table {
	return m.table
}

// Add maps original to translated, replacing any existing mapping.
func (m *Manager) Add(original, translated string) error {
	orig, err := util.CleanOriginalPath(original)
	if err != nil {
		return fmt.Errorf("%w: original %q: %w", ErrInvalidPath, original, err)
	}
	target, err := util.CleanVirtualPath(translated)
	if err != nil {
		return fmt.Errorf("%w: translated %q: %w", ErrInvalidPath, translated, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Upsert(orig, target); err != nil {
		logger.WithError(err).WithField("original", orig).Error("failed to store translation")
		return err
	}
	m.table.Upsert(orig, target)
	logger.WithFields(log.Fields{"original": orig, "translated": target}).Info("added translation")
	return nil
}

// Remove deletes the mapping for original. It returns store.ErrNotFound when
// there is none. With BackupOnRemove set, the store is snapshotted first and
// a failed snapshot aborts the removal.
func (m *Manager) Remove(original string) error {
	orig, err := util.CleanVirtualPath(original)
	if err != nil {
		return fmt.Errorf("%w: original %q: %w", ErrInvalidPath, original, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.table.Resolve(orig); !ok {
		return store.ErrNotFound
	}
	if m.opts.BackupOnRemove && m.opts.BackupDir != "" {
		if _, err := m.backup(); err != nil {
			return fmt.Errorf("backup before remove failed: %w", err)
		}
	}
	if err := m.store.Remove(orig); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.WithError(err).WithField("original", orig).Error("failed to remove translation")
		}
		return err
	}
	m.table.Remove(orig)
	logger.WithField("original", orig).Info("removed translation")
	return nil
}

// List returns every mapping ordered by original path.
func (m *Manager) List() []store.Entry {
	return m.table.Snapshot()
}

// Lookup returns the translated path for original.
func (m *Manager) Lookup(original string) (string, bool, error) {
	orig, err := util.CleanVirtualPath(original)
	if err != nil {
		return "", false, fmt.Errorf("%w: original %q: %w", ErrInvalidPath, original, err)
	}
	r, ok := m.table.Resolve(orig)
	return r, ok, nil
}

// Originals returns every original path mapped to translated.
func (m *Manager) Originals(translated string) ([]string, error) {
	target, err := util.CleanVirtualPath(translated)
	if err != nil {
		return nil, fmt.Errorf("%w: translated %q: %w", ErrInvalidPath, translated, err)
	}
	return m.table.Originals(target), nil
}

// Backup snapshots the store into the backup directory and prunes old
// snapshots. Mutations are not blocked while the copy runs.
func (m *Manager) Backup() (string, error) {
	if m.opts.BackupDir == "" {
		return "", ErrNoBackupDir
	}
	return m.backup()
}

func (m *Manager) backup() (string, error) {
	p, err := m.store.Backup(m.opts.BackupDir)
	if err != nil {
		return "", err
	}
	if _, err := store.PruneBackups(m.opts.BackupDir, m.opts.BackupKeep); err != nil {
		logger.WithError(err).Warn("failed to prune old backups")
	}
	return p, nil
}
