package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"limner/internal/atomicfile"
	"limner/internal/lockdir"
	"limner/internal/logging"
	"limner/internal/services"
	"limner/internal/waitfor"
)

// FileName is the manifest file name inside a document's working directory.
const FileName = ".manifest.json"

// DefaultLockTimeout bounds how long a mutator waits for the manifest lock.
const DefaultLockTimeout = 30 * time.Second

var errKBNotReady = errors.New("knowledge base not ready")

// Store binds manifest operations to one document working directory.
type Store struct {
	path        string
	lock        *lockdir.Lock
	lockTimeout time.Duration
	logger      *slog.Logger
}

// StoreOption configures optional Store behavior.
type StoreOption func(*Store)

// WithLockTimeout overrides the lock acquisition deadline for mutations.
func WithLockTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		if timeout > 0 {
			s.lockTimeout = timeout
		}
	}
}

// NewStore returns a manifest store for the given working directory.
func NewStore(workdir string, logger *slog.Logger, opts ...StoreOption) *Store {
	path := filepath.Join(workdir, FileName)
	s := &Store{
		path:        path,
		lock:        lockdir.New(path),
		lockTimeout: DefaultLockTimeout,
		logger:      logging.NewComponentLogger(logger, "manifest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the manifest lock directory path.
func (s *Store) LockPath() string {
	return s.lock.Path()
}

// Load reads and parses the manifest file. An absent file yields a freshly
// defaulted manifest; a file that exists but does not parse is corrupt state
// and requires operator intervention.
func (s *Store) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := NewManifest()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, services.Wrap(services.ErrCorruptState, "manifest", "load", s.path, err)
	}
	if m.Units == nil {
		m.Units = make(map[string]UnitState)
	}
	return m, nil
}

// Update is the sole mutation entry point. It acquires the manifest lock,
// reloads the freshest persisted state, applies fn, stamps LastUpdated, and
// persists atomically before releasing the lock.
func (s *Store) Update(ctx context.Context, fn func(*Manifest) error) (*Manifest, error) {
	var updated *Manifest
	err := s.lock.WithLock(ctx, s.lockTimeout, func() error {
		m, err := s.Load()
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		m.LastUpdated = time.Now().UTC()
		if err := atomicfile.WriteJSON(s.path, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Initialize sets identity fields and seeds every unit as pending. Existing
// unit state for ids already present is preserved so re-initialization after
// a partial run does not discard progress.
func (s *Store) Initialize(ctx context.Context, documentID string, unitIDs []string) error {
	_, err := s.Update(ctx, func(m *Manifest) error {
		m.Version = CurrentVersion
		m.DocumentID = documentID
		for _, id := range unitIDs {
			if _, exists := m.Units[id]; !exists {
				m.Units[id] = UnitState{Status: UnitPending}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("manifest initialized",
		logging.String(logging.FieldDocumentID, documentID),
		logging.Int("units", len(unitIDs)),
	)
	return nil
}

// UnitPatch carries optional metadata merged into a unit's state alongside a
// status change. Nil fields are left untouched.
type UnitPatch struct {
	AnalyzedAt    *time.Time
	IllustratedAt *time.Time
	FactCount     *int
	Error         string
}

// UpdateUnit merges status and optional metadata into the unit's state,
// creating the entry if absent.
func (s *Store) UpdateUnit(ctx context.Context, unitID string, status UnitStatus, patch *UnitPatch) error {
	_, err := s.Update(ctx, func(m *Manifest) error {
		unit := m.Units[unitID]
		unit.Status = status
		if patch != nil {
			if patch.AnalyzedAt != nil {
				unit.AnalyzedAt = patch.AnalyzedAt
			}
			if patch.IllustratedAt != nil {
				unit.IllustratedAt = patch.IllustratedAt
			}
			if patch.FactCount != nil {
				unit.FactCount = patch.FactCount
			}
			if patch.Error != "" {
				unit.Error = patch.Error
			}
		}
		if status != UnitError {
			unit.Error = ""
		}
		m.Units[unitID] = unit
		return nil
	})
	return err
}

// ResetUnit returns an errored or stuck unit to pending so it can be
// reprocessed. Metadata from the failed attempt is cleared.
func (s *Store) ResetUnit(ctx context.Context, unitID string) error {
	_, err := s.Update(ctx, func(m *Manifest) error {
		if _, exists := m.Units[unitID]; !exists {
			return services.Wrap(services.ErrNotFound, "manifest", "reset unit", unitID, nil)
		}
		m.Units[unitID] = UnitState{Status: UnitPending}
		return nil
	})
	return err
}

// SetKnowledgeBaseStatus updates the whole-document knowledge base status.
func (s *Store) SetKnowledgeBaseStatus(ctx context.Context, status KBStatus) error {
	_, err := s.Update(ctx, func(m *Manifest) error {
		m.KnowledgeBase = status
		return nil
	})
	return err
}

// MarkAnalyzeComplete records that the analysis phase has finished.
func (s *Store) MarkAnalyzeComplete(ctx context.Context) error {
	_, err := s.Update(ctx, func(m *Manifest) error {
		m.AnalyzeComplete = true
		return nil
	})
	return err
}

// MarkIllustrateComplete records that the illustration phase has finished.
func (s *Store) MarkIllustrateComplete(ctx context.Context) error {
	_, err := s.Update(ctx, func(m *Manifest) error {
		m.IllustrateComplete = true
		return nil
	})
	return err
}

// UnitsByStatus returns the ids of units in the given status, ascending.
// This is a lock-free snapshot read: callers must tolerate staleness.
func (s *Store) UnitsByStatus(status UnitStatus) ([]string, error) {
	m, err := s.Load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(m.Units))
	for id, unit := range m.Units {
		if unit.Status == status {
			ids = append(ids, id)
		}
	}
	SortUnitIDs(ids)
	return ids, nil
}

// ClaimUnit atomically transitions the lowest-ordered unit in status from to
// status to and returns its id. ok is false when no unit is claimable.
// Illustration workers use this to pick up analyzed units without two
// workers claiming the same one.
func (s *Store) ClaimUnit(ctx context.Context, from, to UnitStatus) (string, bool, error) {
	var claimed string
	_, err := s.Update(ctx, func(m *Manifest) error {
		candidates := make([]string, 0, len(m.Units))
		for id, unit := range m.Units {
			if unit.Status == from {
				candidates = append(candidates, id)
			}
		}
		if len(candidates) == 0 {
			return nil
		}
		SortUnitIDs(candidates)
		claimed = candidates[0]
		unit := m.Units[claimed]
		unit.Status = to
		m.Units[claimed] = unit
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return claimed, claimed != "", nil
}

// WaitForKnowledgeBaseReady polls the manifest until the knowledge base
// status is complete, failing once timeout elapses. This is the phase
// barrier: illustration workers block here before consuming the knowledge
// base, without any message-passing infrastructure. A knowledge base in
// error state fails immediately.
func (s *Store) WaitForKnowledgeBaseReady(ctx context.Context, pollInterval, timeout time.Duration) error {
	err := waitfor.Poll(ctx, pollInterval, timeout, func() error {
		m, err := s.Load()
		if err != nil {
			return waitfor.Fatal(err)
		}
		switch m.KnowledgeBase {
		case KBComplete:
			return nil
		case KBError:
			return waitfor.Fatal(fmt.Errorf("knowledge base for %s entered error state", s.path))
		default:
			return errKBNotReady
		}
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, errKBNotReady) {
		return services.Wrap(services.ErrTimeout, "manifest", "wait for knowledge base", s.path, nil)
	}
	return err
}
