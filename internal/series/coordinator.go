package series

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
)

// FileName is the series config file name at the series root.
const FileName = ".series.json"

// DefaultLockTimeout bounds how long a mutator waits for the series lock.
const DefaultLockTimeout = 30 * time.Second

// CurrentVersion is the series config schema version written by this build.
const CurrentVersion = 1

// DocumentStatus represents one document's lifecycle within a series.
// Transitions are monotonic pending → in_progress → completed; error is
// reachable from any state.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentInProgress DocumentStatus = "in_progress"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentError      DocumentStatus = "error"
)

// ParseDocumentStatus validates operator-supplied status values.
func ParseDocumentStatus(value string) (DocumentStatus, error) {
	switch DocumentStatus(value) {
	case DocumentPending, DocumentInProgress, DocumentCompleted, DocumentError:
		return DocumentStatus(value), nil
	default:
		return "", services.Wrap(services.ErrValidation, "series", "parse status", value, nil)
	}
}

// DocumentInfo describes one member document.
type DocumentInfo struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Path        string         `json:"path"`
	Order       int            `json:"order"`
	Status      DocumentStatus `json:"status"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Config is the persisted coordination record for one series.
type Config struct {
	Version               int            `json:"version"`
	Name                  string         `json:"name"`
	Documents             []DocumentInfo `json:"documents"`
	SharedKnowledgePolicy string         `json:"shared_knowledge_policy"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// Stats aggregates per-status document counts. Like all lock-free reads this
// is an eventually consistent snapshot.
type Stats struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
	Errored    int
}

// Coordinator binds series operations to one series root directory.
type Coordinator struct {
	path        string
	lock        *lockdir.Lock
	lockTimeout time.Duration
	logger      *slog.Logger
}

// CoordinatorOption configures optional Coordinator behavior.
type CoordinatorOption func(*Coordinator)

// WithLockTimeout overrides the lock acquisition deadline for mutations.
func WithLockTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.lockTimeout = timeout
		}
	}
}

// NewCoordinator returns a coordinator for the given series root.
func NewCoordinator(root string, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	path := filepath.Join(root, FileName)
	c := &Coordinator{
		path:        path,
		lock:        lockdir.New(path),
		lockTimeout: DefaultLockTimeout,
		logger:      logging.NewComponentLogger(logger, "series"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the series config file path.
func (c *Coordinator) Path() string {
	return c.path
}

// Load reads and parses the series config. An absent file yields an empty
// default config; a file that does not parse is corrupt state.
func (c *Coordinator) Load() (*Config, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{Version: CurrentVersion}, nil
		}
		return nil, fmt.Errorf("read series config: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, services.Wrap(services.ErrCorruptState, "series", "load", c.path, err)
	}
	return cfg, nil
}

// Initialize creates the series config with identity fields. Existing
// configs keep their document list; name and policy are overwritten.
func (c *Coordinator) Initialize(ctx context.Context, name, sharedKnowledgePolicy string) error {
	err := c.update(ctx, func(cfg *Config) error {
		cfg.Version = CurrentVersion
		cfg.Name = name
		cfg.SharedKnowledgePolicy = sharedKnowledgePolicy
		if cfg.CreatedAt.IsZero() {
			cfg.CreatedAt = time.Now().UTC()
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.Info("series initialized", logging.String("series", name))
	return nil
}

// AddDocument appends a document to the series. A duplicate id fails the
// call without mutating the persisted config.
func (c *Coordinator) AddDocument(ctx context.Context, info DocumentInfo) error {
	return c.update(ctx, func(cfg *Config) error {
		for _, doc := range cfg.Documents {
			if doc.ID == info.ID {
				return services.Wrap(services.ErrDuplicateDocument, "series", "add document", info.ID, nil)
			}
		}
		if info.Status == "" {
			info.Status = DocumentPending
		}
		cfg.Documents = append(cfg.Documents, info)
		return nil
	})
}

// UpdateDocumentStatus updates one document's status. StartedAt is stamped
// only on the first transition into in_progress, CompletedAt only on the
// first transition into completed.
func (c *Coordinator) UpdateDocumentStatus(ctx context.Context, id string, status DocumentStatus) error {
	return c.update(ctx, func(cfg *Config) error {
		for i := range cfg.Documents {
			doc := &cfg.Documents[i]
			if doc.ID != id {
				continue
			}
			doc.Status = status
			now := time.Now().UTC()
			if status == DocumentInProgress && doc.StartedAt == nil {
				doc.StartedAt = &now
			}
			if status == DocumentCompleted && doc.CompletedAt == nil {
				doc.CompletedAt = &now
			}
			return nil
		}
		return services.Wrap(services.ErrNotFound, "series", "update document status", id, nil)
	})
}

// GetStats aggregates per-status counts without locking.
func (c *Coordinator) GetStats() (Stats, error) {
	cfg, err := c.Load()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(cfg.Documents)}
	for _, doc := range cfg.Documents {
		switch doc.Status {
		case DocumentPending:
			stats.Pending++
		case DocumentInProgress:
			stats.InProgress++
		case DocumentCompleted:
			stats.Completed++
		case DocumentError:
			stats.Errored++
		}
	}
	return stats, nil
}

// update runs the lock-serialized load-mutate-persist cycle shared by all
// mutators.
func (c *Coordinator) update(ctx context.Context, fn func(*Config) error) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create series root: %w", err)
	}
	return c.lock.WithLock(ctx, c.lockTimeout, func() error {
		cfg, err := c.Load()
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		cfg.UpdatedAt = time.Now().UTC()
		return atomicfile.WriteJSON(c.path, cfg)
	})
}
