package ruleset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrPersistReadOnly is returned by Persist when neither the configmap
// nor the local file destination can be written (spec.md §4.5, §7
// PersistenceError -> HTTP 409).
var ErrPersistReadOnly = fmt.Errorf("ruleset: no writable persistence destination")

// ConfigMapPersister is the narrow interface the store needs to patch a
// managed Kubernetes ConfigMap. A real implementation is backed by
// k8s.io/client-go's typed clientset; tests and environments without
// cluster access pass nil and fall back to the local YAML file.
type ConfigMapPersister interface {
	PatchConfigMap(ctx context.Context, name string, yamlDoc []byte) error
}

// Store holds the single current RuleSet behind a sync.RWMutex (spec.md
// §5): readers run concurrently, but a waiting writer blocks new readers,
// so the lock is not reader-preferring. It lazy-loads on first access,
// and supports explicit reload, in-memory replacement, and persistence
// (spec.md §4.5).
type Store struct {
	fs         afero.Fs
	path       string
	configmap  string
	cmClient   ConfigMapPersister
	logger     *zap.Logger

	mu          sync.RWMutex
	current     *RuleSet
	lastMtime   time.Time
	haveBaseline bool
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithFs overrides the filesystem the store reads/writes through
// (afero.NewMemMapFs() in tests, afero.NewOsFs() in production).
func WithFs(fs afero.Fs) Option {
	return func(s *Store) { s.fs = fs }
}

// WithConfigMap enables the optional cluster-configmap persistence path.
func WithConfigMap(name string, client ConfigMapPersister) Option {
	return func(s *Store) {
		s.configmap = name
		s.cmClient = client
	}
}

// WithLogger attaches a logger; defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore builds a Store reading/writing the YAML rules document at path.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		fs:     afero.NewOsFs(),
		path:   path,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRules returns the current RuleSet, lazy-loading it from disk on
// first access.
func (s *Store) GetRules() (*RuleSet, error) {
	s.mu.RLock()
	if s.current != nil {
		r := s.current
		s.mu.RUnlock()
		return r, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return s.current, nil
	}
	rs, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current = rs
	return s.current, nil
}

// ReloadRules re-parses the persisted document and atomically swaps it
// in. It fails (leaving the current RuleSet in place) if the document is
// missing or invalid.
func (s *Store) ReloadRules() error {
	rs, err := s.load()
	if err != nil {
		return fmt.Errorf("ruleset: reload failed: %w", err)
	}
	s.mu.Lock()
	s.current = rs
	s.mu.Unlock()
	s.logger.Info("rules reloaded", zap.String("source", s.path), zap.Int("routes", len(rs.Routes)))
	return nil
}

// SetRules replaces the in-memory RuleSet without persisting it.
func (s *Store) SetRules(rs *RuleSet) {
	clone := rs.Clone()
	s.mu.Lock()
	s.current = clone
	s.mu.Unlock()
}

// Persist serializes rs and writes it to the configured destination(s):
// a managed ConfigMap when CONFIGMAP_NAME is set and a client is
// available, and the local YAML path when there is no ConfigMap client
// or the ConfigMap write fails. When neither destination is
// writable it returns ErrPersistReadOnly, which callers map to HTTP 409
// without mutating in-memory state.
func (s *Store) Persist(ctx context.Context, rs *RuleSet) error {
	out, err := yaml.Marshal(rs)
	if err != nil {
		return fmt.Errorf("ruleset: marshal: %w", err)
	}

	if s.configmap != "" && s.cmClient != nil {
		err := s.cmClient.PatchConfigMap(ctx, s.configmap, out)
		if err == nil {
			return nil
		}
		s.logger.Warn("configmap patch failed, writing local file instead", zap.Error(err))
	}

	if err := afero.WriteFile(s.fs, s.path, out, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistReadOnly, err)
	}
	return nil
}

func (s *Store) load() (*RuleSet, error) {
	raw, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("ruleset: reading %s: %w", s.path, err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("ruleset: parsing %s: %w", s.path, err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	rs.WithMetadata(s.path, time.Now())
	return &rs, nil
}

// mtime returns the persisted document's modification time, used by the
// auto-reload loop.
func (s *Store) mtime() (time.Time, error) {
	info, err := s.fs.Stat(s.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// checkAndReload is the poll tick body shared by Watch: compare the
// observed mtime against the last seen one and reload only on a strict
// increase. The first observation only establishes the baseline.
func (s *Store) checkAndReload() {
	mtime, err := s.mtime()
	if err != nil {
		s.logger.Warn("auto-reload: stat failed", zap.String("path", s.path), zap.Error(err))
		return
	}

	s.mu.Lock()
	baseline := !s.haveBaseline
	s.haveBaseline = true
	last := s.lastMtime
	s.lastMtime = mtime
	s.mu.Unlock()

	if baseline {
		return
	}
	if !mtime.After(last) {
		return
	}
	if err := s.ReloadRules(); err != nil {
		s.logger.Error("auto-reload: reload failed", zap.Error(err))
	}
}

// Watch runs the background auto-reload task (spec.md §4.5, §5): it
// wakes every interval seconds, checks the document's mtime, and reloads
// on a strict increase. interval<=0 disables the loop entirely. An
// fsnotify watcher on the file's directory is layered on top purely as a
// latency optimization — it nudges the poll check to run early on a
// filesystem event, but the mtime comparison above remains the single
// source of truth for whether a reload actually happens.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	nudge := make(chan struct{}, 1)
	if w, err := newFsWatcher(s.path); err == nil {
		go func() {
			defer w.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-w.Events():
					if !ok {
						return
					}
					select {
					case nudge <- struct{}{}:
					default:
					}
				case err, ok := <-w.Errors():
					if !ok {
						return
					}
					s.logger.Warn("auto-reload: watcher error", zap.Error(err))
				}
			}
		}()
	}

	s.checkAndReload()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndReload()
		case <-nudge:
			s.checkAndReload()
		}
	}
}
