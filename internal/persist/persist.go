// Package persist snapshots the vector index and cluster store to disk and restores them.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/sethvargo/go-retry"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cluster"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
)

// FormatVersion is embedded in every snapshot file. Files with another version are
// treated as corrupt and trigger a rebuild.
const FormatVersion = 1

const (
	VectorsFile  = "vectors.snap"
	ClustersFile = "clusters.snap"
	lockFile     = "snapshots.lock"
)

type vectorsFile struct {
	FormatVersion int              `msgpack:"format_version"`
	SavedAt       time.Time        `msgpack:"saved_at"`
	Snapshot      *vector.Snapshot `msgpack:"snapshot"`
}

type clustersFile struct {
	FormatVersion int               `msgpack:"format_version"`
	SavedAt       time.Time         `msgpack:"saved_at"`
	Snapshot      *cluster.Snapshot `msgpack:"snapshot"`
}

// SnapshotFunc captures a consistent pair of snapshots for a background save.
type SnapshotFunc func() (*vector.Snapshot, *cluster.Snapshot)

// Manager owns the snapshot directory. A lock file makes one process its single writer.
type Manager struct {
	dir         string
	lock        *flock.Flock
	logger      *zap.Logger
	debounce    time.Duration
	retryBase   time.Duration
	retries     uint64
	lockTimeout time.Duration

	source   SnapshotFunc
	requests chan struct{}
	quit     chan struct{}
	stopped  chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc

	writeMu   sync.Mutex
	saves     atomic.Uint64
	failures  atomic.Uint64
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithDebounce delays background saves so bursts of mutations produce one write.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		m.debounce = d
	}
}

// WithRetry sets the Fibonacci backoff base and the number of retries for background saves.
func WithRetry(base time.Duration, retries int) Option {
	return func(m *Manager) {
		if base > 0 {
			m.retryBase = base
		}
		if retries >= 0 {
			m.retries = uint64(retries)
		}
	}
}

// WithLockTimeout is how long Open waits for another process to release the directory.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.lockTimeout = d
	}
}

// Open creates dir if needed and takes its writer lock.
func Open(dir string, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	m := &Manager{
		dir:         dir,
		debounce:    500 * time.Millisecond,
		retryBase:   time.Second,
		retries:     5,
		lockTimeout: 2 * time.Second,
		requests:    make(chan struct{}, 1),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	lock, err := acquireLock(filepath.Join(dir, lockFile), m.lockTimeout)
	if err != nil {
		return nil, err
	}
	m.lock = lock
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

// acquireLock polls TryLock until the lock is free or timeout passes.
func acquireLock(path string, timeout time.Duration) (*flock.Flock, error) {
	l := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire snapshot lock: %w", err)
		}
		if locked {
			return l, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("snapshot directory is in use by another process (lock: %s)", path)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Save writes both snapshots synchronously. Each file is replaced atomically.
func (m *Manager) Save(vs *vector.Snapshot, cs *cluster.Snapshot) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.writeLocked(vs, cs)
}

func (m *Manager) writeLocked(vs *vector.Snapshot, cs *cluster.Snapshot) error {
	now := time.Now().UTC()
	if err := writeAtomic(m.dir, VectorsFile, &vectorsFile{FormatVersion: FormatVersion, SavedAt: now, Snapshot: vs}); err != nil {
		return fmt.Errorf("save %s: %w", VectorsFile, err)
	}
	if err := writeAtomic(m.dir, ClustersFile, &clustersFile{FormatVersion: FormatVersion, SavedAt: now, Snapshot: cs}); err != nil {
		return fmt.Errorf("save %s: %w", ClustersFile, err)
	}
	m.saves.Add(1)
	return nil
}

// Start launches the background saver that serves Schedule. It must be called at most once.
func (m *Manager) Start(source SnapshotFunc) {
	m.source = source
	go m.run()
}

// Schedule requests an asynchronous save. Requests made while one is pending coalesce.
func (m *Manager) Schedule() {
	select {
	case m.requests <- struct{}{}:
	default:
	}
}

func (m *Manager) run() {
	defer close(m.stopped)
	for {
		select {
		case <-m.quit:
			return
		case <-m.requests:
		}
		if m.debounce > 0 {
			select {
			case <-time.After(m.debounce):
			case <-m.quit:
				return
			}
		}
		m.saveWithRetry()
	}
}

func (m *Manager) saveWithRetry() {
	attempt := 0
	b := retry.WithMaxRetries(m.retries, retry.NewFibonacci(m.retryBase))
	err := retry.Do(m.ctx, b, func(ctx context.Context) error {
		attempt++
		if err := m.saveCurrent(); err != nil {
			m.logger.Warn("snapshot save failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		m.failures.Add(1)
		m.logger.Error("giving up on snapshot save", zap.Int("attempts", attempt), zap.Error(err))
	}
}

func (m *Manager) saveCurrent() error {
	if m.source == nil {
		return nil
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	vs, cs := m.source()
	return m.writeLocked(vs, cs)
}

// Flush writes the current state synchronously.
func (m *Manager) Flush() error {
	return m.saveCurrent()
}

// Saves returns the number of completed snapshot writes.
func (m *Manager) Saves() uint64 {
	return m.saves.Load()
}

// Failures returns the number of background saves abandoned after retries.
func (m *Manager) Failures() uint64 {
	return m.failures.Load()
}

// Close stops the background saver, writes a final snapshot and releases the lock.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.quit)
		m.cancel()
		if m.source != nil {
			<-m.stopped
		}
		var errs []error
		if err := m.saveCurrent(); err != nil {
			errs = append(errs, err)
		}
		if err := m.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release snapshot lock: %w", err))
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

// writeAtomic encodes v to a temp file in dir, fsyncs it, renames it over name and
// fsyncs the directory.
func writeAtomic(dir, name string, v interface{}) (err error) {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = msgpack.NewEncoder(tmp).Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("fsync dir: %w", err)
	}
	return nil
}

var errVersion = errors.New("unsupported snapshot format version")

func readFile(path string, v interface{ version() int }) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := msgpack.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrPersistenceCorrupt, filepath.Base(path), err)
	}
	if got := v.version(); got != FormatVersion {
		return fmt.Errorf("%w: %s: %w %d", models.ErrPersistenceCorrupt, filepath.Base(path), errVersion, got)
	}
	return nil
}

func (f *vectorsFile) version() int  { return f.FormatVersion }
func (f *clustersFile) version() int { return f.FormatVersion }
