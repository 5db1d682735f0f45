// Package inbox ingests text files dropped into watched directories.
package inbox

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Sink receives documents read from the inbox. *engine.Engine implements it.
type Sink interface {
	Ingest(ctx context.Context, docID, text string, metadata map[string]interface{}) (*models.IngestResult, error)
	Remove(ctx context.Context, docID string) error
	Document(ctx context.Context, docID string) (*models.Document, error)
}

// Inbox watches directories and keeps the sink in step with the files in them.
type Inbox struct {
	sink       Sink
	roots      []string
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	pending  map[string]*time.Timer
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) {
		in.logger = l
	}
}

// WithDebounce sets how long a file must stay quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		in.debounce = d
	}
}

// New creates an inbox over roots. Only files whose extension is in extensions are
// ingested; an empty list accepts every file.
func New(sink Sink, roots, extensions []string, recursive bool, opts ...Option) *Inbox {
	in := &Inbox{
		sink:       sink,
		roots:      roots,
		extensions: extensions,
		recursive:  recursive,
		debounce:   defaultDebounce,
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = zap.NewNop()
	}
	return in
}

// Start begins watching. Existing files are ingested first. It returns once the watch is set
// up; events are handled until ctx is cancelled or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	in.mu.Lock()
	in.watcher = w
	in.ctx, in.cancel = context.WithCancel(ctx)
	in.mu.Unlock()

	for i, root := range in.roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = w.Close()
			return err
		}
		in.roots[i] = abs
		if err := in.watchTree(abs); err != nil {
			_ = w.Close()
			return err
		}
	}
	for _, root := range in.roots {
		n, err := in.IngestDirectory(in.ctx, root)
		if err != nil {
			in.logger.Warn("inbox initial sync incomplete", zap.String("root", root), zap.Error(err))
		}
		in.logger.Info("inbox watching", zap.String("root", root), zap.Int("ingested", n))
	}
	go in.run()
	return nil
}

func (in *Inbox) watchTree(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if !in.recursive {
		return in.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return in.watcher.Add(path)
		}
		return nil
	})
}

func (in *Inbox) run() {
	for {
		select {
		case <-in.ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			in.handle(ev)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			in.logger.Debug("inbox watch error", zap.Error(err))
		}
	}
}

func (in *Inbox) handle(ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if in.recursive {
				if err := in.watchTree(path); err != nil {
					in.logger.Debug("inbox cannot watch directory", zap.String("path", path), zap.Error(err))
				}
				go func() {
					_, _ = in.IngestDirectory(in.ctx, path)
				}()
			}
			return
		}
		if matchExtension(path, in.extensions) {
			in.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		in.cancelPending(path)
		if !matchExtension(path, in.extensions) {
			return
		}
		if err := in.RemoveFile(in.ctx, path); err != nil {
			in.logger.Debug("inbox remove skipped", zap.String("path", path), zap.Error(err))
		}
	}
}

func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[path]; ok {
		t.Stop()
	}
	in.pending[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.pending, path)
		in.mu.Unlock()
		if _, err := in.IngestFile(in.ctx, path); err != nil {
			in.logger.Warn("inbox ingest failed", zap.String("path", path), zap.Error(err))
		}
	})
}

func (in *Inbox) cancelPending(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[path]; ok {
		t.Stop()
		delete(in.pending, path)
	}
}

// Stop ends watching. Pending debounced files are dropped.
func (in *Inbox) Stop() {
	in.stopOnce.Do(func() {
		in.mu.Lock()
		for path, t := range in.pending {
			t.Stop()
			delete(in.pending, path)
		}
		if in.cancel != nil {
			in.cancel()
		}
		if in.watcher != nil {
			_ = in.watcher.Close()
		}
		in.mu.Unlock()
		close(in.done)
	})
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
