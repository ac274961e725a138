// Package daemon keeps the store up to date while record files are edited.
//
// The daemon:
// 1. Loads the whole repository once on start
// 2. Watches the type directories for record file changes
// 3. Loads changed files after a debounce interval
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clarive/filesync/internal/content/schema"
	contentsync "github.com/clarive/filesync/internal/content/sync"
)

// Loader is the part of the syncer the daemon drives.
type Loader interface {
	Load(ctx context.Context, repo string, opts contentsync.Options) (*contentsync.Report, error)
	LoadFile(ctx context.Context, path string, opts contentsync.Options) (*schema.Record, error)
}

// Listener is told the outcome of every load the daemon runs.
type Listener interface {
	OnLoadComplete(report *contentsync.Report, elapsed time.Duration)
	OnFileLoaded(path string, r *schema.Record, err error)
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long a file must be quiet before it is loaded.
	// This batches rapid updates together
	DebounceInterval time.Duration

	// Options are passed to every load.
	Options contentsync.Options

	// SkipInitialLoad starts watching without loading the repository first.
	SkipInitialLoad bool

	// Listener, if set, receives load outcomes (e.g. the dashboard).
	Listener Listener

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 300 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Daemon loads record files into the store as they change.
type Daemon struct {
	loader Loader
	repo   string
	config *Config

	watcher       *FileWatcher
	changeQueue   map[string]time.Time // filepath -> last event
	changeQueueMu sync.Mutex

	// written holds the content hash of every file the daemon itself
	// produced, so the events caused by a re-dump are not loaded again.
	written   map[string][sha256.Size]byte
	writtenMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon watching repo. Use Start() to begin watching.
func New(loader Loader, repo string, config *Config) (*Daemon, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader cannot be nil")
	}
	if repo == "" {
		return nil, fmt.Errorf("repo cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	abs, err := filepath.Abs(repo)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", repo, err)
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		loader:      loader,
		repo:        abs,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		written:     make(map[string][sha256.Size]byte),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start loads the repository, then watches it until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting daemon on %s", d.repo)

	if !d.config.SkipInitialLoad {
		start := time.Now()
		report, err := d.loader.Load(ctx, d.repo, d.config.Options)
		if err != nil {
			d.watcher.Stop()
			return fmt.Errorf("initial load failed: %w", err)
		}
		if report.Failed > 0 {
			d.config.Logger.Printf("Initial load: %d file(s) failed", report.Failed)
		}
		if d.config.Listener != nil {
			d.config.Listener.OnLoadComplete(report, time.Since(start))
		}
	}

	if err := d.watcher.Start(d.repo); err != nil {
		d.watcher.Stop()
		return err
	}
	d.config.Logger.Printf("Watching: %s", d.repo)

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Stop(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors record file events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	events, errs := d.watcher.Events(), d.watcher.Errors()
	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Op == OpDelete {
				// Deleting a file never deletes its record.
				d.config.Logger.Printf("Ignoring deletion of %s", event.Path)
				d.forget(event.Path)
				continue
			}
			d.queueChange(event.Path)

		case err, ok := <-errs:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue processes queued file changes with debouncing.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges loads files that have been quiet for long enough.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(d.changeQueue, path)
	}
	d.changeQueueMu.Unlock()

	for _, path := range ready {
		if d.ctx.Err() != nil {
			return
		}
		d.loadChanged(path)
	}
}

// loadChanged loads one file unless it is missing or still holds what the
// daemon last wrote there.
func (d *Daemon) loadChanged(path string) {
	sum, err := hashFile(path)
	if err != nil {
		// Gone again before the debounce elapsed.
		return
	}
	if d.isOwnWrite(path, sum) {
		return
	}

	d.config.Logger.Printf("Processing change: %s", path)
	r, err := d.loader.LoadFile(d.ctx, path, d.config.Options)
	if d.config.Listener != nil {
		d.config.Listener.OnFileLoaded(path, r, err)
	}
	if err != nil {
		d.config.Logger.Printf("Error loading %s: %v", path, err)
		if r == nil {
			return
		}
	}

	target := path
	if !d.config.Options.NoRefresh {
		target = schema.Resolve(d.repo, r)
	}
	if target != path {
		d.forget(path)
	}
	if sum, err := hashFile(target); err == nil {
		d.remember(target, sum)
	}
}

func (d *Daemon) isOwnWrite(path string, sum [sha256.Size]byte) bool {
	d.writtenMu.Lock()
	defer d.writtenMu.Unlock()
	prev, ok := d.written[path]
	return ok && prev == sum
}

func (d *Daemon) remember(path string, sum [sha256.Size]byte) {
	d.writtenMu.Lock()
	d.written[path] = sum
	d.writtenMu.Unlock()
}

func (d *Daemon) forget(path string) {
	d.writtenMu.Lock()
	delete(d.written, path)
	d.writtenMu.Unlock()
}

func hashFile(path string) ([sha256.Size]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}
