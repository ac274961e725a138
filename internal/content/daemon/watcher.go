package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/clarive/filesync/internal/content/schema"
	contentsync "github.com/clarive/filesync/internal/content/sync"
	"github.com/clarive/filesync/internal/vcs"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new file was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileEvent is a change to a record file.
type FileEvent struct {
	// Path is the absolute path to the file that changed.
	Path string
	Op   EventOp
}

// FileWatcher watches the type directories of a repository for record file
// changes. Record files live exactly one level below the root, so the root
// is watched for new type directories and each type directory for files.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	root    string
}

// NewFileWatcher creates a new FileWatcher instance.
// The watcher must be started with Start() before it will emit events.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan FileEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching repoRoot and its type directories.
func (fw *FileWatcher) Start(repoRoot string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}

	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", repoRoot, err)
	}
	fw.root = root

	if err := fw.watcher.Add(root); err != nil {
		return fmt.Errorf("failed to watch repository %s: %w", root, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		fw.watcher.Remove(root)
		return fmt.Errorf("failed to list repository %s: %w", root, err)
	}
	for _, e := range entries {
		if !e.IsDir() || !isTypeDir(e.Name()) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := fw.watcher.Add(dir); err != nil {
			fw.watcher.Close()
			return fmt.Errorf("failed to watch type directory %s: %w", dir, err)
		}
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return fw.watcher.Close()
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.done)

	// Closing the watcher unblocks the event loop.
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	fw.wg.Wait()

	close(fw.events)
	close(fw.errors)

	return nil
}

// Events returns the channel that emits FileEvent notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if fw.watchNewTypeDir(event) {
				continue
			}
			if fileEvent, ok := fw.convertEvent(event); ok {
				select {
				case fw.events <- fileEvent:
				case <-fw.done:
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}

			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// watchNewTypeDir starts watching a type directory created after Start.
// Files written into it before the watch was added are reported as
// creations.
func (fw *FileWatcher) watchNewTypeDir(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) || filepath.Dir(event.Name) != fw.root {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return false
	}
	if !isTypeDir(filepath.Base(event.Name)) {
		return true
	}

	if err := fw.watcher.Add(event.Name); err != nil {
		select {
		case fw.errors <- fmt.Errorf("failed to watch type directory %s: %w", event.Name, err):
		case <-fw.done:
		}
		return true
	}

	entries, _ := os.ReadDir(event.Name)
	for _, e := range entries {
		path := filepath.Join(event.Name, e.Name())
		if e.Type().IsRegular() && schema.IsRecordFile(path) {
			select {
			case fw.events <- FileEvent{Path: path, Op: OpCreate}:
			case <-fw.done:
				return true
			}
		}
	}
	return true
}

// convertEvent converts an fsnotify event to a FileEvent.
// Returns (FileEvent, true) if the event should be processed,
// or (FileEvent{}, false) if the event should be ignored.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) (FileEvent, bool) {
	if !schema.IsRecordFile(event.Name) {
		return FileEvent{}, false
	}
	if contentsync.RepoRootOf(event.Name) != fw.root {
		return FileEvent{}, false
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// The new name of a rename arrives as a create.
		op = OpDelete
	default:
		return FileEvent{}, false
	}

	return FileEvent{Path: event.Name, Op: op}, true
}

// isTypeDir reports whether a directory directly under the repository root
// can hold record files.
func isTypeDir(name string) bool {
	return !vcs.IsMetadataDir(name) && name != contentsync.StateDir && name != contentsync.UploadsDir
}
