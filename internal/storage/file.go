package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kuitang/pocketnotes/internal/obs"
)

const (
	// filePerm keeps notes readable by the owner only.
	filePerm = 0o600

	// watchDebounce coalesces the burst of events an atomic rename produces.
	watchDebounce = 50 * time.Millisecond
)

// File stores the record as <dir>/<name>.json.
type File struct {
	path   string
	logger *slog.Logger
}

// NewFile creates the directory if needed and returns a file backend for name.
func NewFile(dir, name string) (*File, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid record name %q", name)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &File{
		path:   filepath.Join(dir, name+".json"),
		logger: obs.Pkg("storage"),
	}, nil
}

// Path returns the record file location.
func (f *File) Path() string {
	return f.path
}

// Load reads the record file.
func (f *File) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	return data, nil
}

// Save atomically replaces the record file.
func (f *File) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(f.path, data, filePerm)
}

// Close is a no-op.
func (f *File) Close() error {
	return nil
}

// Watch reports changes to the record file made by other processes (or by Save).
// The parent directory is watched because atomic renames replace the inode.
func (f *File) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}
	f.logger.Info("storage_watch_started", "path", f.path)

	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !f.relevant(event) {
				continue
			}
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("storage_watch_error", "error", err)
		case <-timer.C:
			onChange()
		}
	}
}

func (f *File) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != f.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}
