package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	session "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const (
	fileMode = 0o600
	dirMode  = 0o700

	// DefaultWatchDebounce groups bursts of file system events
	DefaultWatchDebounce = 100 * time.Millisecond
)

// FileOption configures a File store
type FileOption func(*File)

// WithStorageKey sets the document key the token is stored under
func WithStorageKey(key string) FileOption {
	return func(f *File) {
		if key != "" {
			f.key = key
		}
	}
}

// WithFileLogger sets the store logger
func WithFileLogger(logger session.Logger) FileOption {
	return func(f *File) {
		_, f.logger = session.ResolveLogger("store.file", nil, logger)
	}
}

// WithWatchDebounce sets how long Watch waits for more events
func WithWatchDebounce(d time.Duration) FileOption {
	return func(f *File) {
		if d > 0 {
			f.debounce = d
		}
	}
}

// File keeps the token in a YAML document on disk. Writes replace the file
// atomically; the file is only readable by its owner.
type File struct {
	path     string
	key      string
	debounce time.Duration
	logger   session.Logger
	mu       sync.Mutex
}

var _ session.Store = (*File)(nil)

// NewFile creates a store backed by path. The file is created on first write.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{
		path:     path,
		key:      session.DefaultStorageKey,
		debounce: DefaultWatchDebounce,
	}
	_, f.logger = session.ResolveLogger("store.file", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// DefaultFilePath returns the per user session file location
func DefaultFilePath(app string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "could not locate user config dir")
	}
	return filepath.Join(dir, app, "session.yaml"), nil
}

// Path returns the file location
func (f *File) Path() string {
	return f.path
}

// Read implements session.Store
func (f *File) Read(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	token, ok := doc[f.key]
	return token, ok && token != "", nil
}

// Write implements session.Store
func (f *File) Write(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc[f.key] = token
	return f.save(doc)
}

// Clear implements session.Store
func (f *File) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc[f.key]; !ok {
		return nil
	}
	delete(doc, f.key)
	return f.save(doc)
}

// Watch calls fn whenever another process changes the stored token. It
// blocks until ctx is done.
func (f *File) Watch(ctx context.Context, fn func(token string, ok bool)) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create session dir")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create file watcher")
	}
	defer watcher.Close()

	// the file is replaced on every write, so watch its directory
	if err := watcher.Add(dir); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not watch session dir")
	}

	last, lastOK, _ := f.Read(ctx)
	name := filepath.Clean(f.path)

	timer := time.NewTimer(f.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				timer.Reset(f.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("session file watcher error: %v", err)

		case <-timer.C:
			token, tokenOK, err := f.Read(ctx)
			if err != nil {
				f.logger.Warn("could not read session file after change: %v", err)
				continue
			}
			if token == last && tokenOK == lastOK {
				continue
			}
			last, lastOK = token, tokenOK
			fn(token, tokenOK)
		}
	}
}

func (f *File) load() (map[string]string, error) {
	doc := map[string]string{}

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not read session file")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return doc, nil
	}

	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "malformed session file").
			WithMetadata(map[string]any{"path": f.path})
	}
	if doc == nil {
		doc = map[string]string{}
	}
	return doc, nil
}

func (f *File) save(doc map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create session dir")
	}

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not encode session file")
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create session file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not protect session file")
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not write session file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not flush session file")
	}
	if err := tmp.Close(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not close session file")
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not replace session file")
	}
	return nil
}
