package content

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 200 * time.Millisecond

// Catalog holds the current Library and swaps it on reload. It is safe for
// concurrent use.
type Catalog struct {
	dir      string
	log      *zap.Logger
	debounce time.Duration

	mu  sync.RWMutex
	lib *Library
}

// NewCatalog loads dir and returns a Catalog serving it.
func NewCatalog(ctx context.Context, dir string, log *zap.Logger) (*Catalog, error) {
	c := &Catalog{dir: dir, log: log, debounce: defaultDebounce}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Library returns the current snapshot.
func (c *Catalog) Library() *Library {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lib
}

// Courses returns the courses of the current snapshot.
func (c *Catalog) Courses() []Course {
	return c.Library().Courses()
}

// Course looks a course up in the current snapshot.
func (c *Catalog) Course(id string) (*Course, error) {
	return c.Library().Course(id)
}

// Step looks a step up in the current snapshot.
func (c *Catalog) Step(courseID, itemID, stepID string) (*StepView, error) {
	return c.Library().Step(courseID, itemID, stepID)
}

// Reload reads the content tree again. On failure the previous snapshot
// stays in place.
func (c *Catalog) Reload(ctx context.Context) error {
	lib, err := Load(ctx, c.dir)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.lib = lib
	c.mu.Unlock()
	return nil
}

// Watch reloads the catalog whenever files under the content directory
// change. Bursts of events are collapsed into one reload. It blocks until
// ctx is done.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, c.dir); err != nil {
		return err
	}

	reload := make(chan struct{}, 1)
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(c.debounce, func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			if ev.Has(fsnotify.Create) {
				// new directories need their own watch
				_ = addRecursive(watcher, ev.Name)
			}
			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.log.Error("fsnotify error", zap.Error(err))
		case <-reload:
			if err := c.Reload(ctx); err != nil {
				c.log.Error("failed to reload content", zap.Error(err))
				continue
			}
			c.log.Info("content reloaded", zap.Int("courses", len(c.Library().Courses())))
		}
	}
}

// addRecursive watches root and every directory below it. A root that is a
// file is ignored.
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
