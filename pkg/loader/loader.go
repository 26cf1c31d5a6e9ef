// Package loader loads an app bundle file and watches it for changes,
// keeping the last good bundle when a reload fails to parse.
package loader

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/weftworks/weft/pkg/schema"
)

// Loader reads an app bundle YAML file and hot-reloads it on change.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *schema.App
	onChange []func(*schema.App)
	watcher  *fsnotify.Watcher
}

// New creates a Loader and performs the initial load.
func New(path string) (*Loader, error) {
	l := &Loader{path: path}
	app, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}
	l.current = app
	return l, nil
}

// App returns the current (latest good) bundle.
func (l *Loader) App() *schema.App {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Path returns the watched file path.
func (l *Loader) Path() string {
	return l.path
}

// OnChange registers a callback invoked whenever the bundle reloads.
func (l *Loader) OnChange(fn func(*schema.App)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the bundle on
// file changes. A bundle that fails to parse keeps the previous one.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("app watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("app watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					l.apply()
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the bundle file.
func (l *Loader) Reload() (*schema.App, error) {
	app, err := schema.LoadFile(l.path)
	if err != nil {
		return nil, err
	}
	l.swap(app)
	return app, nil
}

func (l *Loader) apply() {
	app, err := schema.LoadFile(l.path)
	if err != nil {
		// Bad parse: keep serving the previous bundle.
		return
	}
	l.swap(app)
}

func (l *Loader) swap(app *schema.App) {
	l.mu.Lock()
	l.current = app
	callbacks := make([]func(*schema.App), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(app)
	}
}
