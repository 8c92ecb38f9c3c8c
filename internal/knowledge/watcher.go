package knowledge

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher rebuilds the index when the corpus file is rewritten by the
// ingestion pipeline. Writes are debounced because ingestion dumps arrive as
// bursts of partial writes.
type Watcher struct {
	holder *Holder
	path   string
	logger *log.Logger
	fsw    *fsnotify.Watcher
}

// NewWatcher watches the corpus file at path and publishes rebuilt indexes
// through holder.
func NewWatcher(holder *Holder, path string, logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// watch the directory; editors and ingestion jobs replace the file
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{holder: holder, path: path, logger: logger, fsw: fsw}, nil
}

// Run blocks until ctx is cancelled, reloading the corpus on change.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	const debounce = 500 * time.Millisecond
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				// Drain a fired timer before Reset so a stale tick
				// cannot cut the debounce window short.
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("corpus watcher: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	corpus, err := LoadCorpus(w.path)
	if err != nil {
		w.logger.Printf("corpus reload skipped: %v", err)
		return
	}
	ix, err := Build(corpus)
	if err != nil {
		w.logger.Printf("corpus reload skipped: %v", err)
		return
	}
	w.holder.Store(ix)
	w.logger.Printf("corpus reloaded: %d articles, %d keywords", ix.Stats().Articles, ix.Stats().Keywords)
}
