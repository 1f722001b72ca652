package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dindinbro/discreen/pkg/core"
	"github.com/dindinbro/discreen/pkg/lineparse"
	"github.com/dindinbro/discreen/pkg/log"
)

var logger = log.ForService("storage")

// maxLocalOpenSize is the file size above which a store is never opened
// in-process. Such files stay reachable only through the bridge or the
// object-storage path.
const maxLocalOpenSize = 5 << 30

// deniedStoreFiles are store filenames excluded from discovery outright.
var deniedStoreFiles = map[string]bool{
	"meta.db":  true,
	"index.db": true,
}

// Registry owns the set of usable local sources. Handles are opened lazily
// during discovery and cached for the process lifetime; corruption recovery
// runs at most once per source.
type Registry struct {
	dataDir string
	parser  *lineparse.Parser

	mu        sync.RWMutex
	sources   map[string]*Source
	skipped   map[string]string // name -> reason, for sources listing
	recovered map[string]bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRegistry creates a registry over dataDir. Call Discover before use.
func NewRegistry(dataDir string, parser *lineparse.Parser) *Registry {
	return &Registry{
		dataDir:   dataDir,
		parser:    parser,
		sources:   make(map[string]*Source),
		skipped:   make(map[string]string),
		recovered: make(map[string]bool),
	}
}

// Discover scans the data directory and registers every usable store file.
// Individual failures are logged and skipped; Discover itself only fails when
// the directory cannot be read at all.
func (r *Registry) Discover() error {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		return fmt.Errorf("reading data directory %s: %w", r.dataDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		if err := r.RegisterSource(entry.Name()); err != nil {
			logger.Warnf("skipping %s: %v", entry.Name(), err)
		}
	}

	logger.Infof("discovered %d local sources in %s", r.Count(), r.dataDir)
	return nil
}

// RegisterSource opens, verifies and registers one store file by name. It is
// the hot-register entry point used by discovery, the directory watcher and
// the sync collaborator alike. Registering an already-known name is a no-op.
func (r *Registry) RegisterSource(filename string) error {
	name := strings.TrimSuffix(filename, ".db")

	r.mu.RLock()
	_, known := r.sources[name]
	r.mu.RUnlock()
	if known {
		return nil
	}

	if deniedStoreFiles[filename] {
		r.markSkipped(name, "denylisted")
		return fmt.Errorf("%s is denylisted", filename)
	}

	path := filepath.Join(r.dataDir, filename)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", filename, err)
	}
	if info.Size() > maxLocalOpenSize {
		r.markSkipped(name, "too large for local open")
		return fmt.Errorf("%s exceeds local open threshold (%d bytes)", filename, info.Size())
	}

	src, err := r.openVerified(name, path)
	if err != nil {
		r.markSkipped(name, err.Error())
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[name]; exists {
		_ = src.Close()
		return nil
	}
	r.sources[name] = src
	delete(r.skipped, name)
	logger.Debugf("registered source %s (table=%s mode=%d cols=%d)", name, src.Table, src.Mode, len(src.Columns))
	return nil
}

// openVerified opens a store and drives the recovery chain on probe failure:
// one index rebuild, then a plain content-table fallback, then permanent
// exclusion. Recovery runs at most once per source per process.
func (r *Registry) openVerified(name, path string) (*Source, error) {
	src, err := openSource(name, path)
	if err != nil {
		return nil, err
	}

	verr := src.verify()
	if verr == nil {
		return src, nil
	}
	logger.Warnf("source %s failed verification: %v", name, verr)

	r.mu.Lock()
	attempted := r.recovered[name]
	r.recovered[name] = true
	r.mu.Unlock()
	if attempted {
		_ = src.Close()
		return nil, fmt.Errorf("source %s already failed recovery", name)
	}

	if src.Mode == ModeFTS {
		if err := src.rebuildIndex(); err != nil {
			logger.Warnf("source %s: index rebuild failed: %v", name, err)
		} else if err := src.verify(); err == nil {
			logger.Infof("source %s recovered via index rebuild", name)
			return src, nil
		}

		if err := src.fallbackToContent(); err == nil {
			if err := src.verify(); err == nil {
				logger.Infof("source %s recovered via content-table fallback", name)
				return src, nil
			}
		}
	}

	_ = src.Close()
	return nil, fmt.Errorf("source %s is unrecoverable", name)
}

func (r *Registry) markSkipped(name, reason string) {
	r.mu.Lock()
	r.skipped[name] = reason
	r.mu.Unlock()
}

// Remove drops a source from the active set and closes its handle. Used when
// a live query hits unexpected corruption.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	src, ok := r.sources[name]
	delete(r.sources, name)
	if ok {
		r.skipped[name] = "removed after query failure"
	}
	r.mu.Unlock()

	if ok {
		_ = src.Close()
		logger.Warnf("removed source %s from active set", name)
	}
}

// Names returns the active source names, sorted lexically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Skipped returns the excluded sources and the reason each was excluded.
func (r *Registry) Skipped() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.skipped))
	for k, v := range r.skipped {
		out[k] = v
	}
	return out
}

// Count returns the number of active sources.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// SearchAll fans the query out to every active source in parallel and merges
// the per-source results. A source-level error removes the source and
// contributes nothing; it never fails the merged search. Cancellation aborts
// the in-flight queries but keeps the sources registered.
func (r *Registry) SearchAll(ctx context.Context, criteria []core.Criterion, limit, offset int) *core.Result {
	r.mu.RLock()
	sources := make([]*Source, 0, len(r.sources))
	for _, src := range r.sources {
		sources = append(sources, src)
	}
	r.mu.RUnlock()

	type sourceResult struct {
		name   string
		result *core.Result
		err    error
	}

	if len(sources) == 0 {
		return core.EmptyResult()
	}

	ch := make(chan sourceResult, len(sources))
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src *Source) {
			defer wg.Done()
			res, err := src.Search(ctx, criteria, limit, offset, r.parser)
			ch <- sourceResult{name: src.Name, result: res, err: err}
		}(src)
	}
	wg.Wait()
	close(ch)

	merged := &core.Result{}
	totalKnown := true
	total := 0
	for sr := range ch {
		if sr.err != nil {
			// A deadline or cancellation is not the source's fault.
			if errors.Is(sr.err, context.Canceled) || errors.Is(sr.err, context.DeadlineExceeded) || ctx.Err() != nil {
				merged.Partial = true
				totalKnown = false
				continue
			}
			logger.Errorf("source %s query failed: %v", sr.name, sr.err)
			r.Remove(sr.name)
			continue
		}
		merged.Records = append(merged.Records, sr.result.Records...)
		if sr.result.Total != nil {
			total += *sr.result.Total
		} else {
			totalKnown = false
		}
	}
	if totalKnown {
		merged.Total = core.KnownTotal(total)
	}
	return merged
}

// Watch starts a directory watcher that hot-registers store files as the
// sync collaborator drops them into the data directory.
func (r *Registry) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(r.dataDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", r.dataDir, err)
	}

	r.watcher = watcher
	r.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				name := filepath.Base(event.Name)
				if !strings.HasSuffix(name, ".db") {
					continue
				}
				if err := r.RegisterSource(name); err != nil {
					logger.Debugf("watcher: not registering %s: %v", name, err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("watcher error: %v", err)
			case <-r.done:
				return
			}
		}
	}()

	logger.Debugf("watching %s for new sources", r.dataDir)
	return nil
}

// Close stops the watcher and closes every source handle.
func (r *Registry) Close() error {
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
	if r.watcher != nil {
		_ = r.watcher.Close()
		r.watcher = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, src := range r.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	r.sources = make(map[string]*Source)
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sources: %v", errs)
	}
	return nil
}
