package media

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ivlev/vidcanvas/internal/failure"
	"github.com/ivlev/vidcanvas/internal/scene"
)

// Library is the registry of imported sources. It is safe for concurrent
// use.
type Library struct {
	mu       sync.RWMutex
	sources  map[string]Source
	counters map[scene.Kind]int
}

func NewLibrary() *Library {
	return &Library{
		sources:  make(map[string]Source),
		counters: make(map[scene.Kind]int),
	}
}

// NextID returns a fresh source id such as "video-0".
func (l *Library) NextID(kind scene.Kind) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		id := fmt.Sprintf("%s-%d", kind, l.counters[kind])
		l.counters[kind]++
		if _, taken := l.sources[id]; !taken {
			return id
		}
	}
}

// Add registers src. Ids must be unique.
func (l *Library) Add(src Source) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sources[src.ID()]; ok {
		return fmt.Errorf("media source %q already registered", src.ID())
	}
	l.sources[src.ID()] = src
	return nil
}

// Lookup resolves id. A miss is a MissingRenderTarget failure.
func (l *Library) Lookup(id string) (Source, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src, ok := l.sources[id]
	if !ok {
		return nil, failure.New(failure.CodeMissingRenderTarget, "media.lookup",
			fmt.Errorf("no media source %q", id))
	}
	return src, nil
}

// Remove unregisters and closes id.
func (l *Library) Remove(id string) bool {
	l.mu.Lock()
	src, ok := l.sources[id]
	delete(l.sources, id)
	l.mu.Unlock()
	if ok {
		src.Close()
	}
	return ok
}

// IDs lists registered source ids in sorted order.
func (l *Library) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.sources))
	for id := range l.sources {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close closes every source and empties the library.
func (l *Library) Close() error {
	l.mu.Lock()
	srcs := l.sources
	l.sources = make(map[string]Source)
	l.mu.Unlock()

	var firstErr error
	for _, s := range srcs {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
