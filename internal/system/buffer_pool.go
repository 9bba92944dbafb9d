package system

import (
	"image"
	"sync"
	"sync/atomic"
)

// ImagePool recycles *image.RGBA frames by size so the capture loop does not
// allocate a full frame per tick.
type ImagePool struct {
	mu        sync.RWMutex
	pools     map[image.Rectangle]*sync.Pool
	allocated atomic.Int64
}

// NewImagePool creates an empty pool.
func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Rectangle]*sync.Pool)}
}

var sharedPool = NewImagePool()

// SharedImagePool is the process-wide pool. Successive exports of the same
// canvas size reuse each other's frames through it.
func SharedImagePool() *ImagePool {
	return sharedPool
}

// Get returns a pooled frame or allocates one. Contents are unspecified.
func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.RLock()
	pool, ok := p.pools[rect]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		pool, ok = p.pools[rect]
		if !ok {
			pool = &sync.Pool{
				New: func() any {
					p.allocated.Add(1)
					return image.NewRGBA(rect)
				},
			}
			p.pools[rect] = pool
		}
		p.mu.Unlock()
	}
	return pool.Get().(*image.RGBA)
}

// Put returns img to the pool. Frames of a size never requested are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, ok := p.pools[img.Rect]
	p.mu.RUnlock()
	if ok {
		pool.Put(img)
	}
}

// Allocated is the number of frames the pool had to create.
func (p *ImagePool) Allocated() int64 {
	return p.allocated.Load()
}
