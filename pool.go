package notesite

import (
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps concurrent builds; each PDF worker owns a browser
	// (~200MB).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for typst and Chrome child processes.
	cpuDivisor = 2
)

// rendererPool hands out PDF renderers, one browser each.
// Renderers are created lazily on first acquire to avoid startup delay.
type rendererPool struct {
	size      int
	newFn     func() pdfRenderer
	renderers []pdfRenderer
	sem       chan pdfRenderer
	mu        sync.Mutex
	created   int
	closed    bool
}

func newRendererPool(n int, newFn func() pdfRenderer) *rendererPool {
	if n < 1 {
		n = 1
	}
	return &rendererPool{
		size:      n,
		newFn:     newFn,
		renderers: make([]pdfRenderer, 0, n),
		sem:       make(chan pdfRenderer, n),
	}
}

// acquire gets a renderer from the pool, creating one if needed.
// Blocks if all renderers are in use.
func (p *rendererPool) acquire() pdfRenderer {
	select {
	case r := <-p.sem:
		return r
	default:
	}

	p.mu.Lock()
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		r := p.newFn()

		p.mu.Lock()
		p.renderers = append(p.renderers, r)
		p.mu.Unlock()
		return r
	}
	p.mu.Unlock()

	return <-p.sem
}

// release returns a renderer to the pool.
// The lock is released before sending to avoid deadlock when channel is full.
func (p *rendererPool) release(r pdfRenderer) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.sem <- r
}

// close releases all browser resources.
// Returns an aggregated error if multiple renderers fail to close.
func (p *rendererPool) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	renderers := p.renderers
	p.mu.Unlock()

	var errs []error
	for _, r := range renderers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolvePoolSize determines how many notes are built at once.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs for containers.
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
