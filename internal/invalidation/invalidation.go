package invalidation

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"media-curator/internal/logging"
	"media-curator/internal/metrics"
)

// Notifier is told whenever the content or location of a file changes.
// Invalidate must not block for long and never fails.
type Notifier interface {
	Invalidate(path string)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Invalidate(string) {}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Invalidate(path string) {
	for _, n := range m {
		n.Invalidate(path)
	}
}

// ThumbnailCache drops cached thumbnails of changed files.
type ThumbnailCache struct {
	dir string
}

// NewThumbnailCache returns a notifier for the thumbnail cache rooted at dir.
func NewThumbnailCache(dir string) *ThumbnailCache {
	return &ThumbnailCache{dir: dir}
}

// CachePath returns where the thumbnail of path is cached.
func (c *ThumbnailCache) CachePath(path string) string {
	hash := md5.Sum([]byte(path))
	return filepath.Join(c.dir, fmt.Sprintf("%x.jpg", hash))
}

// Invalidate removes the cached thumbnail of path, if any.
func (c *ThumbnailCache) Invalidate(path string) {
	cachePath := c.CachePath(path)
	err := os.Remove(cachePath)
	switch {
	case err == nil:
		logging.Debug("Invalidated thumbnail for %s", path)
		metrics.InvalidationsTotal.WithLabelValues("delivered").Inc()
	case os.IsNotExist(err):
		metrics.InvalidationsTotal.WithLabelValues("delivered").Inc()
	default:
		logging.Warn("Failed to remove cached thumbnail %s for %s: %v", cachePath, path, err)
		metrics.InvalidationsTotal.WithLabelValues("error").Inc()
	}
}

// Async delivers notifications to a downstream notifier on a background
// goroutine. When the queue is full, or after Close, the notification is
// dropped.
type Async struct {
	next  Notifier
	queue chan string
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts a dispatcher with a queue of the given size.
func NewAsync(next Notifier, size int) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{next: next, queue: make(chan string, size)}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for path := range a.queue {
		a.next.Invalidate(path)
	}
}

// Invalidate queues path without blocking.
func (a *Async) Invalidate(path string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		logging.Debug("Invalidation after close, dropping notification for %s", path)
		metrics.InvalidationsTotal.WithLabelValues("dropped").Inc()
		return
	}
	select {
	case a.queue <- path:
	default:
		logging.Warn("Invalidation queue full, dropping notification for %s", path)
		metrics.InvalidationsTotal.WithLabelValues("dropped").Inc()
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered. Later calls to Invalidate are dropped.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	a.wg.Wait()
}
