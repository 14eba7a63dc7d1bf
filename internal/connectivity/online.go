// Package connectivity tracks whether the analysis service is usable: a
// platform online signal and a periodic health probe, combined by a Gate.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// OnlineWatcher holds the edge-triggered online flag.
type OnlineWatcher struct {
	logger *slog.Logger
	// detect reports the platform's view of connectivity for RunInterfaceSource.
	detect func() (bool, error)

	notifyMu sync.Mutex
	mu       sync.RWMutex
	online   bool
	subs     map[int]func(bool)
	nextID   int
}

// NewOnlineWatcher creates a watcher starting at initial.
func NewOnlineWatcher(initial bool, logger *slog.Logger) *OnlineWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnlineWatcher{
		logger: logger,
		detect: interfacesUp,
		online: initial,
		subs:   make(map[int]func(bool)),
	}
}

// Online returns the current flag.
func (w *OnlineWatcher) Online() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.online
}

// Set records a platform signal. Subscribers run only when the value flips,
// in order, and must not call Set themselves.
func (w *OnlineWatcher) Set(online bool) bool {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	w.mu.Lock()
	if w.online == online {
		w.mu.Unlock()
		return false
	}
	w.online = online
	subs := make([]func(bool), 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.mu.Unlock()

	w.logger.Info("Online state changed", "online", online)
	for _, fn := range subs {
		fn(online)
	}
	return true
}

// Subscribe registers fn for edges. The returned func removes it.
func (w *OnlineWatcher) Subscribe(fn func(online bool)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// RunInterfaceSource feeds Set from the host's network interfaces until ctx
// ends: online means some non-loopback interface is up with an address.
func (w *OnlineWatcher) RunInterfaceSource(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interface check interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("Interface watcher started", "interval", interval)
	for {
		if err := w.Refresh(); err != nil {
			w.logger.Warn("Interface check failed", "error", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			w.logger.Info("Interface watcher shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Refresh reads the host's interfaces once and records the result.
func (w *OnlineWatcher) Refresh() error {
	online, err := w.detect()
	if err != nil {
		return err
	}
	w.Set(online)
	return nil
}

func interfacesUp() (bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if len(addrs) > 0 {
			return true, nil
		}
	}
	return false, nil
}
