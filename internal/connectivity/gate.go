package connectivity

import (
	"sync"
	"time"
)

// Status is the combined connectivity view.
type Status struct {
	Online    bool      `json:"online"`
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check,omitempty"`
	// Available is false whenever either signal is negative; the UI then
	// shows the unavailable view.
	Available bool `json:"available"`
}

// Gate combines an OnlineWatcher and a HealthMonitor.
type Gate struct {
	online *OnlineWatcher
	health *HealthMonitor

	mu   sync.Mutex
	last *Status
	subs []func(Status)
}

// NewGate wires watcher and monitor into a gate.
func NewGate(online *OnlineWatcher, health *HealthMonitor) *Gate {
	g := &Gate{online: online, health: health}
	online.Subscribe(func(bool) { g.publish() })
	health.OnReport(func(HealthReport) { g.publish() })
	return g
}

// Status returns the current combined view.
func (g *Gate) Status() Status {
	report := g.health.Report()
	online := g.online.Online()
	return Status{
		Online:    online,
		Healthy:   report.Healthy,
		LastCheck: report.LastCheck,
		Available: online && report.Healthy,
	}
}

// Subscribe registers fn for every change of Status.Available, Online or
// Healthy. Probe timestamps alone do not notify.
func (g *Gate) Subscribe(fn func(Status)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, fn)
}

func (g *Gate) publish() {
	st := g.Status()

	g.mu.Lock()
	if g.last != nil && g.last.Online == st.Online && g.last.Healthy == st.Healthy {
		g.mu.Unlock()
		return
	}
	g.last = &st
	subs := append([]func(Status){}, g.subs...)
	g.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}
