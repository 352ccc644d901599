package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"pingmon/config"
)

// Errors surfaced by registry lifecycle operations.
var (
	ErrHostNotFound    = errors.New("host not found")
	ErrMalformedHostID = errors.New("malformed host id")
)

const resolveTimeout = 10 * time.Second

// Resolver resolves a hostname to IP addresses. *net.Resolver
// satisfies this.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Registry owns every running Monitor, keyed by host id, together with
// the latest snapshot per host. Installing a Monitor for an id that is
// already running first stops the old instance completely; the map
// never holds two monitors for one host.
type Registry struct {
	prober   Prober
	resolver Resolver

	mu       sync.Mutex
	cfg      *config.Config
	monitors map[uuid.UUID]*Monitor
	latest   map[uuid.UUID]Stats
}

// NewRegistry builds an empty registry. A nil resolver falls back to
// net.DefaultResolver.
func NewRegistry(cfg *config.Config, prober Prober, resolver Resolver) *Registry {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Registry{
		prober:   prober,
		resolver: resolver,
		cfg:      cfg,
		monitors: make(map[uuid.UUID]*Monitor),
		latest:   make(map[uuid.UUID]Stats),
	}
}

// Start begins monitoring the configured host with the given id. A
// Monitor already running for that id is stopped and replaced; its
// probe loop has fully unwound before the new one may touch the same
// log file.
func (r *Registry) Start(hostID string) error {
	id, err := uuid.Parse(hostID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrMalformedHostID, hostID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.monitors[id]; ok {
		delete(r.monitors, id)
		old.Stop()
		old.wait()
	}

	cfg := r.cfg
	host, ok := findHost(cfg.Hosts, id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrHostNotFound, hostID)
	}

	addr, err := r.resolve(host.Address)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", host.Address, err)
	}

	if err := os.MkdirAll(cfg.Log.Directory, 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logPath := filepath.Join(cfg.Log.Directory, "ping_"+id.String()+".csv")

	m := New(host, addr, r.prober, cfg.Ping.Interval.Duration(), cfg.Ping.PeakThreshold.Duration(), logPath)

	sub := m.Subscribe()
	cctx, cancel := context.WithCancel(context.Background())
	m.AddCancel(cancel)
	go r.consume(cctx, id, host.Name, m, sub)

	if err := m.Start(); err != nil {
		m.Stop()
		return err
	}

	r.monitors[id] = m
	r.latest[id] = m.Latest()
	log.Infof("%s: monitoring %s", host.Name, host.Address)
	return nil
}

// Stop stops and removes the Monitor for the given host id.
func (r *Registry) Stop(hostID string) error {
	id, err := uuid.Parse(hostID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrMalformedHostID, hostID)
	}

	r.mu.Lock()
	m, ok := r.monitors[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrHostNotFound, hostID)
	}
	delete(r.monitors, id)
	r.mu.Unlock()

	m.Stop()
	return nil
}

// StartAll starts a Monitor for every configured host. Per-host
// failures are logged and skipped so one bad host cannot keep the
// rest down.
func (r *Registry) StartAll() {
	r.mu.Lock()
	hosts := r.cfg.Hosts
	r.mu.Unlock()

	for _, h := range hosts {
		if err := r.Start(h.ID); err != nil {
			log.Errorf("%s: starting monitor: %v", h.Name, err)
		}
	}
}

// StopAll stops every running Monitor.
func (r *Registry) StopAll() {
	r.mu.Lock()
	stopping := make([]*Monitor, 0, len(r.monitors))
	for id, m := range r.monitors {
		stopping = append(stopping, m)
		delete(r.monitors, id)
	}
	r.mu.Unlock()

	for _, m := range stopping {
		m.Stop()
	}
}

// Latest returns a copy of the newest snapshot per host, keyed by the
// host id string.
func (r *Registry) Latest() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stats, len(r.latest))
	for id, s := range r.latest {
		out[id.String()] = s
	}
	return out
}

// Select runs the display selector over the latest snapshots with the
// configured strategy and host order.
func (r *Registry) Select() (Stats, bool) {
	r.mu.Lock()
	strategy := r.cfg.Display.Strategy
	hosts := r.cfg.Hosts
	latest := make(map[string]Stats, len(r.latest))
	for id, s := range r.latest {
		latest[id.String()] = s
	}
	r.mu.Unlock()

	return SelectSnapshot(strategy, hosts, latest)
}

// SetConfig swaps the configuration wholesale. Strategy and host order
// take effect on the next selection; running monitors keep their rules
// and interval until restarted.
func (r *Registry) SetConfig(cfg *config.Config) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

// Config returns the current configuration. Callers must treat it as
// read-only; it may be swapped out from under them at any time.
func (r *Registry) Config() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// consume is the registry's own subscriber loop for one Monitor: it
// maintains the latest-snapshot cache and reports lag and status
// transitions.
func (r *Registry) consume(ctx context.Context, id uuid.UUID, name string, owner *Monitor, sub *Subscription) {
	var lastStatus Status
	var lastPeak time.Time
	for {
		select {
		case <-ctx.Done():
			owner.Unsubscribe(sub)
			r.dropLatest(id, owner)
			return
		case u, ok := <-sub.C():
			if !ok {
				r.dropLatest(id, owner)
				return
			}
			if u.Skipped > 0 {
				log.Warnf("%s: consumer lagged, skipped %d snapshots", name, u.Skipped)
			}
			r.mu.Lock()
			r.latest[id] = u.Stats
			r.mu.Unlock()
			if u.Stats.LastPeak != nil && u.Stats.LastPeak.After(lastPeak) {
				lastPeak = *u.Stats.LastPeak
				log.Debugf("%s: latency peak, %d in the last minute", name, int(u.Stats.PeaksPerMinute))
			}
			if u.Stats.Status != lastStatus {
				log.Infof("%s: status %s", name, u.Stats.Status)
				lastStatus = u.Stats.Status
			}
		}
	}
}

// dropLatest clears the cache entry for id unless a replacement
// Monitor has already started caching snapshots of its own.
func (r *Registry) dropLatest(id uuid.UUID, owner *Monitor) {
	r.mu.Lock()
	if cur, ok := r.monitors[id]; !ok || cur == owner {
		delete(r.latest, id)
	}
	r.mu.Unlock()
}

// resolve turns a configured address into a probe target. Literal IPs
// skip DNS entirely.
func (r *Registry) resolve(address string) (*net.IPAddr, error) {
	if ip := net.ParseIP(address); ip != nil {
		return &net.IPAddr{IP: ip}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	addrs, err := r.resolver.LookupIPAddr(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for %s", address)
	}
	return &addrs[0], nil
}

func findHost(hosts []config.HostConfig, id uuid.UUID) (config.HostConfig, bool) {
	for _, h := range hosts {
		if hid, err := uuid.Parse(h.ID); err == nil && hid == id {
			return h, true
		}
	}
	return config.HostConfig{}, false
}
