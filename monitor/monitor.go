package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"pingmon/config"
)

const (
	// probeTimeout caps one probe. It is independent of the configured
	// inter-probe interval.
	probeTimeout = 2 * time.Second

	// timeoutLatency is the sentinel recorded for timed-out probes.
	timeoutLatency = 2000.0

	// loopYield is a short pause between loop iterations so one host
	// cannot starve the others. It is not part of measured timing.
	loopYield = 10 * time.Millisecond
)

// csvHeader is written once when a host's log file is created.
const csvHeader = "Timestamp,Latency,IsPeak,Success"

// Lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("monitor already started")
	ErrStopped        = errors.New("monitor stopped")
	ErrNoProber       = errors.New("no probe source")
)

// Prober issues a single echo probe. *ping.Pinger satisfies this.
type Prober interface {
	PingContext(ctx context.Context, addr *net.IPAddr) (time.Duration, error)
}

type state int

const (
	stateCreated state = iota
	stateRunning
	stateStopped
)

// Monitor probes one host at a fixed interval, keeps its bounded
// sample history and derived statistics, appends every sample to the
// host's log file, and publishes every snapshot to subscribers.
//
// A Monitor runs at most once: Created -> Running -> Stopped, with
// Stopped terminal. Restarting a host means building a new Monitor.
type Monitor struct {
	hostID    string
	name      string
	addr      *net.IPAddr
	prober    Prober
	interval  time.Duration
	threshold float64 // peak margin over the baseline, in milliseconds
	rules     []config.DisplayRule
	logPath   string

	mu      sync.Mutex
	state   state
	history History
	stats   Stats
	cancels []context.CancelFunc

	wg    sync.WaitGroup
	bcast *broadcaster
}

// New builds a Monitor for one host. addr is the resolved probe
// target, logPath the per-host CSV file, peakThreshold the margin a
// sample must exceed over the rolling baseline to count as a peak.
func New(host config.HostConfig, addr *net.IPAddr, prober Prober, interval, peakThreshold time.Duration, logPath string) *Monitor {
	return &Monitor{
		hostID:    host.ID,
		name:      host.Name,
		addr:      addr,
		prober:    prober,
		interval:  interval,
		threshold: float64(peakThreshold) / float64(time.Millisecond),
		rules:     host.Rules,
		logPath:   logPath,
		stats:     newStats(host.ID, time.Now().UTC()),
		bcast:     newBroadcaster(),
	}
}

// Start transitions the Monitor to Running and launches its probe
// loop. It fails if the log file cannot be prepared, if there is no
// probe source, or if the Monitor was started or stopped before.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}
	if m.prober == nil {
		return ErrNoProber
	}
	if err := ensureLogFile(m.logPath); err != nil {
		return fmt.Errorf("preparing log file: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancels = append(m.cancels, cancel)
	m.state = stateRunning

	m.wg.Add(1)
	go m.run(ctx)

	return nil
}

// Stop cancels every task registered with the Monitor and closes the
// broadcast channel. It is idempotent and safe in every state; it does
// not wait for consumer goroutines to unwind.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state == stateStopped {
		m.mu.Unlock()
		return
	}
	m.state = stateStopped
	cancels := m.cancels
	m.cancels = nil
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	m.bcast.Close()
}

// wait blocks until the probe loop has unwound. The registry uses it
// when replacing a monitor so two loops never append to the same log
// file.
func (m *Monitor) wait() {
	m.wg.Wait()
}

// AddCancel registers an externally spawned task (such as a consumer
// loop) for teardown on Stop. If the Monitor is already stopped the
// cancel fires immediately.
func (m *Monitor) AddCancel(cancel context.CancelFunc) {
	m.mu.Lock()
	if m.state == stateStopped {
		m.mu.Unlock()
		cancel()
		return
	}
	m.cancels = append(m.cancels, cancel)
	m.mu.Unlock()
}

// Subscribe attaches a new consumer to the Monitor's snapshot stream.
func (m *Monitor) Subscribe() *Subscription {
	return m.bcast.Subscribe()
}

// Unsubscribe detaches a consumer early. Consumers of a stopping
// Monitor do not need to call this; closure detaches them.
func (m *Monitor) Unsubscribe(sub *Subscription) {
	m.bcast.Unsubscribe(sub)
}

// Latest returns a copy of the most recent snapshot.
func (m *Monitor) Latest() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// run is the probe loop: probe, yield, record, sleep, repeat.
func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		rtt, err := m.prober.PingContext(pctx, m.addr)
		cancel()

		// Brief yield so one host's loop cannot starve the others.
		// Doubles as the cancellation check after each probe.
		if !sleepCtx(ctx, loopYield) {
			return
		}

		now := time.Now().UTC()
		switch {
		case err == nil:
			m.observe(now, float64(rtt)/float64(time.Millisecond), true)
		case ctx.Err() != nil:
			return
		case isTimeout(err):
			m.observe(now, timeoutLatency, false)
		default:
			log.Debugf("%s: probe error: %v", m.name, err)
			m.observe(now, timeoutLatency, false)
		}

		if !sleepCtx(ctx, m.interval) {
			return
		}
	}
}

// observe ingests one probe outcome: flags peaks against the rolling
// baseline, recomputes the snapshot, appends the log row and publishes.
func (m *Monitor) observe(now time.Time, latency float64, success bool) {
	m.mu.Lock()
	isPeak := true
	if success {
		isPeak = latency > m.history.peakBaseline(latency)+m.threshold
	}
	m.history.Add(Sample{Timestamp: now, Latency: latency, Success: success, IsPeak: isPeak})
	m.stats = computeStats(m.stats, m.history.samples, m.rules)
	snapshot := m.stats
	m.mu.Unlock()

	if err := m.appendLog(now, latency, isPeak, success); err != nil {
		log.Errorf("%s: appending log: %v", m.name, err)
	}

	m.bcast.Publish(snapshot)
}

// appendLog writes one CSV row. The file is opened per write; no
// handle is held across iterations.
func (m *Monitor) appendLog(now time.Time, latency float64, isPeak, success bool) error {
	f, err := os.OpenFile(m.logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	ts := now.Format(time.RFC3339Nano)
	if !success {
		_, err = fmt.Fprintf(f, "%s,2000.0,true,false\n", ts)
		return err
	}
	_, err = fmt.Fprintf(f, "%s,%s,%t,true\n", ts, strconv.FormatFloat(latency, 'f', -1, 64), isPeak)
	return err
}

// ensureLogFile creates path with the CSV header iff it does not
// already exist.
func ensureLogFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(csvHeader+"\n"), 0o644)
}

// sleepCtx sleeps for d unless ctx is cancelled first. It reports
// whether the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
