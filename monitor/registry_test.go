package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pingmon/config"
)

func testConfig(t *testing.T, hosts ...config.HostConfig) *config.Config {
	t.Helper()
	cfg := &config.Config{Hosts: hosts}
	cfg.Ping.Interval.Set(10 * time.Millisecond)
	cfg.Ping.PeakThreshold.Set(200 * time.Millisecond)
	cfg.Display.Strategy = config.StrategyFirst
	cfg.Display.ShowLatency = true
	cfg.Display.ShowLabels = true
	cfg.Log.Directory = t.TempDir()
	return cfg
}

func testHost(name string) config.HostConfig {
	return config.HostConfig{ID: uuid.NewString(), Name: name, Address: "127.0.0.1"}
}

func TestRegistryStartErrors(t *testing.T) {
	r := NewRegistry(testConfig(t), &fakeProber{}, nil)

	require.ErrorIs(t, r.Start("not-a-uuid"), ErrMalformedHostID)
	require.ErrorIs(t, r.Start(uuid.NewString()), ErrHostNotFound)

	require.ErrorIs(t, r.Stop("not-a-uuid"), ErrMalformedHostID)
	require.ErrorIs(t, r.Stop(uuid.NewString()), ErrHostNotFound)
}

func TestRegistryStartStop(t *testing.T) {
	host := testHost("A")
	r := NewRegistry(testConfig(t, host), &fakeProber{}, nil)

	require.NoError(t, r.Start(host.ID))

	s, ok := r.Latest()[host.ID]
	require.True(t, ok, "snapshot cache must be seeded on start")
	require.Equal(t, host.ID, s.HostID)

	require.Eventually(t, func() bool {
		s, ok := r.Latest()[host.ID]
		return ok && s.TotalPings >= 1
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, r.Stop(host.ID))
	require.ErrorIs(t, r.Stop(host.ID), ErrHostNotFound)

	require.Eventually(t, func() bool {
		_, ok := r.Latest()[host.ID]
		return !ok
	}, 5*time.Second, 5*time.Millisecond, "cache entry must go away once the consumer sees closure")
}

func TestRegistryReplace(t *testing.T) {
	host := testHost("A")
	cfg := testConfig(t, host)
	r := NewRegistry(cfg, &fakeProber{}, nil)

	require.NoError(t, r.Start(host.ID))
	id := uuid.MustParse(host.ID)

	r.mu.Lock()
	first := r.monitors[id]
	r.mu.Unlock()

	require.NoError(t, r.Start(host.ID))

	r.mu.Lock()
	second := r.monitors[id]
	r.mu.Unlock()

	require.NotSame(t, first, second)
	require.ErrorIs(t, first.Start(), ErrStopped, "the replaced monitor must be stopped")

	_, ok := r.Latest()[host.ID]
	require.True(t, ok, "the replacement must keep a cache entry")

	r.StopAll()

	// Both monitors wrote to the same log file; the header must appear
	// exactly once.
	raw, err := os.ReadFile(filepath.Join(cfg.Log.Directory, "ping_"+host.ID+".csv"))
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(raw), "Timestamp"))
}

func TestRegistryStartAllContinuesOnFailure(t *testing.T) {
	good := testHost("good")
	bad := config.HostConfig{ID: "not-a-uuid", Name: "bad", Address: "127.0.0.1"}
	r := NewRegistry(testConfig(t, bad, good), &fakeProber{}, nil)

	r.StartAll()

	latest := r.Latest()
	require.Len(t, latest, 1)
	require.Contains(t, latest, good.ID)

	r.StopAll()
	require.Eventually(t, func() bool { return len(r.Latest()) == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestRegistryUppercaseHostID(t *testing.T) {
	host := config.HostConfig{ID: "3D8C9FC4-42F5-4404-935F-2DD04B442686", Name: "A", Address: "127.0.0.1"}
	cfg := testConfig(t, host)
	cfg.SetDefaults()

	r := NewRegistry(cfg, &fakeProber{}, nil)
	require.NoError(t, r.Start(cfg.Hosts[0].ID))
	defer r.StopAll()

	_, ok := r.Latest()[cfg.Hosts[0].ID]
	require.True(t, ok, "running host must be findable under its configured id")

	s, ok := r.Select()
	require.True(t, ok)
	require.Equal(t, cfg.Hosts[0].ID, s.HostID, "first strategy must hit the configured host")
}

func TestRegistrySelect(t *testing.T) {
	a := testHost("A")
	b := testHost("B")
	cfg := testConfig(t, a, b)
	cfg.Display.Strategy = config.StrategyWorst

	r := NewRegistry(cfg, nil, nil)

	_, ok := r.Select()
	require.False(t, ok, "nothing to select without snapshots")

	r.mu.Lock()
	r.latest[uuid.MustParse(a.ID)] = Stats{HostID: a.ID, Current: 10}
	r.latest[uuid.MustParse(b.ID)] = Stats{HostID: b.ID, Current: 30}
	r.mu.Unlock()

	s, ok := r.Select()
	require.True(t, ok)
	require.Equal(t, 30.0, s.Current)

	next := testConfig(t, a, b)
	next.Display.Strategy = config.StrategyFirst
	r.SetConfig(next)

	s, ok = r.Select()
	require.True(t, ok)
	require.Equal(t, a.ID, s.HostID, "first strategy follows configured host order")
}
