package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"syscall"

	"pingmon/config"
	"pingmon/monitor"

	"github.com/alecthomas/kingpin/v2"
	"github.com/digineo/go-ping"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const version string = "0.6.1"

var (
	showVersion   = kingpin.Flag("version", "Print version information").Default().Bool()
	listenAddress = kingpin.Flag("web.listen-address", "Address on which to expose metrics and status").Default(":9436").String()
	metricsPath   = kingpin.Flag("web.telemetry-path", "Path under which to expose metrics").Default("/metrics").String()
	configFile    = kingpin.Flag("config.path", "Path to config file").Default("config.yml").String()
	pingInterval  = kingpin.Flag("ping.interval", "Interval between probes of a host").Default("5s").Duration()
	peakThreshold = kingpin.Flag("ping.peak-threshold", "Margin over the rolling median latency that marks a sample as a peak").Default("200ms").Duration()
	pingSize      = kingpin.Flag("ping.size", "Payload size for ICMP echo requests").Default("56").Uint16()
	logDirectory  = kingpin.Flag("log.directory", "Directory for per-host CSV latency logs").Default("logs").String()
	dnsNameServer = kingpin.Flag("dns.nameserver", "DNS server used to resolve host addresses").Default("").String()
	logLevel      = kingpin.Flag("log.level", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error, fatal]").Default("info").String()
	tailnet       = kingpin.Flag("discover.tailscale", "Tailnet whose devices are added as monitored hosts").Default("").String()
)

func main() {
	kingpin.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	setLogLevel(*logLevel)

	if mpath := *metricsPath; mpath == "" {
		log.Warnln("web.telemetry-path is empty, correcting to `/metrics`")
		mpath = "/metrics"
		metricsPath = &mpath
	} else if mpath[0] != '/' {
		mpath = "/" + mpath
		metricsPath = &mpath
	}

	if *pingSize > 65500 {
		kingpin.FatalUsage("ping.size must be between 0 and 65500")
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		kingpin.FatalUsage("could not load config.path: %v", err)
	}

	appendTailnetHosts(cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		kingpin.FatalUsage("invalid configuration: %v", err)
	}

	if len(cfg.Hosts) == 0 {
		kingpin.FatalUsage("at least one host must be configured")
	}

	pinger, err := startPinger()
	if err != nil {
		log.Errorln(err)
		os.Exit(2)
	}

	registry := monitor.NewRegistry(cfg, pinger, setupResolver(cfg))
	registry.StartAll()

	go watchConfig(*configFile, registry)
	go startServer(registry)

	term := make(chan os.Signal, 1)
	signal.Notify(term, os.Interrupt, syscall.SIGTERM)
	<-term

	log.Infoln("Shutting down")
	registry.StopAll()
	pinger.Close()
}

func printVersion() {
	fmt.Println("pingmon")
	fmt.Printf("Version: %s\n", version)
	fmt.Println("Latency monitor with peak detection and per-host CSV logs")
}

func startPinger() (*ping.Pinger, error) {
	var bind4, bind6 string
	if ln, err := net.Listen("tcp4", "127.0.0.1:0"); err == nil {
		// ipv4 enabled
		ln.Close()
		bind4 = "0.0.0.0"
	}
	if ln, err := net.Listen("tcp6", "[::1]:0"); err == nil {
		// ipv6 enabled
		ln.Close()
		bind6 = "::"
	}

	pinger, err := ping.New(bind4, bind6)
	if err != nil {
		return nil, fmt.Errorf("cannot start monitoring: %w", err)
	}

	if pinger.PayloadSize() != *pingSize {
		pinger.SetPayloadSize(*pingSize)
	}

	return pinger, nil
}

func startServer(registry *monitor.Registry) {
	log.Infof("Starting pingmon (Version: %s)", version)
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, indexHTML, *metricsPath)
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(&pingCollector{registry: registry})

	l := log.New()
	l.Level = log.ErrorLevel

	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog:      l,
		ErrorHandling: promhttp.ContinueOnError,
	})
	http.Handle(*metricsPath, h)

	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		statusHandler(w, registry)
	})

	log.Infof("Listening for %s on %s", *metricsPath, *listenAddress)
	log.Fatal(http.ListenAndServe(*listenAddress, nil))
}

type statusResponse struct {
	Hosts   map[string]monitor.Stats `json:"hosts"`
	Display *monitor.Stats           `json:"display,omitempty"`
	Text    string                   `json:"text"`
}

func statusHandler(w http.ResponseWriter, registry *monitor.Registry) {
	cfg := registry.Config()

	resp := statusResponse{Hosts: registry.Latest(), Text: "No Data"}
	if s, ok := registry.Select(); ok {
		resp.Display = &s
		resp.Text = monitor.FormatDisplay(s, cfg.Display.ShowLatency, cfg.Display.ShowLabels)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Errorf("cannot write status response: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("config file %s not found, using defaults", path)
			cfg := config.Default()
			addFlagToConfig(cfg)

			return cfg, nil
		}

		return nil, fmt.Errorf("cannot load config file: %w", err)
	}
	defer f.Close()

	cfg, err := config.FromYAML(f)
	if err == nil {
		addFlagToConfig(cfg)
	}

	return cfg, err
}

// watchConfig reloads the configuration whenever the config file is
// rewritten. A reload that fails to parse or validate is logged and the
// running configuration is kept.
func watchConfig(path string, registry *monitor.Registry) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Errorf("cannot watch config file: %v", err)
		return
	}
	defer w.Close()

	// Editors often replace the file instead of writing in place, so the
	// directory is watched rather than the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		log.Errorf("cannot watch config file: %v", err)
		return
	}

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			reloadConfig(path, registry)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Errorf("error watching config file: %v", err)
		}
	}
}

func reloadConfig(path string, registry *monitor.Registry) {
	cfg, err := loadConfig(path)
	if err != nil {
		log.Errorf("config reload failed: %v", err)
		return
	}

	appendTailnetHosts(cfg)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		log.Errorf("config reload failed: %v", err)
		return
	}

	applyConfig(registry, cfg)
	log.Infof("configuration reloaded from %s", path)
}

// applyConfig swaps the registry configuration and reconciles the running
// monitors: hosts whose settings changed are restarted, removed hosts are
// stopped. Hosts with unchanged settings keep their monitor and history.
func applyConfig(registry *monitor.Registry, cfg *config.Config) {
	old := registry.Config()
	running := registry.Latest()
	registry.SetConfig(cfg)

	pingChanged := !reflect.DeepEqual(old.Ping, cfg.Ping) || old.Log.Directory != cfg.Log.Directory

	known := make(map[string]config.HostConfig, len(old.Hosts))
	for _, h := range old.Hosts {
		known[h.ID] = h
	}

	for _, h := range cfg.Hosts {
		prev, seen := known[h.ID]
		delete(known, h.ID)

		if _, up := running[h.ID]; up && seen && !pingChanged && reflect.DeepEqual(prev, h) {
			continue
		}
		if err := registry.Start(h.ID); err != nil {
			log.Errorf("cannot start monitoring %s: %v", h.Name, err)
		}
	}

	for id, h := range known {
		if err := registry.Stop(id); err != nil {
			log.Errorf("cannot stop monitoring %s: %v", h.Name, err)
		}
	}
}

// addFlagToConfig updates cfg with command line flag values, unless the
// config has non-zero values.
func addFlagToConfig(cfg *config.Config) {
	if cfg.Ping.Interval == 0 {
		cfg.Ping.Interval.Set(*pingInterval)
	}
	if cfg.Ping.PeakThreshold == 0 {
		cfg.Ping.PeakThreshold.Set(*peakThreshold)
	}
	if cfg.Log.Directory == "" {
		cfg.Log.Directory = *logDirectory
	}
	if cfg.DNS.Nameserver == "" {
		cfg.DNS.Nameserver = *dnsNameServer
	}
}

const indexHTML = `<!doctype html>
<html>
<head>
	<meta charset="UTF-8">
	<title>pingmon (Version ` + version + `)</title>
</head>
<body>
	<h1>pingmon</h1>
	<p><a href="%s">Metrics</a></p>
	<p><a href="/status">Status</a></p>
</body>
</html>
`
