package main

import (
	"context"
	"os"

	"pingmon/config"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"tailscale.com/client/tailscale"
)

// tsDiscover lists every device in the tailnet and turns it into a host
// entry. Ids are derived from the hostname so a rediscovered device keeps
// its identity (and its CSV log) across config reloads.
func tsDiscover(tailnet string) ([]config.HostConfig, error) {
	tailscale.I_Acknowledge_This_API_Is_Unstable = true

	client := tailscale.NewClient(tailnet, tailscale.APIKey(os.Getenv("TS_API_KEY")))

	devices, err := client.Devices(context.Background(), tailscale.DeviceAllFields)
	if err != nil {
		return nil, err
	}

	hosts := make([]config.HostConfig, 0, len(devices))
	for _, dev := range devices {
		hosts = append(hosts, config.HostConfig{
			ID:      uuid.NewSHA1(uuid.NameSpaceDNS, []byte(dev.Hostname)).String(),
			Name:    dev.Hostname,
			Address: dev.Hostname,
		})
	}

	log.Debugf("discovered %d tailnet devices", len(hosts))
	return hosts, nil
}

func appendTailnetHosts(cfg *config.Config) {
	if *tailnet == "" {
		return
	}

	hosts, err := tsDiscover(*tailnet)
	if err != nil {
		log.Errorf("tailscale discovery failed: %v", err)
		return
	}
	cfg.Hosts = append(cfg.Hosts, hosts...)
}
