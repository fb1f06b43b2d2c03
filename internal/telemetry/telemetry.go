package telemetry

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// Collector reads link stats for the uplink interface so the status surface
// can show whether the radio link is the bottleneck.
type Collector struct {
	fs        procfs.FS
	netDevice string
}

func NewCollector(netDevice string) (*Collector, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("error: procfs unavailable: %w", err)
	}
	return &Collector{
		fs:        fs,
		netDevice: netDevice,
	}, nil
}

// NetBytes returns cumulative rx/tx byte counters for the configured
// interface.
func (c *Collector) NetBytes() (rx, tx uint64, err error) {
	netDev, err := c.fs.NetDev()
	if err != nil {
		return 0, 0, fmt.Errorf("error: failed getting netstat: %w", err)
	}

	line, ok := netDev[c.netDevice]
	if !ok {
		return 0, 0, fmt.Errorf("error: failed getting %s stats: not found", c.netDevice)
	}
	return line.RxBytes, line.TxBytes, nil
}

// Load1 returns the one-minute load average.
func (c *Collector) Load1() (float64, error) {
	loadAvg, err := c.fs.LoadAvg()
	if err != nil {
		return 0, fmt.Errorf("error: failed getting loadavg: %w", err)
	}
	return loadAvg.Load1, nil
}
