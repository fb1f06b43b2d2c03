package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectorReadsHostStats(t *testing.T) {
	collector, err := NewCollector("lo")
	require.NoError(t, err)

	_, _, err = collector.NetBytes()
	require.NoError(t, err)

	load, err := collector.Load1()
	require.NoError(t, err)
	require.GreaterOrEqual(t, load, 0.0)
}

func TestNetBytesUnknownInterface(t *testing.T) {
	collector, err := NewCollector("definitely-not-a-nic")
	require.NoError(t, err)

	_, _, err = collector.NetBytes()
	require.Error(t, err)
}
