package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartserve/internal/clock"
)

var start = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestMonitor_RecordSnapshotReplacesScope(t *testing.T) {
	clk := clock.NewManual(start)
	m := NewMonitor(clk)

	m.RecordSnapshot("kitchen", map[string]interface{}{"pending": 3, "service_requests": 1})
	clk.Advance(time.Second)
	m.RecordSnapshot("kitchen", map[string]interface{}{"pending": 1})

	snap, ok := m.Scope("kitchen")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"pending": 1}, snap.Figures)
	assert.Equal(t, start.Add(time.Second), snap.UpdatedAt)

	_, ok = m.Scope("realtime")
	assert.False(t, ok)
}

func TestMonitor_SetKeepsOtherFigures(t *testing.T) {
	m := NewMonitor(clock.NewManual(start))

	m.RecordSnapshot("realtime", map[string]interface{}{"feeds": 2})
	m.Set("realtime", "clients", int64(4))

	snap, ok := m.Scope("realtime")
	require.True(t, ok)
	assert.Equal(t, 2, snap.Figures["feeds"])
	assert.Equal(t, int64(4), snap.Figures["clients"])
}

func TestMonitor_Report(t *testing.T) {
	clk := clock.NewManual(start)
	m := NewMonitor(clk)
	figures := map[string]interface{}{"pending": 2}
	m.RecordSnapshot("kitchen", figures)
	figures["pending"] = 99

	clk.Advance(90 * time.Second)
	report := m.Report()

	assert.Equal(t, 90.0, report.UptimeSeconds)
	require.Contains(t, report.Scopes, "kitchen")
	assert.Equal(t, 2, report.Scopes["kitchen"].Figures["pending"])

	report.Scopes["kitchen"].Figures["pending"] = 7
	snap, _ := m.Scope("kitchen")
	assert.Equal(t, 2, snap.Figures["pending"])
}
