package sysinfo

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MonitorType tags every metrics snapshot on the wire.
const MonitorType = "monitor"

// NotAvailable is reported for values that could not be read.
const NotAvailable = "N/A"

// Snapshot is one sample of host metrics. Memory figures are in MiB.
type Snapshot struct {
	UptimeSecs     float64
	RAMTotalMB     float64
	RAMAvailableMB float64
	RAMUsedMB      float64
	RAMBufferedMB  float64
	RAMCachedMB    float64
	DiskUsed       string
	DiskTotal      string
	DiskPercent    int
	IP             string
	ExternalIP     string
	NetRX          string
	NetTX          string
	Processes      int
	Kernel         string
}

// wireSnapshot fixes field order and numeric precision of the wire form.
type wireSnapshot struct {
	Type      string      `json:"type"`
	Uptime    json.Number `json:"uptime"`
	RAMUsed   json.Number `json:"ram_used"`
	RAMTotal  json.Number `json:"ram_total"`
	DiskUsed  string      `json:"disk_used"`
	DiskTotal string      `json:"disk_total"`
	DiskPct   int         `json:"disk_pct"`
	IP        string      `json:"ip"`
	ExtIP     string      `json:"ext_ip"`
	NetRX     string      `json:"net_rx"`
	NetTX     string      `json:"net_tx"`
	Procs     int         `json:"procs"`
}

// Wire serializes the snapshot to its published JSON form.
func (s Snapshot) Wire() []byte {
	data, err := json.Marshal(wireSnapshot{
		Type:      MonitorType,
		Uptime:    fixed(s.UptimeSecs, 2),
		RAMUsed:   fixed(s.RAMUsedMB, 1),
		RAMTotal:  fixed(s.RAMTotalMB, 1),
		DiskUsed:  s.DiskUsed,
		DiskTotal: s.DiskTotal,
		DiskPct:   s.DiskPercent,
		IP:        s.IP,
		ExtIP:     s.ExternalIP,
		NetRX:     s.NetRX,
		NetTX:     s.NetTX,
		Procs:     s.Processes,
	})
	if err != nil {
		return []byte(unavailableWire)
	}
	return data
}

// unavailableWire keeps the full field set when a snapshot cannot be encoded.
const unavailableWire = `{"type":"monitor","uptime":0.00,"ram_used":0.0,"ram_total":0.0,` +
	`"disk_used":"N/A","disk_total":"N/A","disk_pct":0,"ip":"N/A","ext_ip":"N/A",` +
	`"net_rx":"N/A","net_tx":"N/A","procs":0}`

// fixed renders v with prec decimals. NaN and infinities have no JSON
// form and are reported as zero.
func fixed(v float64, prec int) json.Number {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return json.Number(strconv.FormatFloat(v, 'f', prec, 64))
}

// FormatBytes renders a byte count as KB, M or G the way the dashboard shows it.
func FormatBytes(n uint64) string {
	const (
		mib = 1 << 20
		gib = 1 << 30
	)
	switch {
	case n >= gib:
		return fmt.Sprintf("%.1fG", float64(n)/gib)
	case n >= mib:
		return fmt.Sprintf("%.1fM", float64(n)/mib)
	default:
		return fmt.Sprintf("%dKB", n/1024)
	}
}
