package sysinfo

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testMeminfo = `MemTotal:          61440 kB
MemFree:            8192 kB
MemAvailable:      30720 kB
Buffers:            1024 kB
Cached:             2048 kB
SwapCached:            0 kB
HugePages_Total:       0
`

const testNetDev = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo: 99999999    100    0    0    0     0          0         0 99999999    100    0    0    0     0       0          0
 wlan0:     4096     10    0    0    0     0          0         0     4096     10    0    0    0     0       0          0
  eth0:  1258291    900    0    0    0     0          0         0   307200    800    0    0    0     0       0          0
`

const testMTD = `dev:    size   erasesize  name
mtd0: 00080000 00010000 "u-boot"
mtd1: 00300000 00010000 "kernel"
mtd2: 00780000 00010000 "rootfs"
mtd3: 00500000 00010000 "rootfs_data"
`

const testFibTrie = `Main:
  +-- 0.0.0.0/0 3 0 5
     |-- 0.0.0.0
        /0 universe UNICAST
     +-- 127.0.0.0/8 2 0 2
        +-- 127.0.0.0/31 1 0 0
           |-- 127.0.0.0
              /8 host LOCAL
           |-- 127.0.0.1
              /32 host LOCAL
        |-- 127.255.255.255
           /32 link BROADCAST
     +-- 192.168.1.0/24 2 0 2
        |-- 192.168.1.0
           /24 link UNICAST
        |-- 192.168.1.50
           /32 host LOCAL
        |-- 192.168.1.255
           /32 link BROADCAST
`

// fakeProc builds a minimal /proc tree under a temp dir.
func fakeProc(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"uptime":        "12345.67 40000.00\n",
		"meminfo":       testMeminfo,
		"mtd":           testMTD,
		"net/dev":       testNetDev,
		"net/fib_trie":  testFibTrie,
		"1/stat":        "",
		"42/stat":       "",
		"317/stat":      "",
		"self/stat":     "",
		"sys/kernel/ok": "",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return root
}

type staticIP string

func (s staticIP) IP() string { return string(s) }

func TestCollector_Collect(t *testing.T) {
	c := NewCollector(Options{
		ProcRoot: fakeProc(t),
		Stat: func(path string) (uint64, uint64, error) {
			if path != DefaultOverlayPath {
				t.Errorf("stat path = %q, want %q", path, DefaultOverlayPath)
			}
			return 5 << 20, 4 << 20, nil
		},
		Kernel:     func() string { return "5.4.0-test" },
		ExternalIP: staticIP("203.0.113.7"),
		FallbackIP: func() string { return "fallback" },
	})

	s := c.Collect()

	want := Snapshot{
		UptimeSecs:     12345.67,
		RAMTotalMB:     60,
		RAMAvailableMB: 30,
		RAMUsedMB:      30,
		RAMBufferedMB:  1,
		RAMCachedMB:    2,
		DiskUsed:       "12.0M",
		DiskTotal:      "16.0M",
		DiskPercent:    75,
		IP:             "192.168.1.50/24",
		ExternalIP:     "203.0.113.7",
		NetRX:          "1.2M",
		NetTX:          "300KB",
		Processes:      3,
		Kernel:         "5.4.0-test",
	}
	if s != want {
		t.Errorf("Collect() =\n%+v\nwant\n%+v", s, want)
	}
}

func TestCollector_MissingSourcesDegrade(t *testing.T) {
	c := NewCollector(Options{
		ProcRoot:   filepath.Join(t.TempDir(), "absent"),
		Stat:       func(string) (uint64, uint64, error) { return 0, 0, errors.New("no overlay") },
		Kernel:     func() string { return "Unknown" },
		FallbackIP: func() string { return NotAvailable },
	})

	s := c.Collect()

	if s.UptimeSecs != 0 || s.RAMTotalMB != 0 || s.Processes != 0 {
		t.Errorf("numeric fields = %+v, want zero", s)
	}
	if s.DiskUsed != NotAvailable || s.DiskTotal != NotAvailable || s.DiskPercent != 0 {
		t.Errorf("disk = %q/%q/%d, want N/A", s.DiskUsed, s.DiskTotal, s.DiskPercent)
	}
	if s.NetRX != "0KB" || s.NetTX != "0KB" {
		t.Errorf("net = %q/%q, want 0KB", s.NetRX, s.NetTX)
	}
	if s.IP != NotAvailable || s.ExternalIP != NotAvailable {
		t.Errorf("ip = %q ext = %q, want N/A", s.IP, s.ExternalIP)
	}
}

func TestCollector_DiskPercentCapped(t *testing.T) {
	c := NewCollector(Options{
		ProcRoot:   fakeProc(t),
		Stat:       func(string) (uint64, uint64, error) { return 64 << 20, 0, nil },
		Kernel:     func() string { return "" },
		FallbackIP: func() string { return "" },
	})

	if got := c.Collect().DiskPercent; got != 100 {
		t.Errorf("DiskPercent = %d, want 100", got)
	}
}

func TestParseFibTrie(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lan address", testFibTrie, "192.168.1.50/24"},
		{"loopback only", "Main:\n  +-- 127.0.0.0/8 2 0 2\n     |-- 127.0.0.1\n        /32 host LOCAL\n", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFibTrie(bufio.NewScanner(strings.NewReader(tt.input)))
			if got != tt.want {
				t.Errorf("parseFibTrie() = %q, want %q", got, tt.want)
			}
		})
	}
}
