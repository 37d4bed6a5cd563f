package sysinfo

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
)

// Default collection sources.
const (
	DefaultProcRoot    = "/proc"
	DefaultOverlayPath = "/overlay"
)

// mtdWritablePartitions are the MTD partitions whose usage is measured via
// the overlay filesystem. Every other partition counts as fully used.
var mtdWritablePartitions = map[string]bool{
	"rootfs_data": true,
	"firmware":    true,
}

// StatFunc reports the total and free bytes of the filesystem at path.
type StatFunc func(path string) (total, free uint64, err error)

// IPResolver returns the host's public address, or NotAvailable.
type IPResolver interface {
	IP() string
}

// Options configures a Collector. Zero values select the defaults.
type Options struct {
	ProcRoot    string
	OverlayPath string
	Stat        StatFunc
	Kernel      func() string
	ExternalIP  IPResolver
	// FallbackIP is consulted when the routing table shows no local address.
	FallbackIP func() string
}

// Collector samples host metrics.
//
// Thread Safety:
//   - Collect is safe for concurrent use; it holds no mutable state.
type Collector struct {
	procRoot    string
	overlayPath string
	stat        StatFunc
	kernel      func() string
	externalIP  IPResolver
	fallbackIP  func() string
}

// NewCollector creates a Collector.
func NewCollector(opts Options) *Collector {
	c := &Collector{
		procRoot:    opts.ProcRoot,
		overlayPath: opts.OverlayPath,
		stat:        opts.Stat,
		kernel:      opts.Kernel,
		externalIP:  opts.ExternalIP,
		fallbackIP:  opts.FallbackIP,
	}
	if c.procRoot == "" {
		c.procRoot = DefaultProcRoot
	}
	if c.overlayPath == "" {
		c.overlayPath = DefaultOverlayPath
	}
	if c.stat == nil {
		c.stat = statFS
	}
	if c.kernel == nil {
		c.kernel = kernelRelease
	}
	if c.fallbackIP == nil {
		c.fallbackIP = outboundIP
	}
	return c
}

// Collect takes one sample. It never fails; unreadable values are zeroed.
func (c *Collector) Collect() Snapshot {
	s := Snapshot{
		UptimeSecs: c.uptime(),
		IP:         c.localIP(),
		ExternalIP: NotAvailable,
		Kernel:     c.kernel(),
	}

	if fs, err := procfs.NewFS(c.procRoot); err == nil {
		c.memory(fs, &s)
		s.NetRX, s.NetTX = network(fs)
		if procs, err := fs.AllProcs(); err == nil {
			s.Processes = len(procs)
		}
	} else {
		s.NetRX, s.NetTX = FormatBytes(0), FormatBytes(0)
	}

	s.DiskUsed, s.DiskTotal, s.DiskPercent = c.flash()

	if c.externalIP != nil {
		s.ExternalIP = c.externalIP.IP()
	}
	return s
}

func (c *Collector) uptime() float64 {
	data, err := os.ReadFile(filepath.Join(c.procRoot, "uptime"))
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}

func (c *Collector) memory(fs procfs.FS, s *Snapshot) {
	mi, err := fs.Meminfo()
	if err != nil {
		return
	}
	kib := func(v *uint64) uint64 {
		if v == nil {
			return 0
		}
		return *v
	}
	total := kib(mi.MemTotal)
	available := kib(mi.MemAvailable)
	used := uint64(0)
	if total > available {
		used = total - available
	}

	s.RAMTotalMB = float64(total) / 1024
	s.RAMAvailableMB = float64(available) / 1024
	s.RAMUsedMB = float64(used) / 1024
	s.RAMBufferedMB = float64(kib(mi.Buffers)) / 1024
	s.RAMCachedMB = float64(kib(mi.Cached)) / 1024
}

// network reports the byte counters of the first non-loopback interface
// in name order.
func network(fs procfs.FS) (rx, tx string) {
	zero := FormatBytes(0)
	dev, err := fs.NetDev()
	if err != nil {
		return zero, zero
	}

	names := make([]string, 0, len(dev))
	for name := range dev {
		if name != "lo" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return zero, zero
	}
	sort.Strings(names)
	line := dev[names[0]]
	return FormatBytes(line.RxBytes), FormatBytes(line.TxBytes)
}

// flash sums the MTD partition table and adds the overlay's used space.
func (c *Collector) flash() (used, total string, pct int) {
	f, err := os.Open(filepath.Join(c.procRoot, "mtd"))
	if err != nil {
		return NotAvailable, NotAvailable, 0
	}
	defer f.Close()

	var flashTotal, fixedUsed uint64
	sc := bufio.NewScanner(f)
	sc.Scan() // header
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		size, err := strconv.ParseUint(fields[1], 16, 64)
		if err != nil {
			continue
		}
		flashTotal += size
		if !mtdWritablePartitions[strings.Trim(fields[3], `"`)] {
			fixedUsed += size
		}
	}
	if flashTotal == 0 {
		return NotAvailable, NotAvailable, 0
	}

	var overlayUsed uint64
	if t, free, err := c.stat(c.overlayPath); err == nil && t > free {
		overlayUsed = t - free
	}

	totalUsed := fixedUsed + overlayUsed
	pct = int(totalUsed * 100 / flashTotal) //nolint:gosec // bounded to 100 below
	if pct > 100 {
		pct = 100
	}
	return FormatBytes(totalUsed), FormatBytes(flashTotal), pct
}

// localIP finds the first non-loopback local address in the kernel's FIB
// trie and reports it with the prefix length of the enclosing subnet.
func (c *Collector) localIP() string {
	f, err := os.Open(filepath.Join(c.procRoot, "net", "fib_trie"))
	if err == nil {
		defer f.Close()
		if ip := parseFibTrie(bufio.NewScanner(f)); ip != "" {
			return ip
		}
	}
	return c.fallbackIP()
}

func parseFibTrie(sc *bufio.Scanner) string {
	prefix := 24
	var candidate string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if candidate != "" {
			if strings.Contains(line, "host LOCAL") {
				return candidate + "/" + strconv.Itoa(prefix)
			}
			candidate = ""
		}

		if rest, ok := strings.CutPrefix(line, "+--"); ok {
			if i := strings.LastIndex(rest, "/"); i >= 0 {
				bits := strings.Fields(rest[i+1:])
				if len(bits) > 0 {
					if p, err := strconv.Atoi(bits[0]); err == nil && p < 32 {
						prefix = p
					}
				}
			}
			continue
		}
		if rest, ok := strings.CutPrefix(line, "|--"); ok {
			ip := strings.TrimSpace(rest)
			if !strings.HasPrefix(ip, "127.") {
				candidate = ip
			}
		}
	}
	return ""
}

// outboundIP asks the kernel which source address it would use to reach a
// public host. No packet is sent for a UDP dial.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return NotAvailable
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return NotAvailable
}
