// Package sysinfo collects the host metrics snapshot published by the sinks.
//
// Values come from /proc (via github.com/prometheus/procfs where it has a
// parser), statfs on the overlay mount and the MTD partition table. A value
// that cannot be read degrades to zero or "N/A"; collection never fails.
//
// The wire form is flat JSON with a fixed field set and order:
//
//	{"type":"monitor","uptime":123.45,"ram_used":30.1,"ram_total":60.0,
//	 "disk_used":"12.3M","disk_total":"16.0M","disk_pct":76,
//	 "ip":"192.168.1.50/24","ext_ip":"203.0.113.7",
//	 "net_rx":"1.2M","net_tx":"300KB","procs":42}
package sysinfo
