package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Command rebuilds the throughput tool invocation for one server. It is kept
// with each result for provenance and is never executed here. structured
// selects the iperf3 JSON form; otherwise the iperf2 CSV form is built.
func (c Config) Command(id Identity, outputPath string, structured bool) string {
	var b strings.Builder
	if structured {
		fmt.Fprintf(&b, "iperf3 -J --logfile %s -c %s", outputPath, id.Hostname)
	} else {
		fmt.Fprintf(&b, "iperf -y C -o %s -c %s", outputPath, id.Hostname)
	}
	fmt.Fprintf(&b, " -i %s", formatSeconds(c.Interval.Seconds()))
	if c.Bandwidth != "" && c.Datagram() {
		b.WriteString(" -b " + c.Bandwidth)
	}
	if c.Length != "" {
		b.WriteString(" -l " + c.Length)
	}
	if c.MSS > 0 {
		b.WriteString(" -M " + strconv.Itoa(c.MSS))
	}
	if c.NoDelay {
		b.WriteString(" -N")
	}
	if c.Num != "" {
		b.WriteString(" -n " + c.Num)
	} else {
		b.WriteString(" -t " + formatSeconds(c.Time.Seconds()))
	}
	if id.Port > 0 {
		b.WriteString(" -p " + strconv.Itoa(id.Port))
	}
	if c.ParallelCount > 0 {
		b.WriteString(" -P " + strconv.Itoa(c.ParallelCount))
	}
	if c.TOS != "" {
		b.WriteString(" -S " + c.TOS)
	}
	if c.Tradeoff && !structured {
		b.WriteString(" -r")
	}
	if c.Reverse && structured {
		b.WriteString(" -R")
	}
	if c.TTL > 0 && !structured {
		b.WriteString(" -T " + strconv.Itoa(c.TTL))
	}
	if c.Datagram() {
		b.WriteString(" -u")
	}
	if c.Window != "" {
		b.WriteString(" -w " + c.Window)
	}
	if c.ZeroCopy && structured {
		b.WriteString(" -Z")
	}
	return b.String()
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
