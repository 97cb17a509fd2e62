package iperf

import (
	"bufio"
	"bytes"
	"math"
	"strconv"
	"strings"
)

// Field positions of an iperf2 "-y C" record.
const (
	legacyFieldPeer     = 3
	legacyFieldConn     = 5
	legacyFieldSpan     = 6
	legacyFieldBytes    = 7
	legacyFieldBits     = 8
	legacyFieldJitter   = 9
	legacyFieldLoss     = 12
	legacyMinFields     = 8
	legacySpanTolerance = 1e-6
	legacyMaxLineBytes  = 1 << 20
)

// LegacyFormat parses comma-separated iperf2 records.
type LegacyFormat struct{}

func (LegacyFormat) Name() string { return "legacy" }

func (LegacyFormat) Parse(raw []byte, opts ParseOptions) (Parsed, error) {
	if err := checkRaw(raw); err != nil {
		return Parsed{}, err
	}
	var parsed Parsed
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 4096), legacyMaxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, reason := parseLegacyRecord(strings.Split(line, ","), opts)
		if reason != "" {
			parsed.Stats.skip(reason)
			continue
		}
		parsed.Records = append(parsed.Records, rec)
		parsed.Stats.Accepted++
	}
	if err := scanner.Err(); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

// Phases splits the record sequence into up and down phases.
func (LegacyFormat) Phases(parsed Parsed, opts ParseOptions) []Phase {
	splitter := Splitter{Regression: opts.regression()}
	segments := splitter.Split(parsed.Records)
	phases := make([]Phase, 0, len(segments))
	for _, seg := range segments {
		phases = append(phases, Phase{
			Direction: seg.Direction,
			Peer:      seg.Peer,
			Streams:   groupStreams(seg.Records, seg.Direction, parsed.Summary),
		})
	}
	return phases
}

func parseLegacyRecord(fields []string, opts ParseOptions) (Record, string) {
	if len(fields) < legacyMinFields || len(fields) <= legacyFieldBits {
		return Record{}, SkipShort
	}
	conn := strings.TrimSpace(fields[legacyFieldConn])
	if strings.HasPrefix(conn, "-") {
		return Record{}, SkipAggregate
	}
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(fields[legacyFieldSpan]), "-")
	if !ok {
		return Record{}, SkipInvalid
	}
	start, err := parseLegacyNumber(startStr)
	if err != nil {
		return Record{}, SkipInvalid
	}
	end, err := parseLegacyNumber(endStr)
	if err != nil {
		return Record{}, SkipInvalid
	}
	if start < 0 {
		return Record{}, SkipInvalid
	}
	if opts.Interval > 0 && math.Abs((end-start)-opts.Interval) > legacySpanTolerance {
		return Record{}, SkipSpan
	}
	transferred, err := parseLegacyNumber(fields[legacyFieldBytes])
	if err != nil {
		return Record{}, SkipInvalid
	}
	if transferred <= 0 {
		return Record{}, SkipEmpty
	}
	bits, err := parseLegacyNumber(fields[legacyFieldBits])
	if err != nil || bits < 0 {
		return Record{}, SkipInvalid
	}

	sample := IntervalSample{
		Start:         start,
		BandwidthMbps: bits / bitsPerMegabit,
		TransferMB:    transferred / bytesPerMebibyte,
	}
	if opts.Datagram {
		if len(fields) > legacyFieldJitter {
			if v, err := parseLegacyNumber(fields[legacyFieldJitter]); err == nil && v >= 0 {
				sample.Jitter, sample.HasJitter = v, true
			}
		}
		if len(fields) > legacyFieldLoss {
			if v, err := parseLegacyNumber(fields[legacyFieldLoss]); err == nil && v >= 0 {
				sample.Loss, sample.HasLoss = v, true
			}
		}
	}
	return Record{
		Conn:   conn,
		Peer:   strings.TrimSpace(fields[legacyFieldPeer]),
		Sample: sample,
	}, ""
}

// parseLegacyNumber parses a finite number. ParseFloat accepts NaN and Inf,
// which would poison every statistic of the group.
func parseLegacyNumber(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNonFinite
	}
	return v, nil
}
