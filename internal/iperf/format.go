package iperf

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// DefaultRegression is the interval clock regression, in seconds, that marks
// the start of the reverse-direction sub-test in legacy output.
const DefaultRegression = 5.0

// ParseOptions carries the run settings the parsers depend on.
type ParseOptions struct {
	// Datagram enables jitter and loss capture.
	Datagram bool
	// Interval is the configured sample interval in seconds.
	Interval float64
	// Regression is the start-time regression that switches direction.
	Regression float64
	// Reverse labels structured output as a download run.
	Reverse bool
}

func (o ParseOptions) regression() float64 {
	if o.Regression > 0 {
		return o.Regression
	}
	return DefaultRegression
}

// Record is one accepted sample with its connection and peer tokens.
type Record struct {
	Conn   string
	Peer   string
	Sample IntervalSample
}

// Skip reasons reported in ParseStats.
const (
	SkipShort     = "short"
	SkipAggregate = "aggregate"
	SkipSpan      = "span"
	SkipEmpty     = "empty"
	SkipInvalid   = "invalid"
	SkipOmitted   = "omitted"
)

// ParseStats counts the lines or intervals a parser looked at.
type ParseStats struct {
	Accepted int
	Skipped  map[string]int
}

func (s *ParseStats) skip(reason string) {
	if s.Skipped == nil {
		s.Skipped = make(map[string]int)
	}
	s.Skipped[reason]++
}

// Parsed is the canonical output of a Format.
type Parsed struct {
	Records []Record
	Summary RunSummary
	Stats   ParseStats
}

// Format converts one raw output into canonical samples.
type Format interface {
	Name() string
	Parse(raw []byte, opts ParseOptions) (Parsed, error)
	Phases(parsed Parsed, opts ParseOptions) []Phase
}

// SelectFormat returns the format for name ("legacy", "json" or "auto").
// With "auto" the first non-blank byte decides: '{' selects the structured
// format, anything else the legacy one.
func SelectFormat(name string, raw []byte) (Format, error) {
	switch name {
	case "legacy":
		return LegacyFormat{}, nil
	case "json":
		return StructuredFormat{}, nil
	case "", "auto":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	if err := checkRaw(raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return StructuredFormat{}, nil
	}
	return LegacyFormat{}, nil
}

func checkRaw(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ErrEmptyOutput
	}
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return ErrUnrecognizedInput
	}
	return nil
}

// groupStreams splits records into per-connection streams, in order of first
// appearance.
func groupStreams(records []Record, dir Direction, summary RunSummary) []RawStream {
	index := make(map[string]int)
	var streams []RawStream
	for _, rec := range records {
		i, ok := index[rec.Conn]
		if !ok {
			i = len(streams)
			index[rec.Conn] = i
			streams = append(streams, RawStream{
				Key:       rec.Conn,
				Peer:      rec.Peer,
				Direction: dir,
				Summary:   summary,
			})
		}
		streams[i].Samples = append(streams[i].Samples, rec.Sample)
	}
	return streams
}
