package iperf

import (
	"encoding/json"
	"fmt"
)

const structuredConn = "0"

// StructuredFormat parses iperf3 "-J" output.
type StructuredFormat struct{}

type structuredRun struct {
	Intervals []structuredInterval `json:"intervals"`
	End       structuredEnd        `json:"end"`
	Error     string               `json:"error"`
}

type structuredInterval struct {
	Sum *structuredSum `json:"sum"`
}

type structuredSum struct {
	Start         float64  `json:"start"`
	End           float64  `json:"end"`
	Bytes         float64  `json:"bytes"`
	BitsPerSecond float64  `json:"bits_per_second"`
	JitterMs      *float64 `json:"jitter_ms"`
	LostPercent   *float64 `json:"lost_percent"`
	Omitted       bool     `json:"omitted"`
}

type structuredEnd struct {
	Sum *structuredSum `json:"sum"`
	CPU *structuredCPU `json:"cpu_utilization_percent"`
}

type structuredCPU struct {
	HostTotal   *float64 `json:"host_total"`
	RemoteTotal *float64 `json:"remote_total"`
}

func (StructuredFormat) Name() string { return "json" }

// Parse decodes one iperf3 run. Malformed input returns an empty Parsed
// together with ErrMalformedStructured.
func (StructuredFormat) Parse(raw []byte, opts ParseOptions) (Parsed, error) {
	if err := checkRaw(raw); err != nil {
		return Parsed{}, err
	}
	var run structuredRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", ErrMalformedStructured, err)
	}
	if len(run.Intervals) == 0 {
		if run.Error != "" {
			return Parsed{}, fmt.Errorf("%w: no intervals: %s", ErrMalformedStructured, run.Error)
		}
		return Parsed{}, fmt.Errorf("%w: no intervals", ErrMalformedStructured)
	}

	var parsed Parsed
	for _, interval := range run.Intervals {
		sum := interval.Sum
		if sum == nil {
			parsed.Stats.skip(SkipInvalid)
			continue
		}
		if sum.Omitted {
			parsed.Stats.skip(SkipOmitted)
			continue
		}
		if sum.Start < 0 {
			parsed.Stats.skip(SkipInvalid)
			continue
		}
		sample := IntervalSample{
			Start:         sum.Start,
			BandwidthMbps: sum.BitsPerSecond / bitsPerMegabit,
			TransferMB:    sum.Bytes / bytesPerMebibyte,
		}
		if opts.Datagram {
			if sum.JitterMs != nil {
				sample.Jitter, sample.HasJitter = *sum.JitterMs, true
			}
			if sum.LostPercent != nil {
				sample.Loss, sample.HasLoss = *sum.LostPercent, true
			}
		}
		parsed.Records = append(parsed.Records, Record{Conn: structuredConn, Sample: sample})
		parsed.Stats.Accepted++
	}

	if opts.Datagram && run.End.Sum != nil {
		if v := run.End.Sum.JitterMs; v != nil {
			parsed.Summary.Jitter, parsed.Summary.HasJitter = *v, true
		}
		if v := run.End.Sum.LostPercent; v != nil {
			parsed.Summary.Loss, parsed.Summary.HasLoss = *v, true
		}
	}
	if cpu := run.End.CPU; cpu != nil {
		if cpu.HostTotal != nil {
			parsed.Summary.CPUClient, parsed.Summary.HasCPUClient = *cpu.HostTotal, true
		}
		if cpu.RemoteTotal != nil {
			parsed.Summary.CPUServer, parsed.Summary.HasCPUServer = *cpu.RemoteTotal, true
		}
	}
	return parsed, nil
}

// Phases returns a single phase. iperf3 runs one direction per invocation;
// the direction comes from the reverse flag, not from the data.
func (StructuredFormat) Phases(parsed Parsed, opts ParseOptions) []Phase {
	if len(parsed.Records) == 0 {
		return nil
	}
	dir := DirectionUp
	if opts.Reverse {
		dir = DirectionDown
	}
	return []Phase{{
		Direction: dir,
		Streams:   groupStreams(parsed.Records, dir, parsed.Summary),
	}}
}
