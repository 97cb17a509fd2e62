package iperf

import "sort"

// MergedStream is the aggregate of one connection group, indexed by sample
// ordinal.
type MergedStream struct {
	Direction   Direction
	Peer        string
	Samples     []IntervalSample
	Concurrency int
	Summary     RunSummary

	windowed bool
	window   Window
}

// Merge combines the streams of a group by sample ordinal. Separate
// connections do not report aligned start times or equal sample counts, so
// the ordinal range is the union of what each one reported and an absent
// contribution counts as absent, not zero. Bandwidth and transfer are summed;
// jitter and loss are summed too over the contributors that carry them.
func Merge(group ConnectionGroup) MergedStream {
	streams := append([]RawStream(nil), group.Streams...)
	sort.SliceStable(streams, func(i, j int) bool {
		return streams[i].Key < streams[j].Key
	})

	merged := MergedStream{Direction: group.Direction}
	var acc ordinalAccumulator
	var cpuClient, cpuServer summaryMean
	for _, stream := range streams {
		if len(stream.Samples) == 0 {
			continue
		}
		merged.Concurrency++
		if merged.Peer == "" {
			merged.Peer = stream.Peer
		}
		for i, sample := range stream.Samples {
			acc.add(i, sample)
		}

		s := stream.Summary
		if s.HasJitter {
			merged.Summary.Jitter += s.Jitter
			merged.Summary.HasJitter = true
		}
		if s.HasLoss {
			merged.Summary.Loss += s.Loss
			merged.Summary.HasLoss = true
		}
		if s.HasCPUClient {
			cpuClient.add(s.CPUClient)
		}
		if s.HasCPUServer {
			cpuServer.add(s.CPUServer)
		}
	}
	merged.Samples = acc.samples()
	merged.Summary.CPUClient, merged.Summary.HasCPUClient = cpuClient.value()
	merged.Summary.CPUServer, merged.Summary.HasCPUServer = cpuServer.value()
	return merged
}

type ordinalSlot struct {
	sample       IntervalSample
	contributors int
}

// ordinalAccumulator grows to the highest ordinal observed.
type ordinalAccumulator struct {
	slots []ordinalSlot
}

func (a *ordinalAccumulator) add(ordinal int, s IntervalSample) {
	for len(a.slots) <= ordinal {
		a.slots = append(a.slots, ordinalSlot{})
	}
	slot := &a.slots[ordinal]
	if slot.contributors == 0 || s.Start < slot.sample.Start {
		slot.sample.Start = s.Start
	}
	slot.sample.BandwidthMbps += s.BandwidthMbps
	slot.sample.TransferMB += s.TransferMB
	if s.HasJitter {
		slot.sample.Jitter += s.Jitter
		slot.sample.HasJitter = true
	}
	if s.HasLoss {
		slot.sample.Loss += s.Loss
		slot.sample.HasLoss = true
	}
	slot.contributors++
}

func (a *ordinalAccumulator) samples() []IntervalSample {
	out := make([]IntervalSample, 0, len(a.slots))
	for _, slot := range a.slots {
		if slot.contributors == 0 {
			continue
		}
		out = append(out, slot.sample)
	}
	return out
}

type summaryMean struct {
	sum float64
	n   int
}

func (m *summaryMean) add(v float64) {
	m.sum += v
	m.n++
}

func (m summaryMean) value() (float64, bool) {
	if m.n == 0 {
		return 0, false
	}
	return m.sum / float64(m.n), true
}
