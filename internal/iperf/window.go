package iperf

// Window selects the samples fed to statistics.
type Window struct {
	// Warmup drops samples starting before this offset, in seconds.
	Warmup float64
	// DropFinal drops this many trailing samples after the warm-up cut.
	DropFinal int
}

// Apply returns the windowed stream. A stream already windowed with w is
// returned unchanged.
func (w Window) Apply(s MergedStream) MergedStream {
	if s.windowed && s.window == w {
		return s
	}
	out := s
	out.Samples = make([]IntervalSample, 0, len(s.Samples))
	for _, sample := range s.Samples {
		if w.Warmup > 0 && sample.Start < w.Warmup {
			continue
		}
		out.Samples = append(out.Samples, sample)
	}
	if w.DropFinal > 0 && len(out.Samples) > w.DropFinal {
		out.Samples = out.Samples[:len(out.Samples)-w.DropFinal]
	}
	out.windowed = true
	out.window = w
	return out
}

// Series is the per-metric view of a windowed stream.
type Series struct {
	Bandwidth  []float64
	Jitter     []float64
	Loss       []float64
	TransferMB float64
}

// Series extracts the metric sequences in sample order.
func (s MergedStream) Series() Series {
	series := Series{Bandwidth: make([]float64, 0, len(s.Samples))}
	for _, sample := range s.Samples {
		series.Bandwidth = append(series.Bandwidth, sample.BandwidthMbps)
		series.TransferMB += sample.TransferMB
		if sample.HasJitter {
			series.Jitter = append(series.Jitter, sample.Jitter)
		}
		if sample.HasLoss {
			series.Loss = append(series.Loss, sample.Loss)
		}
	}
	return series
}
