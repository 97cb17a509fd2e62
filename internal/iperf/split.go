package iperf

type splitState int

const (
	seekingFirst splitState = iota
	inPhase
)

// Segment is a run of records sharing one direction.
type Segment struct {
	Direction Direction
	Peer      string
	Records   []Record
}

// Splitter detects the upload/download boundary in a flat legacy record
// sequence. iperf restarts its interval clock for the reverse sub-test, so a
// start offset that drops by at least Regression seconds versus the previous
// record begins the download phase. Only one transition is recognized.
//
// A jittery clock can trip the heuristic; the labels are then wrong and
// nothing downstream detects it.
type Splitter struct {
	Regression float64
}

func (s Splitter) Split(records []Record) []Segment {
	threshold := s.Regression
	if threshold <= 0 {
		threshold = DefaultRegression
	}

	var (
		segments []Segment
		current  Segment
		state    = seekingFirst
		switched bool
		last     float64
	)
	for _, rec := range records {
		switch state {
		case seekingFirst:
			current = Segment{Direction: DirectionUp, Peer: rec.Peer}
			state = inPhase
		case inPhase:
			if !switched && last-rec.Sample.Start >= threshold {
				segments = append(segments, current)
				current = Segment{Direction: DirectionDown, Peer: rec.Peer}
				switched = true
			}
		}
		current.Records = append(current.Records, rec)
		last = rec.Sample.Start
	}
	if state == inPhase {
		segments = append(segments, current)
	}
	return segments
}
