package iperf

import "fmt"

// Direction describes traffic flow relative to the client.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionDown:
		return "down"
	default:
		return "up"
	}
}

const (
	bitsPerMegabit   = 1000 * 1000
	bytesPerMebibyte = 1024 * 1024
)

// IntervalSample is one measurement slice of one connection.
type IntervalSample struct {
	// Start is the interval start in seconds relative to the test start.
	Start float64
	// BandwidthMbps is the interval rate in Mb/s.
	BandwidthMbps float64
	// TransferMB is the interval payload in MB (2^20 bytes).
	TransferMB float64

	Jitter    float64
	HasJitter bool
	Loss      float64
	HasLoss   bool
}

// RunSummary carries run-level figures reported outside the interval list.
type RunSummary struct {
	Jitter    float64
	HasJitter bool
	Loss      float64
	HasLoss   bool

	CPUClient    float64
	HasCPUClient bool
	CPUServer    float64
	HasCPUServer bool
}

// RawStream is the ordered sample sequence of one connection in one direction.
type RawStream struct {
	Key       string
	Peer      string
	Direction Direction
	Samples   []IntervalSample
	Summary   RunSummary
}

// Phase is one direction of a parsed output with its per-connection streams.
type Phase struct {
	Direction Direction
	Peer      string
	Streams   []RawStream
}

// ConnectionGroup collects every stream of one server in one direction,
// across all concurrently run test processes.
type ConnectionGroup struct {
	Direction Direction
	Streams   []RawStream
}

// GroupPhases folds phases from all outputs of one server into connection
// groups, one per direction, ordered up then down. Stream keys are prefixed
// with the output index so connections of different outputs stay distinct.
func GroupPhases(outputs [][]Phase) []ConnectionGroup {
	byDir := make(map[Direction]*ConnectionGroup, 2)
	for i, phases := range outputs {
		for _, phase := range phases {
			group, ok := byDir[phase.Direction]
			if !ok {
				group = &ConnectionGroup{Direction: phase.Direction}
				byDir[phase.Direction] = group
			}
			for _, stream := range phase.Streams {
				stream.Key = outputKey(i, stream.Key)
				group.Streams = append(group.Streams, stream)
			}
		}
	}
	groups := make([]ConnectionGroup, 0, len(byDir))
	for _, dir := range []Direction{DirectionUp, DirectionDown} {
		if group, ok := byDir[dir]; ok {
			groups = append(groups, *group)
		}
	}
	return groups
}

func outputKey(output int, key string) string {
	return fmt.Sprintf("%03d/%s", output, key)
}
