// Package schedule partitions audible intervals into encoder batches.
package schedule

import "github.com/alnah/silence-remover/internal/silence"

// DefaultSegmentsPerInstance is the number of intervals one encoder
// subprocess extracts in a single pass.
const DefaultSegmentsPerInstance = 4

// PathFunc returns the output path of the interval at globalIndex.
type PathFunc func(globalIndex int, iv silence.Interval) string

// Segment is one interval and the file it is extracted to.
type Segment struct {
	GlobalIndex int
	Interval    silence.Interval
	OutputPath  string
}

// Batch is a run of consecutive segments handled by one subprocess.
type Batch struct {
	Index    int
	Segments []Segment
}

// Intervals returns the batch intervals in order.
func (b Batch) Intervals() []silence.Interval {
	out := make([]silence.Interval, len(b.Segments))
	for i, s := range b.Segments {
		out[i] = s.Interval
	}
	return out
}

// OutputPaths returns the batch output paths, aligned with Intervals.
func (b Batch) OutputPaths() []string {
	out := make([]string, len(b.Segments))
	for i, s := range b.Segments {
		out[i] = s.OutputPath
	}
	return out
}

// Schedule is the result of Plan.
type Schedule struct {
	Batches []Batch
	// Workers is how many batches may run at once.
	Workers int
}

// Len returns the total number of segments.
func (s Schedule) Len() int {
	n := 0
	for _, b := range s.Batches {
		n += len(b.Segments)
	}
	return n
}

// OutputPaths returns every output path in global interval order.
func (s Schedule) OutputPaths() []string {
	out := make([]string, 0, s.Len())
	for _, b := range s.Batches {
		out = append(out, b.OutputPaths()...)
	}
	return out
}

// Plan splits intervals into consecutive batches of at most perInstance
// segments. Batch order follows interval order and the last batch may be
// smaller. Workers is min(maxWorkers, len(Batches)), at least 1 when there is
// any batch. Values of perInstance or maxWorkers below 1 are treated as 1.
func Plan(intervals []silence.Interval, perInstance, maxWorkers int, paths PathFunc) Schedule {
	perInstance = max(1, perInstance)
	maxWorkers = max(1, maxWorkers)

	var batches []Batch
	for start := 0; start < len(intervals); start += perInstance {
		end := min(start+perInstance, len(intervals))
		b := Batch{Index: len(batches), Segments: make([]Segment, 0, end-start)}
		for i := start; i < end; i++ {
			b.Segments = append(b.Segments, Segment{
				GlobalIndex: i,
				Interval:    intervals[i],
				OutputPath:  paths(i, intervals[i]),
			})
		}
		batches = append(batches, b)
	}

	return Schedule{Batches: batches, Workers: min(maxWorkers, len(batches))}
}
