package silence

import (
	"fmt"
	"time"

	"github.com/alnah/silence-remover/internal/format"
)

// Interval is an audible span of the source, in seconds.
// Intervals are values: merging two spans produces a new Interval.
type Interval struct {
	Start float64
	End   float64
}

// Duration returns the length of the interval in seconds.
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// String returns a human-readable representation for logging.
func (iv Interval) String() string {
	return fmt.Sprintf("%s-%s", format.Timestamp(seconds(iv.Start)), format.Timestamp(seconds(iv.End)))
}

// TotalDuration sums the length of intervals in seconds.
func TotalDuration(intervals []Interval) float64 {
	var total float64
	for _, iv := range intervals {
		total += iv.Duration()
	}
	return total
}

// seconds converts fractional seconds to a time.Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
