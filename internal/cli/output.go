package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/alnah/silence-remover/internal/format"
	"github.com/alnah/silence-remover/internal/remover"
)

// progressStep is the smallest change, in percent, worth a new progress line.
const progressStep = 5

// progressPrinter writes "NN% ..." lines to w, skipping updates smaller
// than progressStep. Completion is always printed.
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, last: -progressStep}
}

// Progress implements job.ProgressListener.
func (p *progressPrinter) Progress(fraction float64) {
	pct := int(fraction * 100)

	p.mu.Lock()
	defer p.mu.Unlock()
	if pct <= p.last || (pct-p.last < progressStep && pct < 100) {
		return
	}
	p.last = pct
	_, _ = fmt.Fprintf(p.w, "  %d%% ...\n", pct)
}

// seconds converts media seconds to a time.Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// writeSummary prints the outcome of a run.
func writeSummary(out io.Writer, res remover.Result) {
	a := res.Analysis
	if info, err := os.Stat(res.Output); err == nil {
		_, _ = fmt.Fprintf(out, "Done: %s (%s)\n", res.Output, format.Size(info.Size()))
	} else {
		_, _ = fmt.Fprintf(out, "Done: %s\n", res.Output)
	}

	removed := 0.0
	if a.Duration > 0 {
		removed = a.Removed() / a.Duration
	}
	_, _ = fmt.Fprintf(out, "Kept %s of %s, removed %s (%s) in %d segments, %d batches, %s\n",
		format.DurationHuman(seconds(a.Kept())),
		format.DurationHuman(seconds(a.Duration)),
		format.DurationHuman(seconds(a.Removed())),
		format.Percent(removed),
		len(a.Intervals), res.Batches,
		format.DurationHuman(res.Elapsed),
	)
	if res.URL != "" {
		_, _ = fmt.Fprintf(out, "Uploaded: %s\n", res.URL)
	}
}
