package silence

import (
	"cmp"
	"iter"
	"slices"
)

// span is a mutable working range used while computing intervals.
type span struct {
	start, end float64
}

// Compute turns silence events into the ordered audible intervals to keep.
//
// Silent spans shorter than minSegmentLength seconds are kept as audible
// material. Every remaining audible span is widened by padding seconds on
// both sides, clamped to [0, total], and spans that then overlap or touch
// are merged. With no usable silence the whole media is one interval; a
// non-positive total yields none.
func Compute(events iter.Seq[Event], total, minSegmentLength, padding float64) []Interval {
	if total <= 0 {
		return nil
	}

	var audible []span
	cursor := 0.0
	for _, s := range silentSpans(events, total) {
		if s.end-s.start < minSegmentLength {
			continue
		}
		if s.start > cursor {
			audible = append(audible, span{cursor, s.start})
		}
		cursor = max(cursor, s.end)
	}
	if cursor < total {
		audible = append(audible, span{cursor, total})
	}

	var out []Interval
	for _, a := range audible {
		start := max(0, a.start-padding)
		end := min(total, a.end+padding)
		if end <= start {
			continue
		}
		if n := len(out); n > 0 && start <= out[n-1].End {
			out[n-1] = Interval{Start: out[n-1].Start, End: max(out[n-1].End, end)}
			continue
		}
		out = append(out, Interval{Start: start, End: end})
	}
	return out
}

// silentSpans pairs start/end events into spans clamped to [0, total],
// sorted by start. A start without a matching end runs to total; an end
// without a start is ignored; a repeated start keeps the earlier one.
func silentSpans(events iter.Seq[Event], total float64) []span {
	var spans []span
	open := false
	var start float64

	add := func(s, e float64) {
		s, e = max(0, s), min(total, e)
		if e > s {
			spans = append(spans, span{s, e})
		}
	}

	for ev := range events {
		switch ev.Kind {
		case EventStart:
			if !open {
				start, open = ev.Timestamp, true
			}
		case EventEnd:
			if open {
				add(start, ev.Timestamp)
				open = false
			}
		}
	}
	if open {
		add(start, total)
	}

	slices.SortStableFunc(spans, func(a, b span) int { return cmp.Compare(a.start, b.start) })
	return spans
}
