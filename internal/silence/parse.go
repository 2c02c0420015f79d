package silence

import (
	"bufio"
	"io"
	"iter"
	"math"
	"regexp"
	"strconv"
)

// EventKind tells whether an Event opens or closes a silent span.
type EventKind int

const (
	// EventStart marks the beginning of a silent span.
	EventStart EventKind = iota
	// EventEnd marks the end of a silent span.
	EventEnd
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventEnd:
		return "end"
	default:
		return "EventKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Event is one silencedetect report.
type Event struct {
	Kind      EventKind
	Timestamp float64 // seconds
}

// Line patterns emitted by FFmpeg's silencedetect filter:
//
//	[silencedetect @ 0x...] silence_start: 42.123
//	[silencedetect @ 0x...] silence_end: 43.456 | silence_duration: 1.333
//
// and by the input header:
//
//	Duration: 00:05:23.45, start: 0.000000, bitrate: 128 kb/s
var (
	startRe    = regexp.MustCompile(`silence_start:\s*([^\s|]+)`)
	endRe      = regexp.MustCompile(`silence_end:\s*([^\s|]+)`)
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
)

// Scanner reads detector output line by line.
// Besides silence events it remembers the first media duration it sees.
type Scanner struct {
	sc          *bufio.Scanner
	duration    float64
	hasDuration bool
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	// FFmpeg separates progress updates with carriage returns.
	sc.Split(scanLinesCR)
	return &Scanner{sc: sc}
}

// Events returns the silence events in stream order. The sequence is lazy
// and single-use: it consumes the underlying reader. Unrelated and malformed
// lines are skipped.
func (s *Scanner) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for s.sc.Scan() {
			line := s.sc.Text()
			if !s.hasDuration {
				if d, ok := parseDurationLine(line); ok {
					s.duration, s.hasDuration = d, true
					continue
				}
			}
			if ev, ok := parseEventLine(line); ok {
				if !yield(ev) {
					return
				}
			}
		}
	}
}

// Duration returns the media duration in seconds once Events has consumed
// the line carrying it.
func (s *Scanner) Duration() (float64, bool) {
	return s.duration, s.hasDuration
}

// Err returns the first read error encountered by Events.
func (s *Scanner) Err() error {
	return s.sc.Err()
}

// ParseEvents returns the silence events found in r.
func ParseEvents(r io.Reader) iter.Seq[Event] {
	return NewScanner(r).Events()
}

func parseEventLine(line string) (Event, bool) {
	if m := startRe.FindStringSubmatch(line); m != nil {
		if ts, ok := parseTimestamp(m[1]); ok {
			return Event{Kind: EventStart, Timestamp: ts}, true
		}
	}
	if m := endRe.FindStringSubmatch(line); m != nil {
		if ts, ok := parseTimestamp(m[1]); ok {
			return Event{Kind: EventEnd, Timestamp: ts}, true
		}
	}
	return Event{}, false
}

// parseTimestamp reads a silencedetect timestamp. FFmpeg before 6.1 prints
// them with %g, so exponent notation such as 2.5e-05 is valid.
func parseTimestamp(s string) (float64, bool) {
	ts, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return 0, false
	}
	return ts, true
}

// parseDurationLine extracts the media duration from an input header line.
// "Duration: N/A" (streams without a known length) does not match.
func parseDurationLine(line string) (float64, bool) {
	m := durationRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(h*3600+mins*60) + secs, true
}

// scanLinesCR is bufio.ScanLines that also splits on a bare '\r'.
func scanLinesCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		switch b {
		case '\n':
			return i + 1, data[:i], nil
		case '\r':
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			// Need one more byte to tell "\r" from "\r\n".
			return 0, nil, nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
