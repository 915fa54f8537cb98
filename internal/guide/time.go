package guide

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedStart reports a start value that cannot be interpreted.
	ErrMalformedStart = errors.New("malformed start time")
	// ErrMalformedDuration reports a duration or end value that cannot be interpreted.
	ErrMalformedDuration = errors.New("malformed duration")
	// ErrEmptyInterval reports an interval whose stop is not after its start.
	ErrEmptyInterval = errors.New("empty interval")
)

// StartKind enumerates the supported start time representations.
type StartKind int

const (
	// StartInstant is an absolute timestamp. Values without an offset are UTC.
	StartInstant StartKind = iota
	// StartLocal is a wall clock value in the provider's time zone.
	StartLocal
	// StartUnixMilli is milliseconds since the Unix epoch.
	StartUnixMilli
)

// StartRepr is a start time as it appears in a provider feed.
type StartRepr struct {
	Kind   StartKind
	Value  string
	Millis int64
}

// InstantStart wraps an absolute timestamp string.
func InstantStart(v string) StartRepr { return StartRepr{Kind: StartInstant, Value: v} }

// LocalStart wraps a wall clock timestamp string.
func LocalStart(v string) StartRepr { return StartRepr{Kind: StartLocal, Value: v} }

// EpochStart wraps a Unix millisecond timestamp.
func EpochStart(ms int64) StartRepr { return StartRepr{Kind: StartUnixMilli, Millis: ms} }

// SpanKind enumerates the supported duration and end representations.
type SpanKind int

const (
	// SpanSeconds is a duration in whole seconds.
	SpanSeconds SpanKind = iota
	// SpanClock is a fixed width HH:MM:SS duration.
	SpanClock
	// SpanEnd is an absolute end time.
	SpanEnd
)

// SpanRepr is a duration or end time as it appears in a provider feed.
type SpanRepr struct {
	Kind    SpanKind
	Seconds int64
	Clock   string
	End     StartRepr
}

// SecondsSpan wraps a duration in seconds.
func SecondsSpan(n int64) SpanRepr { return SpanRepr{Kind: SpanSeconds, Seconds: n} }

// ClockSpan wraps an HH:MM:SS duration string.
func ClockSpan(v string) SpanRepr { return SpanRepr{Kind: SpanClock, Clock: v} }

// EndSpan wraps an absolute end time.
func EndSpan(end StartRepr) SpanRepr { return SpanRepr{Kind: SpanEnd, End: end} }

// TimePolicy carries the provider or channel specific time settings.
type TimePolicy struct {
	// Location interprets StartLocal values. Nil means UTC.
	Location *time.Location
	// Correction is added to every resolved start.
	Correction time.Duration
}

// Interval is a resolved [Start, Stop) range in UTC.
type Interval struct {
	Start time.Time
	Stop  time.Time
}

var clockDuration = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})$`)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// maxSpanSeconds is the largest span that fits in a time.Duration.
const maxSpanSeconds = math.MaxInt64 / int64(time.Second)

// ResolveInterval converts raw start and span values into an absolute UTC
// interval. The returned interval always satisfies Start < Stop.
func ResolveInterval(start StartRepr, span SpanRepr, policy TimePolicy) (Interval, error) {
	begin, err := resolveStart(start, policy.Location)
	if err != nil {
		return Interval{}, err
	}
	begin = begin.Add(policy.Correction)

	var stop time.Time
	switch span.Kind {
	case SpanSeconds:
		if span.Seconds > maxSpanSeconds || span.Seconds < -maxSpanSeconds {
			return Interval{}, fmt.Errorf("%w: %d seconds out of range", ErrMalformedDuration, span.Seconds)
		}
		stop = begin.Add(time.Duration(span.Seconds) * time.Second)
	case SpanClock:
		d, err := ParseClockDuration(span.Clock)
		if err != nil {
			return Interval{}, err
		}
		stop = begin.Add(d)
	case SpanEnd:
		end, err := resolveStart(span.End, policy.Location)
		if err != nil {
			return Interval{}, fmt.Errorf("%w: end: %v", ErrMalformedDuration, err)
		}
		stop = end.Add(policy.Correction)
	default:
		return Interval{}, fmt.Errorf("%w: unknown span kind %d", ErrMalformedDuration, span.Kind)
	}

	if !begin.Before(stop) {
		return Interval{}, fmt.Errorf("%w: %s to %s", ErrEmptyInterval, begin.Format(time.RFC3339), stop.Format(time.RFC3339))
	}
	return Interval{Start: begin, Stop: stop}, nil
}

// ParseClockDuration parses a two digits per field HH:MM:SS string.
func ParseClockDuration(v string) (time.Duration, error) {
	m := clockDuration.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, v)
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	secs, _ := strconv.Atoi(m[3])
	return time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second, nil
}

func resolveStart(start StartRepr, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch start.Kind {
	case StartUnixMilli:
		if start.Millis <= 0 {
			return time.Time{}, fmt.Errorf("%w: epoch %d", ErrMalformedStart, start.Millis)
		}
		return time.UnixMilli(start.Millis).UTC(), nil
	case StartInstant:
		v := strings.TrimSpace(start.Value)
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC(), nil
		}
		if t, ok := parseLocal(v, time.UTC); ok {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedStart, start.Value)
	case StartLocal:
		v := strings.TrimSpace(start.Value)
		if t, ok := parseLocal(v, loc); ok {
			return t, nil
		}
		// An explicit offset wins over the provider zone.
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedStart, start.Value)
	default:
		return time.Time{}, fmt.Errorf("%w: unknown start kind %d", ErrMalformedStart, start.Kind)
	}
}

func parseLocal(v string, loc *time.Location) (time.Time, bool) {
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
