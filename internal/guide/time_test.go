package guide

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func mustUTC(t *testing.T, v string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t.Fatalf("time.Parse(%q) error = %v", v, err)
	}
	return ts.UTC()
}

func TestResolveInterval(t *testing.T) {
	singapore, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name   string
		start  StartRepr
		span   SpanRepr
		policy TimePolicy
		want   Interval
	}{
		{
			name:  "instant with clock duration",
			start: InstantStart("2024-01-01T10:00:00Z"),
			span:  ClockSpan("01:30:00"),
			want: Interval{
				Start: mustUTC(t, "2024-01-01T10:00:00Z"),
				Stop:  mustUTC(t, "2024-01-01T11:30:00Z"),
			},
		},
		{
			name:  "instant with fractional seconds",
			start: InstantStart("2022-10-30T16:00:00.000Z"),
			span:  ClockSpan("00:30:00"),
			want: Interval{
				Start: mustUTC(t, "2022-10-30T16:00:00Z"),
				Stop:  mustUTC(t, "2022-10-30T16:30:00Z"),
			},
		},
		{
			name:  "instant without offset is utc",
			start: InstantStart("2024-01-01T10:00:00"),
			span:  SecondsSpan(60),
			want: Interval{
				Start: mustUTC(t, "2024-01-01T10:00:00Z"),
				Stop:  mustUTC(t, "2024-01-01T10:01:00Z"),
			},
		},
		{
			name:   "local wall clock in provider zone",
			start:  LocalStart("2024-03-05T20:00:00"),
			span:   SecondsSpan(3600),
			policy: TimePolicy{Location: singapore},
			want: Interval{
				Start: mustUTC(t, "2024-03-05T12:00:00Z"),
				Stop:  mustUTC(t, "2024-03-05T13:00:00Z"),
			},
		},
		{
			name:   "negative correction shifts start before stop is computed",
			start:  InstantStart("2024-01-01T10:00:00Z"),
			span:   ClockSpan("00:30:00"),
			policy: TimePolicy{Correction: -10 * time.Minute},
			want: Interval{
				Start: mustUTC(t, "2024-01-01T09:50:00Z"),
				Stop:  mustUTC(t, "2024-01-01T10:20:00Z"),
			},
		},
		{
			name:   "positive correction",
			start:  InstantStart("2024-01-01T10:00:00Z"),
			span:   SecondsSpan(600),
			policy: TimePolicy{Correction: 3 * time.Minute},
			want: Interval{
				Start: mustUTC(t, "2024-01-01T10:03:00Z"),
				Stop:  mustUTC(t, "2024-01-01T10:13:00Z"),
			},
		},
		{
			name:  "epoch start and end",
			start: EpochStart(1704103200000),
			span:  EndSpan(EpochStart(1704106800000)),
			want: Interval{
				Start: mustUTC(t, "2024-01-01T10:00:00Z"),
				Stop:  mustUTC(t, "2024-01-01T11:00:00Z"),
			},
		},
		{
			name:   "end span keeps its length under correction",
			start:  EpochStart(1704103200000),
			span:   EndSpan(EpochStart(1704106800000)),
			policy: TimePolicy{Correction: -time.Minute},
			want: Interval{
				Start: mustUTC(t, "2024-01-01T09:59:00Z"),
				Stop:  mustUTC(t, "2024-01-01T10:59:00Z"),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveInterval(tc.start, tc.span, tc.policy)
			if err != nil {
				t.Fatalf("ResolveInterval() error = %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ResolveInterval() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveIntervalRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		start   StartRepr
		span    SpanRepr
		wantErr error
	}{
		{name: "zero seconds", start: InstantStart("2024-01-01T10:00:00Z"), span: SecondsSpan(0), wantErr: ErrEmptyInterval},
		{name: "negative seconds", start: InstantStart("2024-01-01T10:00:00Z"), span: SecondsSpan(-5), wantErr: ErrEmptyInterval},
		{name: "seconds overflow duration", start: InstantStart("2024-01-01T10:00:00Z"), span: SecondsSpan(1 << 40), wantErr: ErrMalformedDuration},
		{name: "negative seconds overflow duration", start: InstantStart("2024-01-01T10:00:00Z"), span: SecondsSpan(-(1 << 40)), wantErr: ErrMalformedDuration},
		{name: "zero clock", start: InstantStart("2024-01-01T10:00:00Z"), span: ClockSpan("00:00:00"), wantErr: ErrEmptyInterval},
		{name: "single digit clock", start: InstantStart("2024-01-01T10:00:00Z"), span: ClockSpan("1:30:00"), wantErr: ErrMalformedDuration},
		{name: "clock with junk", start: InstantStart("2024-01-01T10:00:00Z"), span: ClockSpan("01:30:00x"), wantErr: ErrMalformedDuration},
		{name: "empty clock", start: InstantStart("2024-01-01T10:00:00Z"), span: ClockSpan(""), wantErr: ErrMalformedDuration},
		{name: "end before start", start: EpochStart(1704106800000), span: EndSpan(EpochStart(1704103200000)), wantErr: ErrEmptyInterval},
		{name: "garbage start", start: InstantStart("yesterday"), span: SecondsSpan(60), wantErr: ErrMalformedStart},
		{name: "zero epoch", start: EpochStart(0), span: SecondsSpan(60), wantErr: ErrMalformedStart},
		{name: "garbage end", start: EpochStart(1704103200000), span: EndSpan(InstantStart("later")), wantErr: ErrMalformedDuration},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveInterval(tc.start, tc.span, TimePolicy{})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ResolveInterval() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestResolveIntervalPreservesDuration(t *testing.T) {
	base := InstantStart("2024-06-30T23:59:59Z")
	for _, secs := range []int64{1, 59, 60, 3599, 3600, 86399, 86400, 172800} {
		for _, corr := range []time.Duration{0, -600 * time.Second, 180 * time.Second} {
			got, err := ResolveInterval(base, SecondsSpan(secs), TimePolicy{Correction: corr})
			if err != nil {
				t.Fatalf("ResolveInterval(%d, %v) error = %v", secs, corr, err)
			}
			if !got.Start.Before(got.Stop) {
				t.Errorf("ResolveInterval(%d, %v) start %v not before stop %v", secs, corr, got.Start, got.Stop)
			}
			if d := got.Stop.Sub(got.Start); d != time.Duration(secs)*time.Second {
				t.Errorf("ResolveInterval(%d, %v) duration = %v, want %ds", secs, corr, d, secs)
			}
		}
	}
}

func TestParseClockDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: "00:00:01", want: time.Second},
		{in: "01:30:00", want: 90 * time.Minute},
		{in: " 02:05:09 ", want: 2*time.Hour + 5*time.Minute + 9*time.Second},
		{in: "00:90:00", want: 90 * time.Minute},
	}
	for _, tc := range tests {
		got, err := ParseClockDuration(tc.in)
		if err != nil {
			t.Errorf("ParseClockDuration(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClockDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
