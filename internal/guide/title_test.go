package guide

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ParsedTitle
	}{
		{
			name: "season and episode suffix",
			raw:  "Example Show S2 Ep14",
			want: ParsedTitle{Title: "Example Show", Season: IntPtr(2), Episode: IntPtr(14)},
		},
		{
			name: "no numbering",
			raw:  "Regular Movie Title",
			want: ParsedTitle{Title: "Regular Movie Title"},
		},
		{
			name: "title ending in a number is left alone",
			raw:  "Apollo 13",
			want: ParsedTitle{Title: "Apollo 13"},
		},
		{
			name: "compact code",
			raw:  "Grey's Anatomy S19E03",
			want: ParsedTitle{Title: "Grey's Anatomy", Season: IntPtr(19), Episode: IntPtr(3)},
		},
		{
			name: "comma between season and episode",
			raw:  "Running Man S1, Ep640",
			want: ParsedTitle{Title: "Running Man", Season: IntPtr(1), Episode: IntPtr(640)},
		},
		{
			name: "lowercase episode marker",
			raw:  "Daily Cooking ep 12",
			want: ParsedTitle{Title: "Daily Cooking", Episode: IntPtr(12)},
		},
		{
			name: "episode only",
			raw:  "Hometown Stories E7",
			want: ParsedTitle{Title: "Hometown Stories", Episode: IntPtr(7)},
		},
		{
			name: "season only at end",
			raw:  "The Amazing Race S34",
			want: ParsedTitle{Title: "The Amazing Race", Season: IntPtr(34)},
		},
		{
			name: "season in the middle",
			raw:  "Masterchef S12 Finale",
			want: ParsedTitle{Title: "Masterchef Finale", Season: IntPtr(12)},
		},
		{
			name: "season in parentheses",
			raw:  "Bluey (S3) Ep5",
			want: ParsedTitle{Title: "Bluey", Season: IntPtr(3), Episode: IntPtr(5)},
		},
		{
			name: "dash separator is consumed",
			raw:  "Food Trip - S2 Ep4",
			want: ParsedTitle{Title: "Food Trip", Season: IntPtr(2), Episode: IntPtr(4)},
		},
		{
			name: "separate season and episode tokens",
			raw:  "Rugby Weekly S5 Highlights Ep9",
			want: ParsedTitle{Title: "Rugby Weekly Highlights", Season: IntPtr(5), Episode: IntPtr(9)},
		},
		{
			name: "hyphenated season token stays in the title",
			raw:  "Show-S2 Extra",
			want: ParsedTitle{Title: "Show-S2 Extra"},
		},
		{
			name: "word starting with s is not a season",
			raw:  "Sunday Show",
			want: ParsedTitle{Title: "Sunday Show"},
		},
		{
			name: "detached E and number is not an episode",
			raw:  "WALL-E 2",
			want: ParsedTitle{Title: "WALL-E 2"},
		},
		{
			name: "stripping everything keeps the raw title",
			raw:  "S1 Ep2",
			want: ParsedTitle{Title: "S1 Ep2", Season: IntPtr(1), Episode: IntPtr(2)},
		},
		{
			name: "surrounding whitespace",
			raw:  "  News Hour S1 Ep5  ",
			want: ParsedTitle{Title: "News Hour", Season: IntPtr(1), Episode: IntPtr(5)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseTitle(tc.raw)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseTitle(%q) mismatch (-want +got):\n%s", tc.raw, diff)
			}
		})
	}
}

func TestTitlePatternsInIsolation(t *testing.T) {
	tests := []struct {
		name        string
		pattern     *TitlePattern
		in          string
		wantMatch   bool
		wantSeason  *int
		wantEpisode *int
		wantStrip   string
	}{
		{name: "combined", pattern: SeasonEpisodeSuffix, in: "Show S2 Ep14", wantMatch: true, wantSeason: IntPtr(2), wantEpisode: IntPtr(14), wantStrip: "Show"},
		{name: "combined needs episode", pattern: SeasonEpisodeSuffix, in: "Show S2", wantMatch: false},
		{name: "combined anchored at end", pattern: SeasonEpisodeSuffix, in: "Show S2 Ep14 Recap", wantMatch: false},
		{name: "episode", pattern: EpisodeSuffix, in: "Show Ep.3", wantMatch: true, wantEpisode: IntPtr(3), wantStrip: "Show"},
		{name: "episode needs marker", pattern: EpisodeSuffix, in: "Show 3", wantMatch: false},
		{name: "episode inside word", pattern: EpisodeSuffix, in: "Vape12", wantMatch: false},
		{name: "season is case sensitive", pattern: SeasonToken, in: "Show s2", wantMatch: false},
		{name: "season", pattern: SeasonToken, in: "Show S2 Extra", wantMatch: true, wantSeason: IntPtr(2), wantStrip: "Show Extra"},
		{name: "season after dash", pattern: SeasonToken, in: "Show-S2 Extra", wantMatch: false},
		{name: "season code", pattern: SeasonEpisodeCode, in: "s04e11 The Return", wantMatch: true, wantSeason: IntPtr(4), wantStrip: " The Return"},
		{name: "episode prefix", pattern: EpisodePrefix, in: "E12 - Into the Woods", wantMatch: true, wantStrip: "Into the Woods"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := tc.pattern.Find(tc.in)
			if ok != tc.wantMatch {
				t.Fatalf("%s.Find(%q) matched = %v, want %v", tc.pattern.Name, tc.in, ok, tc.wantMatch)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tc.wantSeason, m.Season); diff != "" {
				t.Errorf("%s.Find(%q) season mismatch (-want +got):\n%s", tc.pattern.Name, tc.in, diff)
			}
			if diff := cmp.Diff(tc.wantEpisode, m.Episode); diff != "" {
				t.Errorf("%s.Find(%q) episode mismatch (-want +got):\n%s", tc.pattern.Name, tc.in, diff)
			}
			if got := m.Strip(tc.in); got != tc.wantStrip {
				t.Errorf("%s strip of %q = %q, want %q", tc.pattern.Name, tc.in, got, tc.wantStrip)
			}
		})
	}
}

func TestTrimSubTitle(t *testing.T) {
	tests := []struct {
		name     string
		subTitle string
		series   string
		want     string
	}{
		{name: "episode prefix", subTitle: "E05 - The Storm", want: "The Storm"},
		{name: "no prefix", subTitle: "The Storm", want: "The Storm"},
		{name: "series prefix", subTitle: "Premier League - Arsenal v Chelsea", series: "Premier League", want: "Arsenal v Chelsea"},
		{name: "series prefix then episode", subTitle: "Golf Weekly E3 - Round Up", series: "Golf Weekly", want: "Round Up"},
		{name: "series with regex characters", subTitle: "F1 (Live) - Qualifying", series: "F1 (Live)", want: "Qualifying"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TrimSubTitle(tc.subTitle, tc.series); got != tc.want {
				t.Errorf("TrimSubTitle(%q, %q) = %q, want %q", tc.subTitle, tc.series, got, tc.want)
			}
		})
	}
}
