package guide

import (
	"regexp"
	"strconv"
)

// sep matches at most one separator in front of a season or episode token.
const sep = `(?:\s*[-–:|,]\s*|\s*\(|\s+)`

// TitlePattern is a named, compiled expression that pulls season and episode
// numbers out of free text. Group indexes of zero mean the pattern does not
// capture that field.
type TitlePattern struct {
	Name    string
	re      *regexp.Regexp
	season  int
	episode int
}

// TitleMatch is the result of a successful TitlePattern lookup.
type TitleMatch struct {
	Season  *int
	Episode *int
	start   int
	end     int
}

var (
	// SeasonEpisodeSuffix matches "S2 Ep14", "S2, E14" or "S02E14" at the end of a title.
	SeasonEpisodeSuffix = &TitlePattern{
		Name:    "season-episode-suffix",
		re:      regexp.MustCompile(`(?i)(?:` + sep + `|^)S(\d+)[,\s]*(?:Ep\.?\s*|E)(\d+)\)?\s*$`),
		season:  1,
		episode: 2,
	}

	// EpisodeSuffix matches a trailing "Ep14" or "E14".
	EpisodeSuffix = &TitlePattern{
		Name:    "episode-suffix",
		re:      regexp.MustCompile(`(?i)(?:` + sep + `|^)(?:Ep\.?\s*|E)(\d+)\)?\s*$`),
		episode: 1,
	}

	// SeasonToken matches a standalone "S2" word anywhere after the first
	// word. Only whitespace or an opening parenthesis may lead in.
	SeasonToken = &TitlePattern{
		Name:   "season-token",
		re:     regexp.MustCompile(`(?:\s+|\s*\()S(\d+)(?:\)|\b)`),
		season: 1,
	}

	// SeasonEpisodeCode matches an embedded "S03E07" code, used on episode names.
	SeasonEpisodeCode = &TitlePattern{
		Name:   "season-episode-code",
		re:     regexp.MustCompile(`(?i)S(\d+)E\d+`),
		season: 1,
	}

	// EpisodePrefix matches a leading "E12 - " on sub-titles.
	EpisodePrefix = &TitlePattern{
		Name: "episode-prefix",
		re:   regexp.MustCompile(`(?i)^E\d+\s+-\s*`),
	}
)

// Find returns the first match of p in s.
func (p *TitlePattern) Find(s string) (TitleMatch, bool) {
	loc := p.re.FindStringSubmatchIndex(s)
	if loc == nil {
		return TitleMatch{}, false
	}
	m := TitleMatch{start: loc[0], end: loc[1]}
	if p.season > 0 {
		m.Season = groupInt(s, loc, p.season)
	}
	if p.episode > 0 {
		m.Episode = groupInt(s, loc, p.episode)
	}
	return m, true
}

// Strip removes the matched text, including its separator, from s.
func (m TitleMatch) Strip(s string) string {
	return s[:m.start] + s[m.end:]
}

// Remove strips the first match of p from s. It returns s unchanged when
// nothing matches.
func (p *TitlePattern) Remove(s string) string {
	if m, ok := p.Find(s); ok {
		return m.Strip(s)
	}
	return s
}

func groupInt(s string, loc []int, group int) *int {
	i := group * 2
	if i+1 >= len(loc) || loc[i] < 0 {
		return nil
	}
	n, err := strconv.Atoi(s[loc[i]:loc[i+1]])
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
