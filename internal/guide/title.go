package guide

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParsedTitle is a display title with any season and episode numbers lifted
// out of it.
type ParsedTitle struct {
	Title   string
	Season  *int
	Episode *int
}

// ParseTitle extracts season and episode numbers embedded at the end of a
// title and strips them. The combined season+episode suffix is tried first;
// only when it does not match are the lone episode and season patterns used.
func ParseTitle(raw string) ParsedTitle {
	original := CleanText(raw)
	title := original
	var parsed ParsedTitle

	if m, ok := SeasonEpisodeSuffix.Find(title); ok {
		parsed.Season, parsed.Episode = m.Season, m.Episode
		title = m.Strip(title)
	} else {
		if m, ok := EpisodeSuffix.Find(title); ok {
			parsed.Episode = m.Episode
			title = m.Strip(title)
		}
		if m, ok := SeasonToken.Find(title); ok {
			parsed.Season = m.Season
			title = m.Strip(title)
		}
	}

	parsed.Title = strings.TrimSpace(title)
	if parsed.Title == "" {
		parsed.Title = original
	}
	return parsed
}

// TrimSubTitle removes a leading episode marker such as "E12 - ". When series
// is non-empty a leading "<series> -" prefix is removed first.
func TrimSubTitle(subTitle, series string) string {
	s := CleanText(subTitle)
	if series = strings.TrimSpace(series); series != "" {
		prefix := regexp.MustCompile(`^` + regexp.QuoteMeta(series) + `\s*-?\s*`)
		s = prefix.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(EpisodePrefix.Remove(s))
}

// CleanText trims s and converts it to NFC so that visually identical titles
// from different feeds compare equal.
func CleanText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
