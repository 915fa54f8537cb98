package guide

import "strings"

const (
	// MovieCategory is the synthetic leading label for reclassified movies.
	MovieCategory = "Movie"
	// MoviesLabel is the direct taxonomy label that reclassification replaces.
	MoviesLabel = "Movies"
	// SportsLabel disables reclassification.
	SportsLabel = "Sports"
)

// Taxonomy maps provider native category codes to canonical labels. Lookups
// are case-insensitive. A Taxonomy is never modified after construction and
// is safe for concurrent use.
type Taxonomy struct {
	labels map[string]string
}

// NewTaxonomy builds a taxonomy from code to label entries.
func NewTaxonomy(entries map[string]string) *Taxonomy {
	labels := make(map[string]string, len(entries))
	for code, label := range entries {
		labels[normalizeCode(code)] = label
	}
	return &Taxonomy{labels: labels}
}

// LabelTaxonomy builds a taxonomy whose codes are the labels themselves, for
// providers that send human readable genre names.
func LabelTaxonomy(labels ...string) *Taxonomy {
	entries := make(map[string]string, len(labels))
	for _, l := range labels {
		entries[l] = l
	}
	return NewTaxonomy(entries)
}

// Lookup returns the canonical label for code.
func (t *Taxonomy) Lookup(code string) (string, bool) {
	if t == nil {
		return "", false
	}
	label, ok := t.labels[normalizeCode(code)]
	return label, ok
}

// Len returns the number of codes in the taxonomy.
func (t *Taxonomy) Len() int {
	if t == nil {
		return 0
	}
	return len(t.labels)
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// CategoryInput is the raw category information for one item.
type CategoryInput struct {
	Primary string
	Codes   []string
	// NonEpisodic is set when the provider flags the item as not belonging
	// to a series.
	NonEpisodic bool
}

// CategoryMapper turns native codes into an ordered, de-duplicated list of
// canonical labels using one provider's taxonomy and rules.
type CategoryMapper struct {
	Taxonomy *Taxonomy
	// MovieReclassification prepends MovieCategory and drops MoviesLabel when
	// the primary code maps to MoviesLabel.
	MovieReclassification bool
	// PromoteNonEpisodic extends reclassification to non-episodic items.
	PromoteNonEpisodic bool
}

// Map resolves in into canonical labels. The primary code comes first, then
// the remaining codes in input order. Unknown codes are dropped.
func (m *CategoryMapper) Map(in CategoryInput) []string {
	out := []string{}
	if m == nil {
		return out
	}
	seen := make(map[string]struct{})
	add := func(label string) {
		if _, dup := seen[label]; dup {
			return
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}

	primary, hasPrimary := m.Taxonomy.Lookup(in.Primary)
	if m.reclassify(primary, hasPrimary, in.NonEpisodic) {
		add(MovieCategory)
		seen[MoviesLabel] = struct{}{}
	}
	if hasPrimary {
		add(primary)
	}
	for _, code := range in.Codes {
		if label, ok := m.Taxonomy.Lookup(code); ok {
			add(label)
		}
	}
	return out
}

func (m *CategoryMapper) reclassify(primary string, mapped, nonEpisodic bool) bool {
	if !m.MovieReclassification {
		return false
	}
	if mapped && strings.EqualFold(primary, SportsLabel) {
		return false
	}
	if mapped && strings.EqualFold(primary, MoviesLabel) {
		return true
	}
	return m.PromoteNonEpisodic && nonEpisodic
}
