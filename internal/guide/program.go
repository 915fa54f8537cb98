package guide

import (
	"fmt"
	"time"
)

// Rating is a content certification in a named rating system.
type Rating struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// Program is the canonical, provider agnostic guide entry produced by the
// schedule pipeline. Empty strings stand in for absent optional text.
type Program struct {
	Channel     string    `json:"channel"`
	Lang        string    `json:"lang,omitempty"`
	Title       string    `json:"title"`
	SubTitle    string    `json:"sub_title,omitempty"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	Stop        time.Time `json:"stop"`
	Season      *int      `json:"season,omitempty"`
	Episode     *int      `json:"episode,omitempty"`
	Categories  []string  `json:"categories"`
	Actors      []string  `json:"actors"`
	Directors   []string  `json:"directors"`
	Rating      *Rating   `json:"rating,omitempty"`
	Icon        string    `json:"icon,omitempty"`
}

// Duration returns the length of the program's time slot.
func (p Program) Duration() time.Duration {
	return p.Stop.Sub(p.Start)
}

// EpisodeCode renders the season and episode as S01E02, S01 or E02.
func (p Program) EpisodeCode() string {
	var code string
	if p.Season != nil {
		code += fmt.Sprintf("S%02d", *p.Season)
	}
	if p.Episode != nil {
		code += fmt.Sprintf("E%02d", *p.Episode)
	}
	return code
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
