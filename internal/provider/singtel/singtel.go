// Package singtel reads the Singtel TV parsed EPG files.
package singtel

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
)

const (
	Name = "singtel"
	Site = "singtel.com"

	episodeValue = "MSEPG_Syndicated_Episode_Number"
)

var location = loadLocation("Asia/Singapore")

// Categories lists the sub-categories used in the parsed EPG files.
var Categories = guide.LabelTaxonomy(
	"Movies", "Sports", "News", "Drama", "Kids", "Children", "Documentary",
	"Entertainment", "Lifestyle", "Music", "Variety", "Education", "Religion",
	"Comedy", "Action", "Reality", "Travel", "Food", "Anime", "Animation",
	"Infotainment", "Talk Show", "Game Show", "Series", "Special",
)

type scheduleItem struct {
	StartDateTime string          `json:"startDateTime"`
	Duration      json.Number     `json:"duration"`
	Program       program         `json:"program"`
	ProgramValues []programValue  `json:"programValues"`
	ID            json.RawMessage `json:"id"`
}

type program struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SubCategory string `json:"subCategory"`
}

type programValue struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// New returns the singtel.com descriptor.
func New() *provider.Descriptor {
	return &provider.Descriptor{
		Name:        Name,
		Site:        Site,
		Description: "Singtel TV parsed EPG (Singapore)",
		Days:        3,
		Location:    location,
		Decode:      decodeItem,
		Categories:  &guide.CategoryMapper{Taxonomy: Categories},
		Details:     provider.DetailFunc(inlineDetail),
		URL: func(_ provider.Channel, date, _ time.Time) string {
			return "https://www.singtel.com/etc/singtel/public/tv/epg-parsed-data/" + date.Format("02012006") + ".json"
		},
		CacheTTL: time.Hour,
	}
}

func decodeItem(raw json.RawMessage) (provider.Item, error) {
	var it scheduleItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return provider.Item{}, err
	}
	secs, err := it.Duration.Int64()
	if err != nil {
		f, ferr := it.Duration.Float64()
		if ferr != nil {
			return provider.Item{}, err
		}
		secs = int64(f)
	}
	return provider.Item{
		Key:   strings.Trim(strings.TrimSpace(string(it.ID)), `"`),
		Start: guide.LocalStart(it.StartDateTime),
		Span:  guide.SecondsSpan(secs),
	}, nil
}

// inlineDetail reads the descriptive fields carried by the schedule item.
func inlineDetail(_ context.Context, _ provider.Getter, item provider.Item, _ provider.Channel) (provider.Detail, error) {
	var it scheduleItem
	if err := json.Unmarshal(item.Raw, &it); err != nil {
		return provider.Detail{}, provider.ClassifyError(Name, err)
	}
	return provider.Detail{
		Title:       it.Program.Title,
		Description: it.Program.Description,
		Categories:  guide.CategoryInput{Primary: it.Program.SubCategory},
		Episode:     episodeNumber(it.ProgramValues),
	}, nil
}

func episodeNumber(values []programValue) *int {
	for _, v := range values {
		if v.Name != episodeValue {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v.Description))
		if err != nil || n < 0 {
			return nil
		}
		return guide.IntPtr(n)
	}
	return nil
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("SGT", 8*60*60)
	}
	return loc
}
