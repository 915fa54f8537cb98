// Package nowplayer reads the Now TV (Hong Kong) EPG.
package nowplayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/fetch"
	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/metadata"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/Digital-Shane/guide-tidy/internal/scrape"
)

const (
	Name = "nowplayer"
	Site = "nowplayer.now.com"

	baseURL      = "http://nowplayer.now.com"
	imageBaseURL = "https://images.now-tv.com/shares/epg_images/"
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0"
	ratingSystem = "TELA"
	defaultLang  = "en"
)

// Categories lists the genre and sub-genre labels Now TV sends.
var Categories = guide.LabelTaxonomy(
	guide.MoviesLabel, guide.SportsLabel,
	"Action", "Adventure", "Animation", "Anime", "Biography", "Business", "Cartoon",
	"Children", "Comedy", "Cooking", "Crime", "Current Affairs", "Documentary",
	"Drama", "Education", "Entertainment", "Family", "Fantasy", "Finance",
	"Food", "Game Show", "History", "Horror", "Infotainment", "Kids", "Lifestyle",
	"Music", "Musical", "Mystery", "Nature", "News", "Reality", "Religion",
	"Romance", "Sci-Fi", "Science", "Talk Show", "Thriller", "Travel", "Variety",
	"War", "Western", "Basketball", "Boxing", "Cricket", "Football", "Golf",
	"Motorsport", "Rugby", "Snooker", "Tennis", "Martial Arts",
)

type scheduleItem struct {
	VimProgramID json.RawMessage `json:"vimProgramId"`
	Start        int64           `json:"start"`
	End          int64           `json:"end"`
}

type programDetail struct {
	EngSeriesName string          `json:"engSeriesName"`
	SeriesName    string          `json:"seriesName"`
	PortraitImage string          `json:"portraitImage"`
	Genre         string          `json:"genre"`
	SubGenre      string          `json:"subGenre"`
	Episodic      string          `json:"episodic"`
	EngSynopsis   string          `json:"engSynopsis"`
	EngProgName   string          `json:"engProgName"`
	Certification string          `json:"certification"`
	EpisodeName   string          `json:"episodeName"`
	ProgName      string          `json:"progName"`
	Actor         string          `json:"actor"`
	Director      string          `json:"director"`
	EpisodeNum    json.RawMessage `json:"episodeNum"`
}

// New returns the nowplayer.now.com descriptor.
func New() *provider.Descriptor {
	return &provider.Descriptor{
		Name:        Name,
		Site:        Site,
		Description: "Now TV program guide (Hong Kong)",
		Days:        2,
		Location:    time.UTC,
		Decode:      decodeItem,
		Categories: &guide.CategoryMapper{
			Taxonomy:              Categories,
			MovieReclassification: true,
			PromoteNonEpisodic:    true,
		},
		Details:    provider.DetailFunc(fetchDetail),
		SearchKind: SearchKind,
		URL:        scheduleURL,
		Headers: func(ch provider.Channel) map[string]string {
			lang := guide.FirstNonEmpty(ch.Lang, defaultLang)
			return map[string]string{
				"Cookie":     fmt.Sprintf("LANG=%s; Expires=null; Path=/; Domain=%s", lang, Site),
				"User-Agent": userAgent,
			}
		},
		Timeout: 60 * time.Second,
		ChannelList: &scrape.Source{
			URL:          "https://nowplayer.now.com/channels",
			Headers:      map[string]string{"Accept": "text/html", "User-Agent": userAgent},
			ItemSelector: "body > div.container > .tv-guide-s-g > div > div",
			IDSelector:   ".guide-g-play > p.channel",
			NameSelector: ".thumbnail > a > span.image > p",
			IDTrimPrefix: "CH",
		},
	}
}

// scheduleURL addresses days relative to the current UTC day, starting at 1.
func scheduleURL(ch provider.Channel, date, now time.Time) string {
	today := now.UTC().Truncate(24 * time.Hour)
	day := date.UTC().Truncate(24*time.Hour).Sub(today)/(24*time.Hour) + 1
	return fmt.Sprintf("%s/tvguide/epglist?channelIdList[]=%s&day=%d", baseURL, url.QueryEscape(ch.SiteID), day)
}

// SearchKind picks the catalog to search. Sports is never enriched.
func SearchKind(d provider.Detail) (metadata.Kind, bool) {
	switch {
	case d.Genre == guide.SportsLabel:
		return "", false
	case d.Genre == guide.MoviesLabel || d.Episodic != "Y":
		return metadata.KindMovie, true
	default:
		return metadata.KindSeries, true
	}
}

func decodeItem(raw json.RawMessage) (provider.Item, error) {
	var it scheduleItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return provider.Item{}, err
	}
	return provider.Item{
		Key:   rawString(it.VimProgramID),
		Start: guide.EpochStart(it.Start),
		Span:  guide.EndSpan(guide.EpochStart(it.End)),
	}, nil
}

func fetchDetail(ctx context.Context, get provider.Getter, item provider.Item, _ provider.Channel) (provider.Detail, error) {
	if item.Key == "" {
		return provider.Detail{}, provider.ClassifyError(Name, errors.New("item has no program id"))
	}
	body, err := get.Get(ctx, fetch.Request{
		URL:     baseURL + "/tvguide/epgprogramdetail?programId=" + url.QueryEscape(item.Key),
		Headers: map[string]string{"User-Agent": userAgent},
		Timeout: 60 * time.Second,
	})
	if err != nil {
		return provider.Detail{}, provider.ClassifyError(Name, err)
	}
	var p programDetail
	if err := json.Unmarshal(body, &p); err != nil {
		return provider.Detail{}, provider.ClassifyError(Name, err)
	}
	return p.detail(), nil
}

func (p programDetail) detail() provider.Detail {
	title := guide.FirstNonEmpty(p.EngSeriesName, p.SeriesName)

	series := ""
	if p.Genre == guide.SportsLabel {
		series = title
	}

	d := provider.Detail{
		Title:       title,
		SubTitle:    guide.TrimSubTitle(p.EngProgName, series),
		Description: p.EngSynopsis,
		Actors:      guide.SplitList(p.Actor, ","),
		Directors:   guide.SplitList(p.Director, ","),
		Categories: guide.CategoryInput{
			Primary:     p.Genre,
			Codes:       guide.SplitList(p.SubGenre, "/"),
			NonEpisodic: p.Episodic != "Y",
		},
		Episode:     parseEpisode(p.EpisodeNum),
		SearchTitle: title,
		Genre:       p.Genre,
		Episodic:    p.Episodic,
	}
	if p.PortraitImage != "" {
		d.Artwork = imageBaseURL + p.PortraitImage
	}
	if p.Certification != "" {
		d.Rating = &guide.Rating{System: ratingSystem, Value: p.Certification}
	}
	if m, ok := guide.SeasonEpisodeCode.Find(guide.FirstNonEmpty(p.EpisodeName, p.ProgName)); ok {
		d.Season = m.Season
	}
	return d
}

func parseEpisode(raw json.RawMessage) *int {
	s := rawString(raw)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return guide.IntPtr(n)
}

// rawString reads a JSON string or number as text.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	v := strings.TrimSpace(string(raw))
	if v == "null" {
		return ""
	}
	return v
}
