// Package astro reads the Astro (Malaysia) content hub schedule.
package astro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/fetch"
	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
)

const (
	Name = "astro"
	Site = "astro.com.my"

	apiEndpoint  = "https://contenthub-api.eco.astro.com.my"
	ratingSystem = "LPF"
)

// Categories is the filter/NN taxonomy of the content hub.
var Categories = guide.NewTaxonomy(map[string]string{
	"filter/1": "Academic", "filter/2": "Action", "filter/3": "Adventure",
	"filter/4": "Anime", "filter/5": "Animation", "filter/6": "Automotive",
	"filter/7": "Award Show", "filter/8": "Band", "filter/9": "Badminton",
	"filter/10": "Basketball", "filter/11": "Biography", "filter/12": "Cartoons",
	"filter/14": "Children", "filter/15": "Classical", "filter/16": "Comedy",
	"filter/17": "Concerts", "filter/18": "Food", "filter/19": "Crime",
	"filter/20": "Culture", "filter/21": "Current Affairs", "filter/22": "Dance",
	"filter/23": "Documentary", "filter/24": "Drama", "filter/25": "Educational",
	"filter/26": "Entertainment", "filter/27": "Family", "filter/28": "Fashion",
	"filter/29": "Business", "filter/31": "Football", "filter/32": "Golf",
	"filter/33": "Game Show", "filter/34": "Highlights", "filter/35": "History",
	"filter/36": "Horror", "filter/38": "Lifestyle", "filter/39": "Live Action",
	"filter/41": "Motorsport", "filter/42": guide.MoviesLabel, "filter/43": "Music",
	"filter/44": "Musical", "filter/45": "Mystery", "filter/46": "Nature",
	"filter/47": "News", "filter/49": "Orchestra", "filter/53": "Political",
	"filter/54": "Pop", "filter/55": "Pre-school", "filter/56": "Reality Show",
	"filter/57": "Religious", "filter/60": "Romance", "filter/61": "Rugby",
	"filter/62": "Science", "filter/63": "Sci-Fi", "filter/64": "Self-Improvement",
	"filter/65": "Special Interest", "filter/66": guide.SportsLabel, "filter/68": "Talk Show",
	"filter/69": "Thriller", "filter/70": "Travel", "filter/71": "TV Show/Series",
	"filter/72": "Variety", "filter/73": "Wellness", "filter/74": "Western",
	"filter/75": "Series", "filter/76": "Medical", "filter/77": "Further Learning",
	"filter/78": "Shopping", "filter/79": "Handicraft", "filter/80": "Living & Space",
	"filter/81": "Folks", "filter/82": "Jazz", "filter/83": "Special Event",
	"filter/84": "Weather Report", "filter/85": "Aquatics", "filter/86": "Home",
	"filter/87": "Magazine", "filter/88": "Athletics", "filter/89": "Cricket",
	"filter/90": "Martial Arts", "filter/91": "Tennis", "filter/92": "Winter Sports",
	"filter/93": "Wrestling", "filter/94": "Hockey", "filter/95": "Classic",
	"filter/96": "eSports", "filter/97": "Reality",
})

type scheduleItem struct {
	SITrafficKey  json.RawMessage `json:"siTrafficKey"`
	DatetimeInUTC string          `json:"datetimeInUtc"`
	Duration      string          `json:"duration"`
	Subtitles     string          `json:"subtitles"`
}

type linearDetail struct {
	Response struct {
		Title         string          `json:"title"`
		LongSynopsis  string          `json:"longSynopsis"`
		ShortSynopsis string          `json:"shortSynopsis"`
		Cast          string          `json:"cast"`
		Director      string          `json:"director"`
		ImageURL      string          `json:"imageUrl"`
		Certification string          `json:"certification"`
		Filter        string          `json:"filter"`
		SubFilter     json.RawMessage `json:"subFilter"`
	} `json:"response"`
}

// New returns the astro.com.my descriptor.
func New() *provider.Descriptor {
	return &provider.Descriptor{
		Name:        Name,
		Site:        Site,
		Description: "Astro content hub (Malaysia)",
		Days:        2,
		Location:    time.UTC,
		ChannelCorrections: map[string]time.Duration{
			"LifetimeAsia.us": -10 * time.Minute,
		},
		SchedulePath: []string{"response", "schedule"},
		Decode:       decodeItem,
		Categories: &guide.CategoryMapper{
			Taxonomy:              Categories,
			MovieReclassification: true,
		},
		Details: provider.DetailFunc(fetchDetail),
		URL: func(ch provider.Channel, _, _ time.Time) string {
			return fmt.Sprintf("%s/channel/%s.json", apiEndpoint, url.PathEscape(ch.SiteID))
		},
	}
}

func decodeItem(raw json.RawMessage) (provider.Item, error) {
	var it scheduleItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return provider.Item{}, err
	}
	return provider.Item{
		Key:   trafficKey(it.SITrafficKey),
		Start: guide.InstantStart(it.DatetimeInUTC),
		Span:  guide.ClockSpan(it.Duration),
	}, nil
}

func fetchDetail(ctx context.Context, get provider.Getter, item provider.Item, _ provider.Channel) (provider.Detail, error) {
	var it scheduleItem
	if len(item.Raw) > 0 {
		_ = json.Unmarshal(item.Raw, &it)
	}
	if item.Key == "" {
		return provider.Detail{}, provider.ClassifyError(Name, errors.New("item has no traffic key"))
	}

	body, err := get.Get(ctx, fetch.Request{
		URL: apiEndpoint + "/api/v1/linear-detail?siTrafficKey=" + url.QueryEscape(item.Key),
	})
	if err != nil {
		return provider.Detail{}, provider.ClassifyError(Name, err)
	}
	var d linearDetail
	if err := json.Unmarshal(body, &d); err != nil {
		return provider.Detail{}, provider.ClassifyError(Name, err)
	}
	r := d.Response

	detail := provider.Detail{
		Title:       r.Title,
		SubTitle:    it.Subtitles,
		Description: guide.FirstNonEmpty(r.LongSynopsis, r.ShortSynopsis),
		Actors:      guide.SplitList(r.Cast, ","),
		Directors:   guide.SplitList(r.Director, ","),
		Artwork:     r.ImageURL,
		Categories:  categoryInput(r.Filter, r.SubFilter),
	}
	if r.Certification != "" {
		detail.Rating = &guide.Rating{System: ratingSystem, Value: r.Certification}
	}
	return detail, nil
}

// categoryInput reports nothing unless subFilter is a list.
func categoryInput(filter string, subFilter json.RawMessage) guide.CategoryInput {
	var subs []string
	if err := json.Unmarshal(subFilter, &subs); err != nil || subs == nil {
		return guide.CategoryInput{}
	}
	return guide.CategoryInput{Primary: filter, Codes: subs}
}

// trafficKey accepts the key as a JSON string or number.
func trafficKey(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	k := strings.TrimSpace(string(raw))
	if k == "null" {
		return ""
	}
	return k
}
