// Package scrape reads channel listings out of provider HTML pages.
package scrape

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Source says where a site lists its channels and how to read the page.
type Source struct {
	URL     string
	Headers map[string]string
	// ItemSelector matches one element per channel.
	ItemSelector string
	// IDSelector and NameSelector are evaluated inside each item.
	IDSelector   string
	NameSelector string
	// IDTrimPrefix is removed from the extracted id, e.g. "CH".
	IDTrimPrefix string
}

// Entry is one channel found on the page.
type Entry struct {
	SiteID string `json:"site_id" yaml:"site_id"`
	Name   string `json:"name" yaml:"name"`
}

// Channels parses html with src's selectors. Items without an id are
// skipped; duplicates keep their first occurrence.
func Channels(html []byte, src Source) ([]Entry, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return nil, errors.New("empty channel page")
	}
	if src.ItemSelector == "" || src.IDSelector == "" {
		return nil, errors.New("channel source has no selectors")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	seen := make(map[string]struct{})
	doc.Find(src.ItemSelector).Each(func(_ int, s *goquery.Selection) {
		id := normSpace(s.Find(src.IDSelector).First().Text())
		if src.IDTrimPrefix != "" {
			id = strings.TrimSpace(strings.TrimPrefix(id, src.IDTrimPrefix))
		}
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		name := ""
		if src.NameSelector != "" {
			name = normSpace(s.Find(src.NameSelector).First().Text())
		}
		entries = append(entries, Entry{SiteID: id, Name: name})
	})
	return entries, nil
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
