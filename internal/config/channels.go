package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/Digital-Shane/guide-tidy/internal/scrape"
	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// ChannelFile is the on-disk channel list.
type ChannelFile struct {
	Channels []ChannelEntry `yaml:"channels"`
}

// ChannelEntry is one channel in a channel list file.
type ChannelEntry struct {
	Site     string `yaml:"site"`
	SiteID   string `yaml:"site_id"`
	XMLTVID  string `yaml:"xmltv_id,omitempty"`
	Name     string `yaml:"name,omitempty"`
	Lang     string `yaml:"lang,omitempty"`
	TimeZone string `yaml:"timezone,omitempty"`
	// CorrectionSeconds overrides the site correction when present, 0 included.
	CorrectionSeconds *int `yaml:"correction_seconds,omitempty"`
}

// Channel converts the entry for the grab pipeline.
func (e ChannelEntry) Channel() provider.Channel {
	ch := provider.Channel{
		Site:     strings.TrimSpace(e.Site),
		SiteID:   strings.TrimSpace(e.SiteID),
		XMLTVID:  strings.TrimSpace(e.XMLTVID),
		Name:     strings.TrimSpace(e.Name),
		Lang:     strings.TrimSpace(e.Lang),
		TimeZone: strings.TrimSpace(e.TimeZone),
	}
	if e.CorrectionSeconds != nil {
		c := time.Duration(*e.CorrectionSeconds) * time.Second
		ch.Correction = &c
	}
	return ch
}

// LoadChannels reads and validates a channel list file.
func LoadChannels(path string) ([]provider.Channel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel file: %w", err)
	}

	var file ChannelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse channel file %s: %w", path, err)
	}

	channels := make([]provider.Channel, 0, len(file.Channels))
	for i, entry := range file.Channels {
		ch := entry.Channel()
		if ch.Site == "" || ch.SiteID == "" {
			return nil, fmt.Errorf("channel %d in %s: site and site_id are required", i+1, path)
		}
		if ch.TimeZone != "" {
			if _, err := time.LoadLocation(ch.TimeZone); err != nil {
				return nil, fmt.Errorf("channel %d in %s: %w", i+1, path, err)
			}
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// ChannelEntries turns scraped channels into file entries for site.
func ChannelEntries(site, lang string, scraped []scrape.Entry) []ChannelEntry {
	entries := make([]ChannelEntry, 0, len(scraped))
	for _, s := range scraped {
		entries = append(entries, ChannelEntry{Site: site, SiteID: s.SiteID, Name: s.Name, Lang: lang})
	}
	return entries
}

// SaveChannels atomically writes entries to path.
func SaveChannels(path string, entries []ChannelEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create channel directory: %w", err)
	}
	data, err := yaml.Marshal(ChannelFile{Channels: entries})
	if err != nil {
		return fmt.Errorf("failed to marshal channels: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write channel file: %w", err)
	}
	return nil
}
