package provider

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/log"
)

// Shape names the payload layouts a schedule can arrive in.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeDateKeyed is an object mapping YYYY-MM-DD to the day's items.
	ShapeDateKeyed
	// ShapeDayArray is an array whose first element is the day's items.
	ShapeDayArray
	// ShapeChannelKeyed is an object mapping channel id to its items.
	ShapeChannelKeyed
)

func (s Shape) String() string {
	switch s {
	case ShapeDateKeyed:
		return "date-keyed"
	case ShapeDayArray:
		return "day-array"
	case ShapeChannelKeyed:
		return "channel-keyed"
	default:
		return "unknown"
	}
}

// SplitPayload finds the raw item list for siteID on date inside body. path
// descends through nested objects before detection. Anything unparsable
// yields no items and ShapeUnknown.
func SplitPayload(body []byte, path []string, siteID string, date time.Time) ([]json.RawMessage, Shape) {
	node := json.RawMessage(bytes.TrimSpace(body))
	if len(node) == 0 {
		return nil, ShapeUnknown
	}

	if node[0] == '[' {
		var outer []json.RawMessage
		if err := json.Unmarshal(node, &outer); err != nil || len(outer) == 0 {
			return nil, ShapeUnknown
		}
		first := bytes.TrimSpace(outer[0])
		if len(first) == 0 || first[0] != '[' {
			return nil, ShapeUnknown
		}
		items, ok := rawArray(first)
		if !ok {
			return nil, ShapeUnknown
		}
		return items, ShapeDayArray
	}

	for _, key := range path {
		obj, ok := rawObject(node)
		if !ok {
			return nil, ShapeUnknown
		}
		if node, ok = obj[key]; !ok {
			return nil, ShapeUnknown
		}
	}

	obj, ok := rawObject(node)
	if !ok {
		return nil, ShapeUnknown
	}
	if day, ok := obj[date.Format(time.DateOnly)]; ok {
		if items, ok := rawArray(day); ok {
			return items, ShapeDateKeyed
		}
		return nil, ShapeUnknown
	}
	if siteID != "" {
		if ch, ok := obj[siteID]; ok {
			if items, ok := rawArray(ch); ok {
				return items, ShapeChannelKeyed
			}
		}
	}
	return nil, ShapeUnknown
}

// ParseItems splits body and decodes every item. Items that fail to decode
// are skipped. The result is never nil.
func (d *Descriptor) ParseItems(body []byte, ch Channel, date time.Time) []Item {
	raws, shape := SplitPayload(body, d.SchedulePath, ch.SiteID, date)
	items := make([]Item, 0, len(raws))
	logger := log.WithComponent("payload")

	for i, raw := range raws {
		item, err := d.Decode(raw)
		if err != nil {
			logger.Debug().Err(err).Str("site", d.Site).Str("channel", ch.SiteID).Int("index", i).Msg("skipping undecodable item")
			continue
		}
		item.Raw = raw
		items = append(items, item)
	}
	if shape == ShapeUnknown && len(body) > 0 {
		logger.Debug().Str("site", d.Site).Str("channel", ch.SiteID).Msg("no schedule found in payload")
	}
	return items
}

func rawObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func rawArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, false
	}
	return arr, true
}
