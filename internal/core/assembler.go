package core

import (
	"context"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/log"
	"github.com/Digital-Shane/guide-tidy/internal/metadata"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultItemConcurrency = 8

// Observer receives per-item outcomes from an Assembler. Implementations must
// be safe for concurrent use.
type Observer interface {
	ItemDropped(site, channel string, err error)
	DetailMissing(site, channel string, err error)
	Enriched(site, backend string, found bool)
	ProgramsAssembled(site, channel string, n int)
}

// NopObserver ignores every outcome.
type NopObserver struct{}

func (NopObserver) ItemDropped(string, string, error)     {}
func (NopObserver) DetailMissing(string, string, error)   {}
func (NopObserver) Enriched(string, string, bool)         {}
func (NopObserver) ProgramsAssembled(string, string, int) {}

// AssemblerConfig configures an Assembler.
type AssemblerConfig struct {
	Descriptor *provider.Descriptor
	// Getter loads detail records. It may be nil for descriptors with inline
	// details.
	Getter   provider.Getter
	Enricher *metadata.Enricher
	Observer Observer
	// Concurrency bounds the in-flight items of one schedule.
	Concurrency int
}

// Assembler turns one raw schedule payload into canonical programs for a
// single site.
type Assembler struct {
	desc        *provider.Descriptor
	get         provider.Getter
	enricher    *metadata.Enricher
	observer    Observer
	concurrency int
	logger      zerolog.Logger
}

// NewAssembler constructs an assembler with defaults applied.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultItemConcurrency
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	site := ""
	if cfg.Descriptor != nil {
		site = cfg.Descriptor.Site
	}
	logger := log.Derive(func(c *zerolog.Context) {
		*c = c.Str("component", "assembler").Str("site", site)
	})
	return &Assembler{
		desc:        cfg.Descriptor,
		get:         cfg.Getter,
		enricher:    cfg.Enricher,
		observer:    observer,
		concurrency: concurrency,
		logger:      logger,
	}
}

// BuildSchedule parses body and assembles every item it contains. Items are
// processed concurrently but the result keeps the payload order. Per-item
// failures never escape: items without a valid interval are dropped, items
// whose detail cannot be loaded keep their time slot with empty descriptive
// fields. The result is never nil.
func (a *Assembler) BuildSchedule(ctx context.Context, body []byte, ch provider.Channel, date time.Time) []guide.Program {
	if a.desc == nil {
		return []guide.Program{}
	}
	items := a.desc.ParseItems(body, ch, date)
	policy := a.desc.TimePolicy(ch)

	slots := make([]*guide.Program, len(items))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, item := range items {
		g.Go(func() error {
			slots[i] = a.assemble(ctx, item, ch, policy)
			return nil
		})
	}
	_ = g.Wait()

	programs := make([]guide.Program, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			programs = append(programs, *p)
		}
	}
	a.observer.ProgramsAssembled(a.desc.Site, ch.ID(), len(programs))
	return programs
}

func (a *Assembler) assemble(ctx context.Context, item provider.Item, ch provider.Channel, policy guide.TimePolicy) *guide.Program {
	iv, err := guide.ResolveInterval(item.Start, item.Span, policy)
	if err != nil {
		a.logger.Debug().Err(err).Str("channel", ch.ID()).Str("item", item.Key).Msg("dropping item without a valid interval")
		a.observer.ItemDropped(a.desc.Site, ch.ID(), err)
		return nil
	}

	detail, err := a.desc.FetchDetail(ctx, a.get, item, ch)
	if err != nil {
		a.observer.DetailMissing(a.desc.Site, ch.ID(), err)
		if a.desc.DropOnMissingDetail {
			a.logger.Debug().Err(err).Str("channel", ch.ID()).Str("item", item.Key).Msg("dropping item without detail")
			a.observer.ItemDropped(a.desc.Site, ch.ID(), err)
			return nil
		}
		a.logger.Debug().Err(err).Str("channel", ch.ID()).Str("item", item.Key).Msg("detail unavailable, keeping time slot")
		detail = provider.Detail{}
	}

	parsed := guide.ParseTitle(detail.Title)
	program := &guide.Program{
		Channel:     ch.ID(),
		Lang:        ch.Lang,
		Title:       parsed.Title,
		SubTitle:    guide.CleanText(detail.SubTitle),
		Description: guide.CleanText(detail.Description),
		Start:       iv.Start,
		Stop:        iv.Stop,
		Season:      guide.FirstNonNil(detail.Season, parsed.Season),
		Episode:     guide.FirstNonNil(detail.Episode, parsed.Episode),
		Categories:  a.desc.Categories.Map(detail.Categories),
		Actors:      nonNil(detail.Actors),
		Directors:   nonNil(detail.Directors),
		Rating:      detail.Rating,
	}
	program.Icon = guide.FirstNonEmpty(a.poster(ctx, detail, parsed.Title), detail.Artwork)
	return program
}

// poster returns the enriched poster URL, or "" when the descriptor does not
// search or nothing suitable was found.
func (a *Assembler) poster(ctx context.Context, detail provider.Detail, title string) string {
	if a.enricher == nil || a.desc.SearchKind == nil {
		return ""
	}
	kind, ok := a.desc.SearchKind(detail)
	if !ok {
		return ""
	}
	query := guide.FirstNonEmpty(detail.SearchTitle, title)
	if query == "" {
		return ""
	}
	url := a.enricher.Enrich(ctx, query, kind)
	a.observer.Enriched(a.desc.Site, a.enricher.Backend(), url != "")
	return url
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
