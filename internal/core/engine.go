package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/log"
	"github.com/Digital-Shane/guide-tidy/internal/metadata"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/mhmtszr/concurrent-swiss-map"
)

// GrabEngine fetches and assembles schedules for many channels and days while
// exposing progress snapshots for UI consumption.
type GrabEngine struct {
	workerCount int
	registry    *provider.Registry
	getter      provider.Getter
	enricher    *metadata.Enricher
	observer    Observer
	concurrency int
	now         func() time.Time

	channels []provider.Channel
	date     time.Time
	days     int

	assemblersMu sync.Mutex
	assemblers   map[string]*Assembler

	results *csmap.CsMap[string, GrabResult]

	summaryMu sync.RWMutex
	summary   GrabSummary

	errorsMu sync.Mutex
	errors   []error
}

// GrabSummary captures the state of a grab at a point in time.
type GrabSummary struct {
	TotalJobs     int
	ProcessedJobs int
	ActiveWorkers int
	WorkerLimit   int
	Programs      int
	ErrorCount    int
	LastJob       string
	Done          bool
	Canceled      bool
}

// GrabEvent represents an update emitted by the engine.
type GrabEvent struct {
	Summary GrabSummary
	Err     error
}

// GrabJob is one channel on one day.
type GrabJob struct {
	Site    string
	Channel provider.Channel
	Date    time.Time
}

// Key identifies the job within a run.
func (j GrabJob) Key() string {
	return j.Site + "/" + j.Channel.SiteID + "/" + j.Date.Format(time.DateOnly)
}

// String renders the job for progress messages.
func (j GrabJob) String() string {
	name := guide.FirstNonEmpty(j.Channel.Name, j.Channel.ID())
	return fmt.Sprintf("%s %s (%s)", name, j.Date.Format(time.DateOnly), j.Site)
}

// GrabResult is the outcome of one job.
type GrabResult struct {
	Job      GrabJob
	Programs []guide.Program
	Err      error
}

// GrabConfig configures a GrabEngine.
type GrabConfig struct {
	Registry *provider.Registry
	Getter   provider.Getter
	Enricher *metadata.Enricher
	Observer Observer
	Channels []provider.Channel
	// Date is the first day to grab. The zero value means today (UTC).
	Date time.Time
	// Days overrides the descriptor's day count when positive.
	Days int
	// WorkerCount bounds concurrent channel/day jobs.
	WorkerCount int
	// ItemConcurrency bounds concurrent items within one schedule.
	ItemConcurrency int
	Now             func() time.Time
}

// NewGrabEngine constructs an engine with sane defaults applied.
func NewGrabEngine(cfg GrabConfig) *GrabEngine {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 4
	}
	registry := cfg.Registry
	if registry == nil {
		registry = provider.NewRegistry()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	date := cfg.Date
	if date.IsZero() {
		date = now()
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	return &GrabEngine{
		workerCount: workerCount,
		registry:    registry,
		getter:      cfg.Getter,
		enricher:    cfg.Enricher,
		observer:    observer,
		concurrency: cfg.ItemConcurrency,
		now:         now,
		channels:    slices.Clone(cfg.Channels),
		date:        date,
		days:        cfg.Days,
		assemblers:  make(map[string]*Assembler),
		results:     csmap.Create[string, GrabResult](),
		summary:     GrabSummary{WorkerLimit: workerCount},
	}
}

// Start begins grabbing and returns a stream of progress events.
func (e *GrabEngine) Start(ctx context.Context) <-chan GrabEvent {
	events := make(chan GrabEvent, 128)
	go e.run(ctx, events)
	return events
}

// Run grabs synchronously, discarding progress events.
func (e *GrabEngine) Run(ctx context.Context) GrabSummary {
	for range e.Start(ctx) {
	}
	return e.SummarySnapshot()
}

// Results returns a copy of the job results, in job order. It is safe to call
// once the engine has completed.
func (e *GrabEngine) Results() []GrabResult {
	out := make([]GrabResult, 0, e.results.Count())
	for _, job := range e.Jobs() {
		if res, ok := e.results.Load(job.Key()); ok {
			out = append(out, res)
		}
	}
	return out
}

// Programs returns every assembled program ordered by channel and start.
// Programs repeated across overlapping days are reported once.
func (e *GrabEngine) Programs() []guide.Program {
	var all []guide.Program
	for _, res := range e.Results() {
		all = append(all, res.Programs...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Channel != all[j].Channel {
			return all[i].Channel < all[j].Channel
		}
		return all[i].Start.Before(all[j].Start)
	})
	return slices.CompactFunc(all, func(a, b guide.Program) bool {
		return a.Channel == b.Channel && a.Start.Equal(b.Start)
	})
}

// Errors returns a copy of the accumulated errors.
func (e *GrabEngine) Errors() []error {
	e.errorsMu.Lock()
	defer e.errorsMu.Unlock()
	if len(e.errors) == 0 {
		return nil
	}
	cloned := make([]error, len(e.errors))
	copy(cloned, e.errors)
	return cloned
}

// SummarySnapshot returns the latest progress summary.
func (e *GrabEngine) SummarySnapshot() GrabSummary {
	e.summaryMu.RLock()
	defer e.summaryMu.RUnlock()
	return e.summary
}

// Jobs lists the channel/day jobs of this run.
func (e *GrabEngine) Jobs() []GrabJob {
	var jobs []GrabJob
	for _, ch := range e.channels {
		days := e.days
		if days <= 0 {
			if d, ok := e.registry.Get(ch.Site); ok {
				days = d.Days
			}
		}
		days = max(days, 1)
		for i := 0; i < days; i++ {
			jobs = append(jobs, GrabJob{Site: ch.Site, Channel: ch, Date: e.date.AddDate(0, 0, i)})
		}
	}
	return jobs
}

func (e *GrabEngine) run(ctx context.Context, events chan<- GrabEvent) {
	defer close(events)

	jobs := e.Jobs()
	e.summaryMu.Lock()
	e.summary.TotalJobs = len(jobs)
	if len(jobs) == 0 {
		e.summary.Done = true
	}
	e.summaryMu.Unlock()
	e.emit(ctx, events, nil)
	if len(jobs) == 0 {
		return
	}

	workerCount := min(e.workerCount, len(jobs))
	workCh := make(chan GrabJob)
	resultCh := make(chan GrabResult)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, workCh, resultCh)
	}

	e.summaryMu.Lock()
	e.summary.ActiveWorkers = workerCount
	e.summaryMu.Unlock()
	e.emit(ctx, events, nil)

	go func() {
		defer close(workCh)
		for _, job := range jobs {
			select {
			case workCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for {
		select {
		case <-ctx.Done():
			e.summaryMu.Lock()
			e.summary.Canceled = true
			e.summary.ActiveWorkers = 0
			e.summaryMu.Unlock()
			e.emit(ctx, events, ctx.Err())
			return
		case res, ok := <-resultCh:
			if !ok {
				e.summaryMu.Lock()
				e.summary.ActiveWorkers = 0
				e.summary.Done = true
				e.summaryMu.Unlock()
				e.emit(ctx, events, nil)
				return
			}
			e.processResult(res)
			e.emit(ctx, events, nil)
		}
	}
}

func (e *GrabEngine) worker(ctx context.Context, wg *sync.WaitGroup, workCh <-chan GrabJob, resultCh chan<- GrabResult) {
	defer wg.Done()

	for job := range workCh {
		if ctx.Err() != nil {
			return
		}
		res := e.grab(ctx, job)
		select {
		case resultCh <- res:
		case <-ctx.Done():
			return
		}
	}
}

// grab fetches one schedule and assembles it.
func (e *GrabEngine) grab(ctx context.Context, job GrabJob) GrabResult {
	res := GrabResult{Job: job, Programs: []guide.Program{}}
	date := job.Date.Format(time.DateOnly)

	d, ok := e.registry.Get(job.Site)
	if !ok {
		res.Err = fmt.Errorf("unknown site %q", job.Site)
		return res
	}
	if !e.registry.IsEnabled(d.Name) {
		res.Err = fmt.Errorf("provider %s is disabled", d.Name)
		return res
	}
	if e.getter == nil {
		res.Err = errors.New("no fetcher configured")
		return res
	}

	body, err := e.getter.Get(ctx, d.Request(job.Channel, job.Date, e.now()))
	log.LogFetch(d.Site, job.Channel.ID(), date, err)
	if err != nil {
		res.Err = provider.ClassifyError(d.Name, err)
		return res
	}

	res.Programs = e.assembler(d).BuildSchedule(ctx, body, job.Channel, job.Date)
	log.LogBuild(d.Site, job.Channel.ID(), date, len(res.Programs))
	return res
}

func (e *GrabEngine) assembler(d *provider.Descriptor) *Assembler {
	e.assemblersMu.Lock()
	defer e.assemblersMu.Unlock()

	if a, ok := e.assemblers[d.Name]; ok {
		return a
	}
	a := NewAssembler(AssemblerConfig{
		Descriptor:  d,
		Getter:      e.getter,
		Enricher:    e.enricher,
		Observer:    e.observer,
		Concurrency: e.concurrency,
	})
	e.assemblers[d.Name] = a
	return a
}

func (e *GrabEngine) processResult(res GrabResult) {
	e.results.Store(res.Job.Key(), res)

	errCount := e.appendError(res)
	e.summaryMu.Lock()
	e.summary.ProcessedJobs++
	e.summary.Programs += len(res.Programs)
	e.summary.ErrorCount = errCount
	e.summary.LastJob = res.Job.String()
	e.summaryMu.Unlock()
}

func (e *GrabEngine) appendError(res GrabResult) int {
	e.errorsMu.Lock()
	defer e.errorsMu.Unlock()
	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		e.errors = append(e.errors, fmt.Errorf("%s: %w", res.Job, res.Err))
	}
	return len(e.errors)
}

func (e *GrabEngine) emit(ctx context.Context, events chan<- GrabEvent, err error) {
	summary := e.SummarySnapshot()
	select {
	case events <- GrabEvent{Summary: summary, Err: err}:
	case <-ctx.Done():
	}
}
