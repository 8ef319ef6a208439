package question

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/victornm/moviequiz/internal/domain"
	"github.com/victornm/moviequiz/internal/errors"
	"github.com/victornm/moviequiz/internal/event"
	"github.com/victornm/moviequiz/internal/poster"
	"github.com/victornm/moviequiz/internal/telemetry"
)

const DefaultTemplate = "Is the rating of this movie greater than %s?"

type CatalogLoader interface {
	LoadCatalog(ctx context.Context) ([]domain.Movie, error)
}

type Config struct {
	EventBus  *event.Bus
	Catalog   CatalogLoader
	Posters   poster.Loader
	Threshold decimal.Decimal
	// Template receives the threshold as its only %s verb.
	Template string
	// Intn picks a movie among n. Defaults to math/rand.
	Intn func(n int) int
}

type slotState int

const (
	slotEmpty slotState = iota
	slotPending
	slotReady
)

// flight is one question synthesis. A claimed flight is owed to a requester; an
// unclaimed one is a speculative prefetch whose result goes to the buffer.
type flight struct {
	done    chan struct{}
	claimed bool
	q       domain.Question
	err     error
}

// Factory builds quiz questions from the movie catalog and keeps one question prefetched.
// Results are published on the event bus as domain.EventCatalogReady,
// domain.EventQuestionReady and domain.EventLoadFailed.
type Factory struct {
	eb        *event.Bus
	catalog   CatalogLoader
	posters   poster.Loader
	threshold decimal.Decimal
	template  string
	intn      func(n int) int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sf     singleflight.Group

	mu     sync.Mutex
	movies []domain.Movie
	state  slotState
	ready  domain.Question
	flight *flight
	// prefetchFailed is set when a speculative synthesis failed silently. Only the next
	// explicit request looks at it.
	prefetchFailed bool
	prefetchErr    error
}

func NewFactory(c Config) *Factory {
	ctx, cancel := context.WithCancel(context.Background())

	f := &Factory{
		eb:        c.EventBus,
		catalog:   c.Catalog,
		posters:   c.Posters,
		threshold: c.Threshold,
		template:  c.Template,
		intn:      c.Intn,
		ctx:       ctx,
		cancel:    cancel,
	}
	if f.template == "" {
		f.template = DefaultTemplate
	}
	if f.intn == nil {
		f.intn = rand.Intn
	}

	return f
}

// LoadData loads the catalog in the background. Concurrent calls share one load.
func (f *Factory) LoadData(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		v, err, _ := f.sf.Do("catalog", func() (any, error) {
			lctx, cancel := f.detach(ctx)
			defer cancel()
			return f.catalog.LoadCatalog(lctx)
		})
		if err != nil {
			slog.WarnContext(ctx, "question: load catalog failed", "error", err)
			f.eb.Publish(ctx, domain.EventLoadFailed{Err: err, Catalog: true})
			return
		}

		movies := slices.Clone(v.([]domain.Movie))

		f.mu.Lock()
		f.movies = movies
		f.mu.Unlock()

		f.eb.Publish(ctx, domain.EventCatalogReady{Movies: len(movies)})
		f.prefetch()
	}()
}

// RequestNextQuestion asks for the next question without blocking. The answer arrives
// on the bus. ctx only bounds this request's wait, never the shared synthesis.
func (f *Factory) RequestNextQuestion(ctx context.Context) {
	var source string

	f.mu.Lock()
	switch f.state {
	case slotReady:
		q := f.ready
		f.ready = domain.Question{}
		f.state = slotEmpty
		f.mu.Unlock()

		telemetry.QuestionsDelivered.WithLabelValues("buffer").Inc()
		f.eb.Publish(ctx, domain.EventQuestionReady{Question: q})
		f.prefetch()
		return

	case slotPending:
		if f.flight.claimed {
			f.mu.Unlock()
			slog.DebugContext(ctx, "question: request joined a claimed synthesis")
			return
		}
		f.flight.claimed = true
		source = "inflight"
		telemetry.Prefetch.WithLabelValues("claimed").Inc()

	default:
		if f.prefetchFailed {
			slog.InfoContext(ctx, "question: last prefetch failed, retrying",
				"error", f.prefetchErr,
			)
			f.prefetchFailed, f.prefetchErr = false, nil
		}
		f.startLocked(true)
		source = "fresh"
	}
	fl := f.flight
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.await(ctx, fl, source)
	}()
}

// Catalog returns a copy of the loaded movies.
func (f *Factory) Catalog() []domain.Movie {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.movies)
}

// Close stops in-flight work and waits for background goroutines.
func (f *Factory) Close() {
	f.cancel()
	f.wg.Wait()
}

func (f *Factory) await(ctx context.Context, fl *flight, source string) {
	select {
	case <-fl.done:
	case <-ctx.Done():
		f.release(fl)
		slog.DebugContext(ctx, "question: request cancelled", "error", ctx.Err())
		return
	}

	if fl.err != nil {
		slog.WarnContext(ctx, "question: synthesis failed", "error", fl.err)
		f.eb.Publish(ctx, domain.EventLoadFailed{Err: fl.err})
	} else {
		telemetry.QuestionsDelivered.WithLabelValues(source).Inc()
		f.eb.Publish(ctx, domain.EventQuestionReady{Question: fl.q})
	}

	f.prefetch()
}

// release gives a claimed flight back to the buffer after its requester went away.
func (f *Factory) release(fl *flight) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-fl.done:
		if fl.err == nil && f.state == slotEmpty {
			f.state = slotReady
			f.ready = fl.q
		}
	default:
		fl.claimed = false
	}
}

func (f *Factory) prefetch() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != slotEmpty || len(f.movies) == 0 {
		return
	}
	f.startLocked(false)
}

// startLocked starts a synthesis. f.mu must be held and the buffer must be empty.
func (f *Factory) startLocked(claimed bool) {
	fl := &flight{
		done:    make(chan struct{}),
		claimed: claimed,
	}
	f.flight = fl
	f.state = slotPending
	movies := f.movies

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		ctx, cancel := f.detach(context.Background())
		defer cancel()

		q, err := f.synthesize(ctx, movies)
		f.finish(fl, q, err)
	}()
}

func (f *Factory) finish(fl *flight, q domain.Question, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl.q, fl.err = q, err
	f.flight = nil

	switch {
	case fl.claimed:
		f.state = slotEmpty
	case err != nil:
		f.state = slotEmpty
		f.prefetchFailed, f.prefetchErr = true, err
		telemetry.Prefetch.WithLabelValues("failed").Inc()
		slog.Debug("question: prefetch failed silently", "error", err)
	default:
		f.state = slotReady
		f.ready = q
		telemetry.Prefetch.WithLabelValues("ready").Inc()
	}

	close(fl.done)
}

func (f *Factory) synthesize(ctx context.Context, movies []domain.Movie) (domain.Question, error) {
	if len(movies) == 0 {
		return domain.Question{}, errors.New(errors.CodeNoCatalog)
	}

	m := movies[f.intn(len(movies))]

	img, err := f.posters.LoadPoster(ctx, m.ID)
	if err != nil {
		return domain.Question{}, fmt.Errorf("poster of %s: %w", m.ID, err)
	}

	return Build(m, img, f.threshold, f.template), nil
}

// Build composes the question for a movie: is its rating strictly greater than threshold.
func Build(m domain.Movie, img []byte, threshold decimal.Decimal, template string) domain.Question {
	return domain.Question{
		MovieID:       m.ID,
		Image:         img,
		Text:          fmt.Sprintf(template, threshold.String()),
		CorrectAnswer: m.Rating.GreaterThan(threshold),
	}
}

// detach derives a context that ignores the caller's cancellation but ends with the factory.
func (f *Factory) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(f.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
