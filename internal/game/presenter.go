// Package game drives one player through rounds of quiz questions.
//
// Presenter reacts to question factory events and to user actions. Every state change
// runs on the event bus loop, so factory deliveries, answers and timer callbacks never
// interleave.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/moviequiz/internal/domain"
	"github.com/victornm/moviequiz/internal/event"
)

const (
	DefaultQuestionsPerRound = 10
	DefaultAdvanceDelay      = 750 * time.Millisecond
)

type State int

const (
	StateIdle State = iota
	StateAwaitingCatalog
	StateAwaitingQuestion
	StateQuestionDisplayed
	StateAwaitingAdvance
	StateRoundComplete
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StateAwaitingCatalog:   "awaiting_catalog",
	StateAwaitingQuestion:  "awaiting_question",
	StateQuestionDisplayed: "question_displayed",
	StateAwaitingAdvance:   "awaiting_advance",
	StateRoundComplete:     "round_complete",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type QuestionFactory interface {
	LoadData(ctx context.Context)
	RequestNextQuestion(ctx context.Context)
}

type Statistics interface {
	RecordRound(ctx context.Context, correct, total int, when time.Time) error
	Stats(ctx context.Context) (domain.Stats, error)
}

type Config struct {
	EventBus          *event.Bus
	Factory           QuestionFactory
	Stats             Statistics
	View              View
	QuestionsPerRound int
	AdvanceDelay      time.Duration
	Now               func() time.Time
}

type Presenter struct {
	eb      *event.Bus
	factory QuestionFactory
	stats   Statistics
	view    View
	delay   time.Duration
	now     func() time.Time

	// mu guards the fields below for Snapshot; writers are always on the loop.
	mu      sync.Mutex
	state   State
	failed  bool
	session domain.GameSession
	timer   *time.Timer
}

func NewPresenter(c Config) *Presenter {
	p := &Presenter{
		eb:      c.EventBus,
		factory: c.Factory,
		stats:   c.Stats,
		view:    c.View,
		delay:   c.AdvanceDelay,
		now:     c.Now,
		session: domain.GameSession{
			ID:                uuid.New(),
			QuestionsPerRound: c.QuestionsPerRound,
		},
	}
	if p.session.QuestionsPerRound <= 0 {
		p.session.QuestionsPerRound = DefaultQuestionsPerRound
	}
	if p.delay <= 0 {
		p.delay = DefaultAdvanceDelay
	}
	if p.now == nil {
		p.now = time.Now
	}

	p.eb.Subscribe(domain.EventNameCatalogReady, func(ctx context.Context, e event.Event) error {
		p.onCatalogReady(ctx, e.(domain.EventCatalogReady))
		return nil
	})
	p.eb.Subscribe(domain.EventNameQuestionReady, func(ctx context.Context, e event.Event) error {
		p.onQuestionReady(ctx, e.(domain.EventQuestionReady))
		return nil
	})
	p.eb.Subscribe(domain.EventNameLoadFailed, func(ctx context.Context, e event.Event) error {
		p.onLoadFailed(ctx, e.(domain.EventLoadFailed))
		return nil
	})

	return p
}

// Start shows the loading indicator and loads the catalog.
func (p *Presenter) Start(ctx context.Context) {
	p.post(ctx, func(ctx context.Context) {
		if p.state != StateIdle {
			return
		}
		p.setState(StateAwaitingCatalog)
		p.view.ShowLoading()
		p.factory.LoadData(context.WithoutCancel(ctx))
	})
}

// Answer submits the player's yes or no for the displayed question.
func (p *Presenter) Answer(ctx context.Context, yes bool) {
	p.post(ctx, func(ctx context.Context) {
		p.answer(ctx, yes)
	})
}

// Retry repeats the load that failed last.
func (p *Presenter) Retry(ctx context.Context) {
	p.post(ctx, func(ctx context.Context) {
		if !p.failed {
			slog.DebugContext(ctx, "game: nothing to retry", "state", p.state)
			return
		}

		p.mu.Lock()
		p.failed = false
		p.mu.Unlock()

		p.view.ShowLoading()
		if p.state == StateAwaitingCatalog {
			p.factory.LoadData(context.WithoutCancel(ctx))
			return
		}
		p.requestNext(ctx)
	})
}

// Acknowledge closes the results and starts a new round.
func (p *Presenter) Acknowledge(ctx context.Context) {
	p.post(ctx, func(ctx context.Context) {
		if p.state != StateRoundComplete {
			return
		}

		p.mu.Lock()
		p.session.ID = uuid.New()
		p.session.Number = 1
		p.mu.Unlock()

		p.setState(StateAwaitingQuestion)
		p.view.ShowLoading()
		p.requestNext(ctx)
	})
}

// Snapshot returns a copy of the current session and state.
func (p *Presenter) Snapshot() (domain.GameSession, State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.session
	if s.Current != nil {
		q := *s.Current
		s.Current = &q
	}
	return s, p.state
}

// Stop cancels a pending advance.
func (p *Presenter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
}

func (p *Presenter) onCatalogReady(ctx context.Context, e domain.EventCatalogReady) {
	if p.state != StateAwaitingCatalog {
		slog.DebugContext(ctx, "game: ignore catalog.ready", "state", p.state)
		return
	}

	slog.InfoContext(ctx, "game: catalog loaded", "movies", e.Movies)

	p.mu.Lock()
	p.session.Number = 1
	p.session.Score = 0
	p.mu.Unlock()

	p.setState(StateAwaitingQuestion)
	p.requestNext(ctx)
}

func (p *Presenter) onQuestionReady(ctx context.Context, e domain.EventQuestionReady) {
	if p.state != StateAwaitingQuestion {
		slog.DebugContext(ctx, "game: ignore question.ready", "state", p.state, "movie", e.Question.MovieID)
		return
	}

	q := e.Question

	p.mu.Lock()
	p.session.Current = &q
	p.failed = false
	counter := p.session.Counter()
	p.mu.Unlock()

	p.setState(StateQuestionDisplayed)
	p.view.HideLoading()
	p.view.ShowQuestion(q.Text, q.Image, counter)
}

func (p *Presenter) onLoadFailed(ctx context.Context, e domain.EventLoadFailed) {
	awaiting := (p.state == StateAwaitingCatalog && e.Catalog) || (p.state == StateAwaitingQuestion && !e.Catalog)
	if !awaiting {
		slog.DebugContext(ctx, "game: ignore load.failed", "state", p.state, "error", e.Err)
		return
	}

	slog.WarnContext(ctx, "game: load failed", "state", p.state, "error", e.Err)

	p.mu.Lock()
	p.failed = true
	p.mu.Unlock()

	p.view.HideLoading()
	p.view.ShowRetryableError(e.Err.Error())
}

func (p *Presenter) answer(ctx context.Context, yes bool) {
	if p.state != StateQuestionDisplayed {
		slog.DebugContext(ctx, "game: ignore answer", "state", p.state)
		return
	}

	correct := yes == p.session.Current.CorrectAnswer

	p.mu.Lock()
	if correct {
		p.session.Score++
	}
	p.timer = time.AfterFunc(p.delay, func() {
		p.post(ctx, p.advance)
	})
	p.mu.Unlock()

	p.setState(StateAwaitingAdvance)
	p.view.ShowAnswerFeedback(correct)
}

func (p *Presenter) advance(ctx context.Context) {
	if p.state != StateAwaitingAdvance {
		return
	}

	if p.session.Number >= p.session.QuestionsPerRound {
		p.completeRound(ctx)
		return
	}

	p.mu.Lock()
	p.session.Number++
	p.session.Current = nil
	p.mu.Unlock()

	p.setState(StateAwaitingQuestion)
	p.view.ShowLoading()
	p.requestNext(ctx)
}

func (p *Presenter) completeRound(ctx context.Context) {
	round := domain.GameRecord{
		Correct: p.session.Score,
		Total:   p.session.QuestionsPerRound,
		Date:    p.now(),
	}

	if err := p.stats.RecordRound(ctx, round.Correct, round.Total, round.Date); err != nil {
		slog.ErrorContext(ctx, "game: record round failed", "round", round.String(), "error", err)
	}

	var st *domain.Stats
	if s, err := p.stats.Stats(ctx); err != nil {
		slog.ErrorContext(ctx, "game: read stats failed", "error", err)
	} else {
		st = &s
	}

	slog.InfoContext(ctx, "game: round complete", "session", p.session.ID, "round", round.String())

	p.mu.Lock()
	p.session.Score = 0
	p.session.Number = 0
	p.session.Current = nil
	p.mu.Unlock()

	p.setState(StateRoundComplete)
	p.view.ShowResults(newResults(round, st), func() {
		p.Acknowledge(ctx)
	})
}

// requestNext asks for a question. Loop contexts end with their task, the wait must not.
func (p *Presenter) requestNext(ctx context.Context) {
	p.factory.RequestNextQuestion(context.WithoutCancel(ctx))
}

func (p *Presenter) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Presenter) post(ctx context.Context, fn func(ctx context.Context)) {
	p.eb.Post(ctx, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
