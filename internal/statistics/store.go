// Package statistics keeps running aggregates over finished rounds: the mean accuracy,
// the number of rounds played and the best round. The aggregates live in a key-value
// backend so they survive restarts.
package statistics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/victornm/moviequiz/internal/domain"
	"github.com/victornm/moviequiz/internal/errors"
	"github.com/victornm/moviequiz/internal/telemetry"
)

// KV is the persistence backend. Set must write all pairs atomically.
type KV interface {
	// Get returns the values of the keys that exist. Missing keys are absent from the map.
	Get(ctx context.Context, keys ...string) (map[string]string, error)
	Set(ctx context.Context, values map[string]string) error
}

type Config struct {
	KV     KV
	Prefix string
}

type Store struct {
	kv     KV
	prefix string
}

func NewStore(c Config) *Store {
	return &Store{
		kv:     c.KV,
		prefix: c.Prefix,
	}
}

// RecordRound folds one finished round into the aggregates.
func (s *Store) RecordRound(ctx context.Context, correct, total int, when time.Time) error {
	if total <= 0 {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("total must be positive, got %d", total))
	}
	if correct < 0 || correct > total {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("correct must be within [0, %d], got %d", total, correct))
	}

	st, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	n := float64(st.GamesCount)
	accuracy := (st.TotalAccuracy*n + float64(correct)/float64(total)) / (n + 1)

	values := map[string]string{
		s.accuracyKey(): strconv.FormatFloat(accuracy, 'g', -1, 64),
		s.countKey():    strconv.Itoa(st.GamesCount + 1),
	}

	round := domain.GameRecord{Correct: correct, Total: total, Date: when}
	if st.GamesCount == 0 || round.Better(st.BestGame) {
		b, err := json.Marshal(round)
		if err != nil {
			return fmt.Errorf("encode best game: %w", err)
		}
		values[s.bestGameKey()] = string(b)
	}

	if err := s.kv.Set(ctx, values); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}

	telemetry.RoundsRecorded.Inc()
	slog.DebugContext(ctx, "statistics: round recorded",
		"round", round.String(),
		"games_count", st.GamesCount+1,
	)

	return nil
}

// Stats reads all aggregates. Missing keys read as zero values.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	res, err := s.kv.Get(ctx, s.accuracyKey(), s.countKey(), s.bestGameKey())
	if err != nil {
		return domain.Stats{}, fmt.Errorf("load stats: %w", err)
	}

	var st domain.Stats

	if v, ok := res[s.accuracyKey()]; ok {
		if st.TotalAccuracy, err = strconv.ParseFloat(v, 64); err != nil {
			return domain.Stats{}, corrupted(s.accuracyKey(), err)
		}
	}

	if v, ok := res[s.countKey()]; ok {
		if st.GamesCount, err = strconv.Atoi(v); err != nil {
			return domain.Stats{}, corrupted(s.countKey(), err)
		}
	}

	if v, ok := res[s.bestGameKey()]; ok {
		if err := json.Unmarshal([]byte(v), &st.BestGame); err != nil {
			return domain.Stats{}, corrupted(s.bestGameKey(), err)
		}
	}

	return st, nil
}

func (s *Store) TotalAccuracy(ctx context.Context) (float64, error) {
	st, err := s.Stats(ctx)
	return st.TotalAccuracy, err
}

func (s *Store) GamesCount(ctx context.Context) (int, error) {
	st, err := s.Stats(ctx)
	return st.GamesCount, err
}

func (s *Store) BestGame(ctx context.Context) (domain.GameRecord, error) {
	st, err := s.Stats(ctx)
	return st.BestGame, err
}

func corrupted(key string, err error) error {
	return errors.New(errors.CodeParse,
		errors.WithMessagef("corrupted value at %s", key),
		errors.WithCause(err))
}

func (s *Store) accuracyKey() string {
	return fmt.Sprintf("%s:stats:total_accuracy", s.prefix)
}

func (s *Store) countKey() string {
	return fmt.Sprintf("%s:stats:games_count", s.prefix)
}

func (s *Store) bestGameKey() string {
	return fmt.Sprintf("%s:stats:best_game", s.prefix)
}
