package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/errors"
	"github.com/victornm/triviaquiz/internal/event"
	"github.com/victornm/triviaquiz/internal/kv"
)

const (
	DefaultKey      = "quizHighScores"
	DefaultCapacity = 5
	DefaultMaxScore = 20
)

type Config struct {
	EventBus *event.Bus
	Store    kv.Store
	Key      string
	Capacity int
	MaxScore int
	Now      func() time.Time
}

// Service keeps a ranked, size-capped list of past scores in a key-value store.
// Access is assumed to come from a single process; concurrent writers may lose entries.
type Service struct {
	eb       *event.Bus
	store    kv.Store
	key      string
	capacity int
	maxScore int
	now      func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:       c.EventBus,
		store:    c.Store,
		key:      c.Key,
		capacity: c.Capacity,
		maxScore: c.MaxScore,
		now:      c.Now,
	}

	if s.key == "" {
		s.key = DefaultKey
	}
	if s.capacity <= 0 {
		s.capacity = DefaultCapacity
	}
	if s.maxScore <= 0 {
		s.maxScore = DefaultMaxScore
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// Record appends a score, re-ranks the list, keeps the top entries and persists them.
// Storage failures are logged and never surfaced: the caller always gets a ranked list.
func (s *Service) Record(ctx context.Context, name string, score int) ([]domain.ScoreEntry, error) {
	if score < 0 || score > s.maxScore {
		return nil, errors.InvalidArgument("score out of range: score=%d, max=%d", score, s.maxScore)
	}

	entries := s.load(ctx)
	entries = append(entries, domain.ScoreEntry{
		Name:      strings.TrimSpace(name),
		Score:     score,
		Timestamp: s.now().UTC(),
	})

	// Stable, so equal scores keep insertion order.
	slices.SortStableFunc(entries, func(a, b domain.ScoreEntry) int {
		return b.Score - a.Score
	})
	if len(entries) > s.capacity {
		entries = entries[:s.capacity]
	}

	if err := s.save(ctx, entries); err != nil {
		slog.WarnContext(ctx, "leaderboard: save failed", "key", s.key, "error", err)
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
			Entries: slices.Clone(entries),
		})
	}

	return entries, nil
}

// TopN returns the first n persisted entries without modifying the store.
func (s *Service) TopN(ctx context.Context, n int) []domain.ScoreEntry {
	if n <= 0 {
		return []domain.ScoreEntry{}
	}

	entries := s.load(ctx)
	if len(entries) > n {
		entries = entries[:n]
	}

	return entries
}

// load treats an absent, unreadable or corrupt list as empty.
func (s *Service) load(ctx context.Context) []domain.ScoreEntry {
	raw, found, err := s.store.Get(ctx, s.key)
	if err != nil {
		slog.WarnContext(ctx, "leaderboard: load failed, using empty list", "key", s.key, "error", err)
		return []domain.ScoreEntry{}
	}
	if !found {
		return []domain.ScoreEntry{}
	}

	var entries []domain.ScoreEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		slog.WarnContext(ctx, "leaderboard: corrupt data, using empty list", "key", s.key, "error", err)
		return []domain.ScoreEntry{}
	}
	if entries == nil {
		entries = []domain.ScoreEntry{}
	}

	return entries
}

func (s *Service) save(ctx context.Context, entries []domain.ScoreEntry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	return s.store.Set(ctx, s.key, string(b))
}
