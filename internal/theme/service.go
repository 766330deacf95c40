package theme

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/errors"
	"github.com/victornm/triviaquiz/internal/event"
	"github.com/victornm/triviaquiz/internal/kv"
)

const DefaultKey = "theme"

type Config struct {
	EventBus *event.Bus
	Store    kv.Store
	Key      string
	// PrefersDark reports the OS-level preference used when nothing is persisted.
	PrefersDark func() bool
}

type Service struct {
	eb          *event.Bus
	store       kv.Store
	key         string
	prefersDark func() bool

	mu      sync.Mutex
	current domain.Theme
}

func NewService(c Config) *Service {
	s := &Service{
		eb:          c.EventBus,
		store:       c.Store,
		key:         c.Key,
		prefersDark: c.PrefersDark,
	}

	if s.key == "" {
		s.key = DefaultKey
	}
	if s.prefersDark == nil {
		s.prefersDark = TerminalPrefersDark
	}

	return s
}

// Load reads the persisted theme once, falling back to the OS preference.
func (s *Service) Load(ctx context.Context) domain.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked(ctx)
}

// Current returns the loaded theme, loading it on first use.
func (s *Service) Current(ctx context.Context) domain.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentLocked(ctx)
}

// Toggle flips the theme and persists the new value.
func (s *Service) Toggle(ctx context.Context) domain.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.currentLocked(ctx).Toggle()
	s.setLocked(ctx, t)
	return t
}

func (s *Service) Set(ctx context.Context, t domain.Theme) error {
	if !t.Valid() {
		return errors.InvalidArgument("unknown theme: %q", t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.setLocked(ctx, t)
	return nil
}

func (s *Service) loadLocked(ctx context.Context) domain.Theme {
	s.current = s.fallback()

	v, found, err := s.store.Get(ctx, s.key)
	if err != nil {
		slog.WarnContext(ctx, "theme: load failed, using system preference", "error", err)
		return s.current
	}

	if t := domain.Theme(v); found && t.Valid() {
		s.current = t
	}

	return s.current
}

func (s *Service) currentLocked(ctx context.Context) domain.Theme {
	if s.current == "" {
		return s.loadLocked(ctx)
	}
	return s.current
}

// setLocked persists t and publishes the change. A failed save keeps t for this process.
func (s *Service) setLocked(ctx context.Context, t domain.Theme) {
	s.current = t

	if err := s.store.Set(ctx, s.key, string(t)); err != nil {
		slog.WarnContext(ctx, "theme: save failed", "theme", t, "error", err)
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventThemeChanged{Theme: t})
	}
}

func (s *Service) fallback() domain.Theme {
	if s.prefersDark() {
		return domain.ThemeDark
	}
	return domain.ThemeLight
}

// TerminalPrefersDark reads the COLORFGBG hint ("fg;bg") many terminals export.
// Background colours 0-6 and 8 are dark.
func TerminalPrefersDark() bool {
	v := os.Getenv("COLORFGBG")
	if v == "" {
		return false
	}

	parts := strings.Split(v, ";")
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return false
	}

	return (bg >= 0 && bg <= 6) || bg == 8
}
