package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/triviaquiz/internal/api"
	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/errors"
	"github.com/victornm/triviaquiz/internal/event"
	"github.com/victornm/triviaquiz/internal/kv"
	"github.com/victornm/triviaquiz/internal/leaderboard"
	"github.com/victornm/triviaquiz/internal/quiz"
	"github.com/victornm/triviaquiz/internal/theme"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAPI_PlayQuiz(t *testing.T) {
	h := makeHandler(t)

	var home api.HomeResponse
	do(t, h, http.MethodGet, "/api/home", nil, http.StatusOK, &home)
	assert.Equal(t, domain.StateWelcome, home.State)
	assert.Equal(t, domain.ThemeLight, home.Theme)
	assert.Empty(t, home.Leaderboard)

	do(t, h, http.MethodPost, "/api/register", map[string]any{"email": "a@example.com"}, http.StatusBadRequest, nil)

	var snap domain.Snapshot
	do(t, h, http.MethodPost, "/api/register", map[string]any{"name": "Alice", "email": "a@example.com"}, http.StatusOK, &snap)
	assert.Equal(t, domain.StateInstructions, snap.State)

	var v domain.QuestionView
	do(t, h, http.MethodPost, "/api/start", nil, http.StatusOK, &v)
	assert.Equal(t, 1, v.Number)
	assert.Equal(t, 10, v.Total)
	assert.Len(t, v.Options, domain.OptionCount)

	var e errors.Error
	do(t, h, http.MethodPost, "/api/next", nil, http.StatusConflict, &e)
	assert.Equal(t, errors.CodeFailedPrecondition, e.Code)
	assert.Equal(t, "please select an option", e.Message)

	do(t, h, http.MethodPost, "/api/answer", map[string]any{"option": 9}, http.StatusBadRequest, nil)
	do(t, h, http.MethodPost, "/api/answer", map[string]any{}, http.StatusBadRequest, nil)

	for {
		do(t, h, http.MethodPost, "/api/answer", map[string]any{"option": correctDisplayIndex(t, v)}, http.StatusOK, &v)
		require.NotNil(t, v.Selected)
		if v.Last {
			break
		}
		do(t, h, http.MethodPost, "/api/next", nil, http.StatusOK, &v)
	}

	var r domain.Result
	do(t, h, http.MethodPost, "/api/submit", nil, http.StatusOK, &r)
	assert.Equal(t, 20, r.Score)
	assert.Equal(t, domain.FinishSubmitted, r.Reason)
	require.Len(t, r.Leaderboard, 1)

	var again domain.Result
	do(t, h, http.MethodGet, "/api/result", nil, http.StatusOK, &again)
	assert.Equal(t, r.SessionID, again.SessionID)
	assert.Len(t, again.Review, 10)

	do(t, h, http.MethodPost, "/api/submit", nil, http.StatusConflict, nil)

	var entries []domain.ScoreEntry
	do(t, h, http.MethodGet, "/api/leaderboard", nil, http.StatusOK, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alice", entries[0].Name)
	assert.Equal(t, 20, entries[0].Score)

	do(t, h, http.MethodGet, "/api/leaderboard?n=abc", nil, http.StatusBadRequest, nil)

	do(t, h, http.MethodPost, "/api/reset", nil, http.StatusOK, &home)
	assert.Equal(t, domain.StateWelcome, home.State)
	assert.Len(t, home.Leaderboard, 1)

	do(t, h, http.MethodGet, "/api/result", nil, http.StatusNotFound, nil)
}

func TestAPI_Theme(t *testing.T) {
	h := makeHandler(t)

	var resp api.ThemeResponse
	do(t, h, http.MethodGet, "/api/theme", nil, http.StatusOK, &resp)
	assert.Equal(t, domain.ThemeLight, resp.Theme)

	do(t, h, http.MethodPost, "/api/theme/toggle", nil, http.StatusOK, &resp)
	assert.Equal(t, domain.ThemeDark, resp.Theme)

	do(t, h, http.MethodGet, "/api/theme", nil, http.StatusOK, &resp)
	assert.Equal(t, domain.ThemeDark, resp.Theme)
}

func TestAPI_Events(t *testing.T) {
	srv := httptest.NewServer(makeHandler(t))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// The handler subscribes right after the upgrade, so keep toggling until a change arrives.
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(20 * time.Millisecond):
				resp, err := http.Post(srv.URL+"/api/theme/toggle", "application/json", nil)
				if err == nil {
					_ = resp.Body.Close()
				}
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var n struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, domain.EventNameThemeChanged, n.Event)

	var changed domain.EventThemeChanged
	require.NoError(t, json.Unmarshal(n.Data, &changed))
	assert.True(t, changed.Theme.Valid())
}

func TestAPI_PublishLeaderboardUpdated(t *testing.T) {
	fr := &fakeRedis{}
	a := api.New(api.Config{
		Router:       gin.New(),
		EventBus:     event.NewBus(),
		Quiz:         quiz.NewEngine(quiz.Config{}),
		Redis:        fr,
		PubsubPrefix: "local",
	})

	err := a.PublishLeaderboardUpdated(context.Background(), domain.EventLeaderboardUpdated{
		Entries: []domain.ScoreEntry{
			{Name: "Alice", Score: 20},
			{Name: "Bob", Score: 18},
			{Name: "Alice", Score: 12},
		},
	})
	require.NoError(t, err)

	channels := fr.channels()
	assert.ElementsMatch(t, []string{"local:leaderboard", "local:user:Alice", "local:user:Bob"}, channels)

	var n struct {
		Event string              `json:"event"`
		Data  []domain.ScoreEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(fr.message("local:leaderboard"), &n))
	assert.Equal(t, domain.EventNameLeaderboardUpdated, n.Event)
	assert.Len(t, n.Data, 3)
}

func makeHandler(t *testing.T) http.Handler {
	t.Helper()

	eb := event.NewBus()
	store := kv.NewMemory()

	lb := leaderboard.NewService(leaderboard.Config{EventBus: eb, Store: store})
	th := theme.NewService(theme.Config{
		EventBus:    eb,
		Store:       store,
		PrefersDark: func() bool { return false },
	})
	e := quiz.NewEngine(quiz.Config{
		EventBus:    eb,
		Leaderboard: lb,
		Rand:        rand.New(rand.NewPCG(5, 6)),
	})
	t.Cleanup(e.Close)

	r := gin.New()
	api.New(api.Config{
		Router:      r,
		EventBus:    eb,
		Quiz:        e,
		Leaderboard: lb,
		Theme:       th,
	})

	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any, wantStatus int, out any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, wantStatus, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func correctDisplayIndex(t *testing.T, v domain.QuestionView) int {
	t.Helper()

	for _, q := range quiz.DefaultBank() {
		if q.Text != v.Text {
			continue
		}
		for i, o := range v.Options {
			if o == q.Options[q.CorrectIndex] {
				return i
			}
		}
	}

	t.Fatalf("question %q not found in bank", v.Text)
	return -1
}

type fakeRedis struct {
	mu   sync.Mutex
	msgs map[string][]byte
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.msgs == nil {
		f.msgs = make(map[string][]byte)
	}
	f.msgs[channel] = message.([]byte)

	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) channels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.msgs))
	for c := range f.msgs {
		out = append(out, c)
	}
	return out
}

func (f *fakeRedis) message(channel string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgs[channel]
}
