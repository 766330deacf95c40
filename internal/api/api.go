package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/errors"
	"github.com/victornm/triviaquiz/internal/event"
	"github.com/victornm/triviaquiz/internal/leaderboard"
	"github.com/victornm/triviaquiz/internal/quiz"
	"github.com/victornm/triviaquiz/internal/theme"
)

const (
	previewSize     = 3
	leaderboardSize = 5
)

type Config struct {
	Router      gin.IRouter
	EventBus    *event.Bus
	Quiz        *quiz.Engine
	Leaderboard *leaderboard.Service
	Theme       *theme.Service
	// Redis is optional; when set, leaderboard and result notifications are published to it.
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	eb    *event.Bus
	quiz  *quiz.Engine
	lb    *leaderboard.Service
	theme *theme.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		eb:     c.EventBus,
		quiz:   c.Quiz,
		lb:     c.Leaderboard,
		theme:  c.Theme,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	g := c.Router.Group("/api")
	g.GET("/home", a.Home)
	g.POST("/register", a.Register)
	g.POST("/start", a.Start)
	g.GET("/quiz", a.Quiz)
	g.POST("/answer", a.Answer)
	g.POST("/next", a.Next)
	g.POST("/submit", a.Submit)
	g.GET("/result", a.Result)
	g.POST("/reset", a.Reset)
	g.GET("/leaderboard", a.Leaderboard)
	g.GET("/theme", a.Theme)
	g.POST("/theme/toggle", a.ToggleTheme)
	g.GET("/events", a.Events)

	if a.redis != nil {
		a.eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
		a.eb.Subscribe(domain.EventNameQuizFinished, func(ctx context.Context, e event.Event) error {
			return a.PublishQuizFinished(ctx, e.(domain.EventQuizFinished))
		})
	}

	return a
}

type (
	HomeResponse struct {
		State       domain.State        `json:"state"`
		Theme       domain.Theme        `json:"theme"`
		Leaderboard []domain.ScoreEntry `json:"leaderboard"`
	}

	RegisterRequest struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email"`
	}

	AnswerRequest struct {
		Option *int `json:"option" binding:"required"`
	}

	ThemeResponse struct {
		Theme domain.Theme `json:"theme"`
	}
)

// Home is the welcome screen: the leaderboard preview and the theme.
func (a *API) Home(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, HomeResponse{
		State:       a.quiz.Snapshot(ctx).State,
		Theme:       a.theme.Current(ctx),
		Leaderboard: a.lb.TopN(ctx, previewSize),
	})
}

func (a *API) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.InvalidArgument("invalid request: %v", err))
		return
	}

	ctx := c.Request.Context()
	if err := a.quiz.Register(ctx, domain.User{Name: req.Name, Email: req.Email}); err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, a.quiz.Snapshot(ctx))
}

func (a *API) Start(c *gin.Context) {
	v, err := a.quiz.Start(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

func (a *API) Quiz(c *gin.Context) {
	c.JSON(http.StatusOK, a.quiz.Snapshot(c.Request.Context()))
}

func (a *API) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.InvalidArgument("invalid request: %v", err))
		return
	}

	ctx := c.Request.Context()
	if err := a.quiz.SelectAnswer(ctx, *req.Option); err != nil {
		renderError(c, err)
		return
	}

	v, err := a.quiz.Current(ctx)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

func (a *API) Next(c *gin.Context) {
	v, err := a.quiz.Advance(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

func (a *API) Submit(c *gin.Context) {
	r, err := a.quiz.Finish(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, r)
}

func (a *API) Result(c *gin.Context) {
	r, err := a.quiz.Result(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, r)
}

// Reset goes back to the welcome screen.
func (a *API) Reset(c *gin.Context) {
	a.quiz.Reset(c.Request.Context())
	a.Home(c)
}

func (a *API) Leaderboard(c *gin.Context) {
	n := leaderboardSize
	if s := c.Query("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			renderError(c, errors.InvalidArgument("invalid n: %q", s))
			return
		}
		n = v
	}

	c.JSON(http.StatusOK, a.lb.TopN(c.Request.Context(), n))
}

func (a *API) Theme(c *gin.Context) {
	c.JSON(http.StatusOK, ThemeResponse{Theme: a.theme.Current(c.Request.Context())})
}

func (a *API) ToggleTheme(c *gin.Context) {
	c.JSON(http.StatusOK, ThemeResponse{Theme: a.theme.Toggle(c.Request.Context())})
}

func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
