package server_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/server"
)

func TestNewApp(t *testing.T) {
	ctx := context.Background()

	type inputs struct {
		c server.Config
	}

	type outputs struct {
		a   *server.App
		err error
	}

	tests := map[string]struct {
		arrange func(t *testing.T) inputs
		assert  func(t *testing.T, out outputs)
	}{
		"memory store": {
			arrange: func(t *testing.T) inputs {
				c := server.DefaultConfig()
				c.Store.Driver = server.DriverMemory
				return inputs{c: c}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Nil(t, out.a.Pubsub)
				assert.Equal(t, domain.StateWelcome, out.a.Quiz.Snapshot(ctx).State)
				assert.Equal(t, 10, out.a.Quiz.Total())
			},
		},
		"sqlite store keeps scores": {
			arrange: func(t *testing.T) inputs {
				c := server.DefaultConfig()
				c.Store.SQLite.Path = filepath.Join(t.TempDir(), "quiz.db")
				return inputs{c: c}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)

				_, err := out.a.Leaderboard.Record(ctx, "Alice", 12)
				require.NoError(t, err)

				v, ok, err := out.a.Store.Get(ctx, "quizHighScores")
				require.NoError(t, err)
				require.True(t, ok)
				assert.Contains(t, v, `"name":"Alice"`)
			},
		},
		"redis store and pubsub": {
			arrange: func(t *testing.T) inputs {
				rs := miniredis.RunT(t)

				c := server.DefaultConfig()
				c.Store.Driver = server.DriverRedis
				c.Store.Redis.Addrs = []string{rs.Addr()}
				c.Pubsub.Enabled = true
				c.Pubsub.Addrs = []string{rs.Addr()}
				return inputs{c: c}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				require.NotNil(t, out.a.Pubsub)

				out.a.Theme.Toggle(ctx)
				v, ok, err := out.a.Store.Get(ctx, "theme")
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, string(out.a.Theme.Current(ctx)), v)
			},
		},
		"custom duration": {
			arrange: func(t *testing.T) inputs {
				c := server.DefaultConfig()
				c.Store.Driver = server.DriverMemory
				c.Quiz.Duration = 90 * time.Second
				return inputs{c: c}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, 90, out.a.Quiz.Seconds())
			},
		},
		"unknown driver": {
			arrange: func(t *testing.T) inputs {
				c := server.DefaultConfig()
				c.Store.Driver = "mongo"
				return inputs{c: c}
			},
			assert: func(t *testing.T, out outputs) {
				require.ErrorContains(t, out.err, `unknown driver "mongo"`)
				assert.Nil(t, out.a)
			},
		},
		"missing bank file": {
			arrange: func(t *testing.T) inputs {
				c := server.DefaultConfig()
				c.Store.Driver = server.DriverMemory
				c.Quiz.BankFile = filepath.Join(t.TempDir(), "missing.json")
				return inputs{c: c}
			},
			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.err)
				assert.Nil(t, out.a)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			in := tc.arrange(t)

			a, err := server.NewApp(ctx, in.c)
			if a != nil {
				t.Cleanup(a.Close)
			}

			tc.assert(t, outputs{a: a, err: err})
		})
	}
}
