package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/victornm/triviaquiz/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Store struct {
		Driver string
		Path   string
	}

	Quiz struct {
		Duration time.Duration
	}
}

func defaults() testConfig {
	var c testConfig
	c.HTTP.Port = 8080
	c.Store.Driver = "memory"
	c.Store.Path = "quiz.db"
	c.Quiz.Duration = 5 * time.Minute
	return c
}

func TestLoad_Defaults(t *testing.T) {
	c := defaults()
	require.NoError(t, config.Load("", "TQTEST", nil, &c))
	require.Equal(t, defaults(), c)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9090
store:
  driver: sqlite
  path: from-file.db
`), 0o600))

	t.Setenv("TQTEST_STORE_DRIVER", "redis")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Duration("quiz.duration", time.Minute, "")
	flags.String("store.path", "", "")
	require.NoError(t, flags.Parse([]string{"--quiz.duration=90s"}))

	c := defaults()
	require.NoError(t, config.Load(path, "TQTEST", flags, &c))

	require.EqualValues(t, 9090, c.HTTP.Port, "file should override defaults")
	require.Equal(t, "redis", c.Store.Driver, "env should override file")
	require.Equal(t, "from-file.db", c.Store.Path, "unset flags should not override")
	require.Equal(t, 90*time.Second, c.Quiz.Duration, "set flags should override")
}

func TestLoad_MissingFile(t *testing.T) {
	c := defaults()
	require.Error(t, config.Load(filepath.Join(t.TempDir(), "nope.yaml"), "TQTEST", nil, &c))
}

func TestLoad_EnvForKeyMissingFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: 9090\n"), 0o600))

	t.Setenv("TQTEST_QUIZ_DURATION", "2m")

	c := defaults()
	require.NoError(t, config.Load(path, "TQTEST", nil, &c))
	require.Equal(t, 2*time.Minute, c.Quiz.Duration)
	require.Equal(t, "memory", c.Store.Driver)
}
