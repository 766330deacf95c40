package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Load config into the config struct, config must be a pointer to the config struct.
// Values already set in config act as defaults. They are overridden, in order, by the file
// (skipped when file is empty), environment variables (nested keys joined by "_", with
// envPrefix) and flags that were explicitly set.
func Load(file, envPrefix string, flags *pflag.FlagSet, config any) error {
	v := viper.New()
	m := make(map[string]any)

	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	setDefaults(v, "", m)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}

	if flags != nil {
		var err error
		flags.Visit(func(f *pflag.Flag) {
			if err == nil {
				err = v.BindPFlag(f.Name, f)
			}
		})
		if err != nil {
			return fmt.Errorf("bind flags: %v", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}

// setDefaults registers every leaf of m as a default, so env variables are honoured for keys
// the config file does not mention.
func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}

		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}

		v.SetDefault(key, val)
	}
}
