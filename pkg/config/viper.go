package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source says where a service finds its YAML file and which env namespace overrides it.
type Source struct {
	Dir       string
	Name      string
	EnvPrefix string
}

// Load reads src into a fresh viper instance. Keys may be overridden by
// PREFIX_SECTION_KEY environment variables. Without a file, defaults and env still apply.
func Load(src Source) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName(src.Name)
	for _, dir := range []string{src.Dir, ".", "./config"} {
		if dir != "" {
			v.AddConfigPath(dir)
		}
	}

	if src.EnvPrefix != "" {
		v.SetEnvPrefix(src.EnvPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil, errors.As(err, &notFound):
		return v, nil
	default:
		return nil, fmt.Errorf("read %s config: %w", src.Name, err)
	}
}

// Duration parses key as a Go duration. Unset, malformed and negative values yield def.
func Duration(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def
	}
	return d
}
