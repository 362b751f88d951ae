// Package config resolves runtime settings from defaults, an optional pm.yaml,
// PM_* environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Hussein-Mazeh/LocalVault/auth"
	"github.com/Hussein-Mazeh/LocalVault/internal/db"
	"github.com/Hussein-Mazeh/LocalVault/internal/logging"
)

const (
	EnvPrefix    = "PM"
	ConfigName   = "pm"
	DefaultDir   = "./dev-vault"
	appConfigDir = "localvault"
)

// Config is the resolved settings tree.
type Config struct {
	Dir    string       `mapstructure:"dir"`
	DB     string       `mapstructure:"db"`
	Log    LogConfig    `mapstructure:"log"`
	Policy PolicyConfig `mapstructure:"policy"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PolicyConfig mirrors auth.Policy.
type PolicyConfig struct {
	MinLength     int  `mapstructure:"min_length"`
	RequireDigit  bool `mapstructure:"require_digit"`
	RequireSymbol bool `mapstructure:"require_symbol"`
	RequireUpper  bool `mapstructure:"require_upper"`
	MinStrength   int  `mapstructure:"min_strength"`
}

// flagKeys maps persistent flag names to their config keys.
var flagKeys = map[string]string{
	"dir":        "dir",
	"db":         "db",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// SetDefaults registers the default for every key, which also makes each key
// visible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	p := auth.DefaultPolicy()
	v.SetDefault("dir", DefaultDir)
	v.SetDefault("db", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatConsole)
	v.SetDefault("policy.min_length", p.MinLength)
	v.SetDefault("policy.require_digit", p.RequireDigit)
	v.SetDefault("policy.require_symbol", p.RequireSymbol)
	v.SetDefault("policy.require_upper", p.RequireUpper)
	v.SetDefault("policy.min_strength", p.MinStrength)
}

// AddFlags declares the persistent flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default ./pm.yaml or <user config dir>/localvault/pm.yaml)")
	fs.String("dir", DefaultDir, "vault directory")
	fs.String("db", "", "sqlite database path (default <dir>/vault.db)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", logging.FormatConsole, `log format ("console" or "json")`)
}

// BindFlags binds the flags declared by AddFlags to their keys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file and environment into v and decodes the result.
// A missing pm.yaml is fine unless cfgFile names it explicitly.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, appConfigDir))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if strings.TrimSpace(c.Dir) == "" {
		c.Dir = DefaultDir
	}
	return c, nil
}

// DBPath returns the configured database path, defaulting to <dir>/vault.db.
func (c Config) DBPath() string {
	if c.DB != "" {
		return c.DB
	}
	return filepath.Join(c.Dir, db.DefaultFilename)
}

// PasswordPolicy converts the policy section.
func (c Config) PasswordPolicy() auth.Policy {
	return auth.Policy{
		MinLength:     c.Policy.MinLength,
		RequireDigit:  c.Policy.RequireDigit,
		RequireSymbol: c.Policy.RequireSymbol,
		RequireUpper:  c.Policy.RequireUpper,
		MinStrength:   c.Policy.MinStrength,
	}
}

// Logging converts the log section.
func (c Config) Logging() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}
