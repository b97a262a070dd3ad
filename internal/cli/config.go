package cli

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-auth-session/client"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

const (
	appName   = "sessionctl"
	envPrefix = "SESSIONCTL"
)

// Store kinds accepted by --store
const (
	StoreFile   = "file"
	StoreSQL    = "sql"
	StoreMemory = "memory"
)

// Config is the sessionctl configuration. Values come from flags, then
// SESSIONCTL_* environment variables, then the config file.
type Config struct {
	APIURL    string           `mapstructure:"api_url"`
	Store     string           `mapstructure:"store"`
	StorePath string           `mapstructure:"store_path"`
	Timeout   time.Duration    `mapstructure:"timeout"`
	Verbose   bool             `mapstructure:"verbose"`
	AuditLog  string           `mapstructure:"audit_log"`
	Endpoints client.Endpoints `mapstructure:"endpoints"`
	Serve     ServeConfig      `mapstructure:"serve"`
}

// ServeConfig configures the local web UI
type ServeConfig struct {
	Listen  string `mapstructure:"listen"`
	Metrics bool   `mapstructure:"metrics"`
	Watch   bool   `mapstructure:"watch"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, appName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", appName))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", client.DefaultBaseURL)
	v.SetDefault("store", StoreFile)
	v.SetDefault("store_path", "")
	v.SetDefault("timeout", client.DefaultTimeout)
	v.SetDefault("verbose", false)
	v.SetDefault("audit_log", "")

	// registered so SESSIONCTL_ENDPOINTS_* variables reach Unmarshal
	ep := client.DefaultEndpoints()
	v.SetDefault("endpoints.sign_in", ep.SignIn)
	v.SetDefault("endpoints.sign_up", ep.SignUp)
	v.SetDefault("endpoints.me", ep.Me)
	v.SetDefault("endpoints.profile", ep.Profile)
	v.SetDefault("endpoints.password", ep.Password)
	v.SetDefault("endpoints.users", ep.Users)
	v.SetDefault("endpoints.user_role", ep.UserRole)
	v.SetDefault("endpoints.user", ep.User)

	v.SetDefault("serve.listen", "127.0.0.1:3000")
	v.SetDefault("serve.metrics", true)
	v.SetDefault("serve.watch", true)
}

// loadConfig reads the optional config file and decodes the merged settings
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config")
	}

	switch cfg.Store {
	case StoreFile, StoreSQL, StoreMemory:
	default:
		return nil, goerrors.New("unknown store "+cfg.Store+", use file, sql or memory", goerrors.CategoryBadInput).
			WithTextCode("CLI_UNKNOWN_STORE")
	}

	return &cfg, nil
}
