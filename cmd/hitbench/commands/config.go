package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".hitbench"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for hitbench settings.
const envPrefix = "HITBENCH"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Default configuration values.
const (
	DefaultSeed            = 1
	DefaultWidgets         = 2000
	DefaultWorldSize       = 2048.0
	DefaultMaxWidgetSize   = 96.0
	DefaultLayers          = 4
	DefaultPointQueries    = 10000
	DefaultRectQueries     = 1000
	DefaultRectSize        = 128.0
	DefaultRebuildFraction = 0.25
	DefaultVerifyRounds    = 50
	DefaultVerifyMutations = 100
	DefaultVerifyProbes    = 200
)

// Config is the top-level hitbench configuration.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Seed    uint64        `mapstructure:"seed"`
	Fixture FixtureConfig `mapstructure:"fixture"`
	Queries QueryConfig   `mapstructure:"queries"`
	Policy  PolicyConfig  `mapstructure:"policy"`
	Verify  VerifyConfig  `mapstructure:"verify"`
}

// FixtureConfig controls generated fixtures.
type FixtureConfig struct {
	Widgets       int     `mapstructure:"widgets"`
	WorldSize     float64 `mapstructure:"world_size"`
	MaxWidgetSize float64 `mapstructure:"max_widget_size"`
	Layers        int     `mapstructure:"layers"`
}

// QueryConfig controls the run workload.
type QueryConfig struct {
	Points   int     `mapstructure:"points"`
	Rects    int     `mapstructure:"rects"`
	RectSize float64 `mapstructure:"rect_size"`
}

// PolicyConfig mirrors canopy.UpdatePolicy.
type PolicyConfig struct {
	RebuildFraction float64 `mapstructure:"rebuild_fraction"`
}

// VerifyConfig controls the verify mutation script.
type VerifyConfig struct {
	Rounds    int `mapstructure:"rounds"`
	Mutations int `mapstructure:"mutations"`
	Probes    int `mapstructure:"probes"`
}

// Validation errors.
var (
	ErrInvalidFixture = errors.New("invalid fixture settings")
	ErrInvalidQueries = errors.New("invalid query settings")
	ErrInvalidPolicy  = errors.New("invalid policy settings")
	ErrInvalidVerify  = errors.New("invalid verify settings")
)

// Validate checks the configuration for values the benchmark cannot use.
func (c *Config) Validate() error {
	switch {
	case c.Fixture.Widgets <= 0:
		return fmt.Errorf("%w: widgets must be positive, got %d", ErrInvalidFixture, c.Fixture.Widgets)
	case c.Fixture.WorldSize <= 0:
		return fmt.Errorf("%w: world_size must be positive, got %v", ErrInvalidFixture, c.Fixture.WorldSize)
	case c.Fixture.MaxWidgetSize < 0:
		return fmt.Errorf("%w: max_widget_size must not be negative, got %v", ErrInvalidFixture, c.Fixture.MaxWidgetSize)
	case c.Fixture.Layers <= 0:
		return fmt.Errorf("%w: layers must be positive, got %d", ErrInvalidFixture, c.Fixture.Layers)
	}

	if c.Queries.Points < 0 || c.Queries.Rects < 0 || c.Queries.RectSize < 0 {
		return fmt.Errorf("%w: counts and rect_size must not be negative", ErrInvalidQueries)
	}

	if c.Policy.RebuildFraction < 0 {
		return fmt.Errorf("%w: rebuild_fraction must not be negative, got %v", ErrInvalidPolicy, c.Policy.RebuildFraction)
	}

	if c.Verify.Rounds <= 0 || c.Verify.Mutations < 0 || c.Verify.Probes < 0 {
		return fmt.Errorf("%w: rounds must be positive, mutations and probes not negative", ErrInvalidVerify)
	}

	return nil
}

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("seed", DefaultSeed)

	viperCfg.SetDefault("fixture.widgets", DefaultWidgets)
	viperCfg.SetDefault("fixture.world_size", DefaultWorldSize)
	viperCfg.SetDefault("fixture.max_widget_size", DefaultMaxWidgetSize)
	viperCfg.SetDefault("fixture.layers", DefaultLayers)

	viperCfg.SetDefault("queries.points", DefaultPointQueries)
	viperCfg.SetDefault("queries.rects", DefaultRectQueries)
	viperCfg.SetDefault("queries.rect_size", DefaultRectSize)

	viperCfg.SetDefault("policy.rebuild_fraction", DefaultRebuildFraction)

	viperCfg.SetDefault("verify.rounds", DefaultVerifyRounds)
	viperCfg.SetDefault("verify.mutations", DefaultVerifyMutations)
	viperCfg.SetDefault("verify.probes", DefaultVerifyProbes)
}
