// Package config loads cleants settings from file, environment and flags.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jptrs93/cleants/internal/generate"
	tsgen "github.com/jptrs93/cleants/internal/generate/ts"
)

// Sentinel validation errors.
var (
	ErrMissingOutDir        = errors.New("output directory is required")
	ErrInvalidParallelism   = errors.New("parallelism must not be negative")
	ErrInvalidFailurePolicy = errors.New("invalid failure policy")
	ErrMissingRuntimeModule = errors.New("runtime module is required")
)

const (
	EnvPrefix  = "CLEANTS"
	ConfigName = "cleants"
)

// Keys, shared with the command's flag bindings.
const (
	KeyRootDir       = "root_dir"
	KeyOutDir        = "out_dir"
	KeySourceDir     = "source_dir"
	KeyImportPaths   = "import_paths"
	KeyRuntimeModule = "runtime.module"
	KeyRuntimeAlias  = "runtime.alias"
	KeyFailurePolicy = "generate.failure_policy"
	KeyParallelism   = "generate.parallelism"
	KeyLogLevel      = "logging.level"
	KeyLogFormat     = "logging.format"
)

type Config struct {
	RootDir     string         `mapstructure:"root_dir" yaml:"root_dir"`
	OutDir      string         `mapstructure:"out_dir" yaml:"out_dir"`
	SourceDir   string         `mapstructure:"source_dir" yaml:"source_dir"`
	ImportPaths []string       `mapstructure:"import_paths" yaml:"import_paths"`
	Runtime     RuntimeConfig  `mapstructure:"runtime" yaml:"runtime"`
	Generate    GenerateConfig `mapstructure:"generate" yaml:"generate"`
	Logging     LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// RuntimeConfig names the support library every generated module imports.
type RuntimeConfig struct {
	Module string `mapstructure:"module" yaml:"module"`
	Alias  string `mapstructure:"alias" yaml:"alias"`
}

type GenerateConfig struct {
	FailurePolicy string `mapstructure:"failure_policy" yaml:"failure_policy"`
	Parallelism   int    `mapstructure:"parallelism" yaml:"parallelism"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyRootDir, "")
	v.SetDefault(KeyOutDir, "gen-ts")
	v.SetDefault(KeySourceDir, "")
	v.SetDefault(KeyImportPaths, []string{})
	v.SetDefault(KeyRuntimeModule, tsgen.DefaultRuntimeModule)
	v.SetDefault(KeyRuntimeAlias, tsgen.DefaultRuntimeAlias)
	v.SetDefault(KeyFailurePolicy, generate.FailFast.String())
	v.SetDefault(KeyParallelism, 1)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads configPath, or cleants.yaml from the working directory when
// configPath is empty, into v and returns the validated result. A missing
// default config file is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

func Validate(cfg *Config) error {
	if cfg.OutDir == "" {
		return ErrMissingOutDir
	}
	if cfg.Runtime.Module == "" {
		return ErrMissingRuntimeModule
	}
	if cfg.Generate.Parallelism < 0 {
		return errors.Wrapf(ErrInvalidParallelism, "%d", cfg.Generate.Parallelism)
	}
	if _, err := generate.ParseFailurePolicy(cfg.Generate.FailurePolicy); err != nil {
		return errors.Wrapf(ErrInvalidFailurePolicy, "%q", cfg.Generate.FailurePolicy)
	}
	return nil
}

// FailurePolicy returns the parsed batch failure policy.
func (c *Config) FailurePolicy() generate.FailurePolicy {
	policy, _ := generate.ParseFailurePolicy(c.Generate.FailurePolicy)
	return policy
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return out, nil
}
