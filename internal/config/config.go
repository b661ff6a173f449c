package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/piper-export/internal/metadata"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Runtime  RuntimeConfig  `mapstructure:"runtime"`
	Output   OutputConfig   `mapstructure:"output"`
	LogLevel string         `mapstructure:"log_level"`
	Metadata metadata.Table `mapstructure:"metadata"`
}

type PathsConfig struct {
	Model      string `mapstructure:"model"`
	FixedModel string `mapstructure:"fixed_model"`
	Sidecar    string `mapstructure:"sidecar"`
	Tokens     string `mapstructure:"tokens"`
	EspeakData string `mapstructure:"espeak_data"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
	ORTAPIVersion  uint32 `mapstructure:"ort_api_version"`
}

type OutputConfig struct {
	Atomic bool `mapstructure:"atomic"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = []struct {
	key  string
	flag string
}{
	{"paths.model", "paths-model"},
	{"paths.fixed_model", "paths-fixed-model"},
	{"paths.sidecar", "paths-sidecar"},
	{"paths.tokens", "paths-tokens"},
	{"paths.espeak_data", "paths-espeak-data"},
	{"runtime.ort_library_path", "runtime-ort-library-path"},
	{"runtime.ort_version", "runtime-ort-version"},
	{"runtime.ort_api_version", "runtime-ort-api-version"},
	{"output.atomic", "output-atomic"},
	{"log_level", "log-level"},
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			Model:      "model.onnx",
			FixedModel: "model_fixed.onnx",
			Sidecar:    "model.onnx.json",
			Tokens:     "tokens.txt",
			EspeakData: "espeak-ng-data",
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTVersion:     "",
			ORTAPIVersion:  23,
		},
		Output: OutputConfig{
			Atomic: true,
		},
		LogLevel: "info",
		Metadata: metadata.DefaultTable(),
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-model", defaults.Paths.Model, "Path to the exported ONNX model")
	fs.String("paths-fixed-model", defaults.Paths.FixedModel, "Path for the model with rewritten metadata")
	fs.String("paths-sidecar", defaults.Paths.Sidecar, "Path to the Piper JSON sidecar (model.onnx.json)")
	fs.String("paths-tokens", defaults.Paths.Tokens, "Path for the generated token table")
	fs.String("paths-espeak-data", defaults.Paths.EspeakData, "Path to the espeak-ng-data directory")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Uint32("runtime-ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version expected by the purego binding")
	fs.Bool("output-atomic", defaults.Output.Atomic, "Write outputs to a temp file and rename on success")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("PIPEREXPORT")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "PIPEREXPORT_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("piperexport")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Metadata.Validate(); err != nil {
		return Config{}, fmt.Errorf("config metadata: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.model", c.Paths.Model)
	v.SetDefault("paths.fixed_model", c.Paths.FixedModel)
	v.SetDefault("paths.sidecar", c.Paths.Sidecar)
	v.SetDefault("paths.tokens", c.Paths.Tokens)
	v.SetDefault("paths.espeak_data", c.Paths.EspeakData)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("output.atomic", c.Output.Atomic)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("metadata", c.Metadata.Clone())
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", fk.flag, err)
		}
	}

	// --ort-lib only wins when it was given explicitly.
	if f := fs.Lookup("ort-lib"); f != nil && f.Changed {
		if err := v.BindPFlag("runtime.ort_library_path", f); err != nil {
			return fmt.Errorf("bind flag --ort-lib: %w", err)
		}
	}

	return nil
}
