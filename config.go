package gossipsim

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Engine modes
const (
	ModePaced   = "paced"
	ModeVirtual = "virtual"
)

// LogConfig selects the logger's output
type LogConfig struct {
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=plain text json"`
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
}

// Config holds the parameters of one experiment
type Config struct {
	Latency              LatencyDesc `json:"latency" yaml:"latency" mapstructure:"latency"`
	Reliability          float64     `json:"reliability" yaml:"reliability" mapstructure:"reliability" validate:"gte=0,lte=1"`
	BroadcastSuccessRate float64     `json:"broadcastSuccessRate" yaml:"broadcastSuccessRate" mapstructure:"broadcastSuccessRate" validate:"gte=0,lte=1"`

	// Seed selects a seeded random source; zero uses a named rngstream stream
	Seed uint64 `json:"seed" yaml:"seed" mapstructure:"seed"`

	Agents       int    `json:"agents" yaml:"agents" mapstructure:"agents" validate:"gte=0"`
	TargetDegree int    `json:"targetDegree" yaml:"targetDegree" mapstructure:"targetDegree" validate:"gte=0"`
	Mode         string `json:"mode" yaml:"mode" mapstructure:"mode" validate:"oneof=paced virtual"`

	// Duration is wall-clock seconds in paced mode, virtual seconds otherwise
	Duration float64 `json:"duration" yaml:"duration" mapstructure:"duration" validate:"gte=0"`
	Sleep    float64 `json:"sleep" yaml:"sleep" mapstructure:"sleep" validate:"gte=0"`

	// virtual mode only
	AsyncClocks    bool    `json:"asyncClocks" yaml:"asyncClocks" mapstructure:"asyncClocks"`
	ProcessingTime float64 `json:"processingTime" yaml:"processingTime" mapstructure:"processingTime" validate:"gte=0"`
	Cores          int     `json:"cores" yaml:"cores" mapstructure:"cores" validate:"gte=1"`

	Trace     bool   `json:"trace" yaml:"trace" mapstructure:"trace"`
	TraceFile string `json:"traceFile" yaml:"traceFile" mapstructure:"traceFile"`

	Log LogConfig `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns a fresh Config holding the defaults
func DefaultConfig() *Config {
	return &Config{
		Latency:              LatencyDesc{Model: "normal", Mean: 50},
		Reliability:          0.9,
		BroadcastSuccessRate: 1.0,
		Agents:               10,
		TargetDegree:         5,
		Mode:                 ModePaced,
		Duration:             10,
		AsyncClocks:          true,
		Cores:                1,
		TraceFile:            "trace.yaml",
		Log:                  LogConfig{Format: LogFormatPlain, Level: "info"},
	}
}

// setDefaults mirrors DefaultConfig into v, so every key is known to the
// environment lookup
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("latency.model", d.Latency.Model)
	v.SetDefault("latency.mean", d.Latency.Mean)
	v.SetDefault("latency.stddev", d.Latency.Stddev)
	v.SetDefault("reliability", d.Reliability)
	v.SetDefault("broadcastSuccessRate", d.BroadcastSuccessRate)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("agents", d.Agents)
	v.SetDefault("targetDegree", d.TargetDegree)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("duration", d.Duration)
	v.SetDefault("sleep", d.Sleep)
	v.SetDefault("asyncClocks", d.AsyncClocks)
	v.SetDefault("processingTime", d.ProcessingTime)
	v.SetDefault("cores", d.Cores)
	v.SetDefault("trace", d.Trace)
	v.SetDefault("traceFile", d.TraceFile)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)
}

// LoadConfig loads configuration from, in increasing priority:
// 1. Default values
// 2. The configuration file at path, when path is not empty
// 3. Environment variables (GOSSIPSIM_ prefix, dots become underscores)
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("GOSSIPSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the field constraints
func (cfg *Config) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Latency.Model == "convolve" && len(cfg.Latency.Components) == 0 {
		return fmt.Errorf("config validation failed: convolve latency model has no components")
	}
	return nil
}
