package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "CHURN_CONFIG"
	modelsDirEnv  = "CHURN_MODELS_DIR"
	csvPathEnv    = "CHURN_CSV_PATH"
	logLevelEnv   = "CHURN_LOG_LEVEL"
	httpAddrEnv   = "CHURN_HTTP_ADDR"
)

// Config holds high-level settings shared by the churn binaries.
type Config struct {
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Training  TrainingConfig  `yaml:"training"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// ArtifactsConfig locates the model artifacts. An empty Dir lets the
// artifact store resolve its own default.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// TrainingConfig drives the training run. Seed is a pointer so an explicit
// seed of 0 survives the merge with the defaults.
type TrainingConfig struct {
	CSVPath  string  `yaml:"csvPath"`
	Target   string  `yaml:"target"`
	Seed     *int64  `yaml:"seed"`
	Trees    int     `yaml:"trees"`
	TestSize float64 `yaml:"testSize"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load starts from defaults, merges the YAML file at path (or the file named
// by CHURN_CONFIG when path is empty) and applies environment overrides.
// No file at all is fine; a named file that cannot be read or parsed is not.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: cannot read %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return cfg, fmt.Errorf("config: cannot parse %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(modelsDirEnv); v != "" {
		c.Artifacts.Dir = v
	}

	if v := os.Getenv(csvPathEnv); v != "" {
		c.Training.CSVPath = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Log.Level = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv("CHURN_TREES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: CHURN_TREES=%q is not a positive integer", v)
		}
		c.Training.Trees = n
	}
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Artifacts.Dir != "" {
		base.Artifacts.Dir = override.Artifacts.Dir
	}

	if override.Training.CSVPath != "" {
		base.Training.CSVPath = override.Training.CSVPath
	}
	if override.Training.Target != "" {
		base.Training.Target = override.Training.Target
	}
	if override.Training.Seed != nil {
		base.Training.Seed = override.Training.Seed
	}
	if override.Training.Trees > 0 {
		base.Training.Trees = override.Training.Trees
	}
	if override.Training.TestSize > 0 {
		base.Training.TestSize = override.Training.TestSize
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Log.Level != "" {
		base.Log.Level = override.Log.Level
	}

	return base
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	seed := int64(42)
	return Config{
		Training: TrainingConfig{
			CSVPath:  "data/telecom_churn.csv",
			Target:   "Churn",
			Seed:     &seed,
			Trees:    300,
			TestSize: 0.2,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}
