package main

import (
	"fmt"
	"os"

	"github.com/PDOK/bucket-usage-auditor/internal/agg"
	"github.com/PDOK/bucket-usage-auditor/internal/b2"
	"github.com/PDOK/bucket-usage-auditor/internal/metrics"
	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	B2      b2.Config             `yaml:"b2,omitempty"`
	Metrics metrics.Config        `yaml:"metrics,omitempty"`
	Labels  agg.Labels            `yaml:"labels"`
	Rules   []agg.AggregationRule `yaml:"rules"`
}

type unmarshalledConfig Config

func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	tmp := new(unmarshalledConfig)
	if err := defaults.Set(tmp); err != nil {
		return err
	}
	if err := unmarshal(tmp); err != nil {
		return err
	}
	*c = Config(*tmp)
	return nil
}

// Credentials never live in the config file, only in the environment (or a .env file)
type b2Credentials struct {
	KeyID          string `env:"B2_APPLICATION_KEY_ID,notEmpty,required"`
	ApplicationKey string `env:"B2_APPLICATION_KEY,notEmpty,required"`
}

type azureCredentials struct {
	ConnectionString string `env:"AZURE_STORAGE_CONNECTION_STRING,notEmpty,required"`
}

func loadConfig(path string) (*Config, error) {
	config := new(Config)
	if err := defaults.Set(config); err != nil {
		return nil, err
	}
	if path == "" {
		return config, nil
	}
	configFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err = yaml.UnmarshalStrict(configFile, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return config, nil
}

// loadEnvFile loads a .env file from the working directory, if there is one
func loadEnvFile() error {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}
