package config

import (
	"errors"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration
type Config struct {
	Server    ServerConfig `yaml:"server"`
	NS        NSConfig     `yaml:"ns"`
	OV        OVConfig     `yaml:"ov"`
	Cache     CacheConfig  `yaml:"cache"`
	Search    SearchConfig `yaml:"search"`
	Favorites string       `yaml:"favoritesFile"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=0,max=65535"`
}

// NSConfig configures the rail API upstream
type NSConfig struct {
	BaseURL        string `yaml:"baseUrl" validate:"omitempty,url"`
	APIKey         string `yaml:"apiKey"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" validate:"min=0,max=60"`
	TripSlots      int    `yaml:"tripSlots" validate:"min=0,max=32"`
	StationSlots   int    `yaml:"stationSlots" validate:"min=0,max=32"`
}

// OVConfig configures the transit departure-board upstream
type OVConfig struct {
	BaseURL        string `yaml:"baseUrl" validate:"omitempty,url"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" validate:"min=0,max=60"`
}

// CacheConfig configures the station and response caches
type CacheConfig struct {
	ResponseTTLSeconds int `yaml:"responseTtlSeconds" validate:"min=0,max=300"`
	ResponseCapacity   int `yaml:"responseCapacity" validate:"min=0"`
	StationTTLMinutes  int `yaml:"stationTtlMinutes" validate:"min=0"`
	StationCapacity    int `yaml:"stationCapacity" validate:"min=0"`
}

// SearchConfig tunes the combination search engine
type SearchConfig struct {
	Target                   int `yaml:"target" validate:"min=0,max=50"`
	MaxVia                   int `yaml:"maxVia" validate:"min=0,max=20"`
	TopA                     int `yaml:"topA" validate:"min=0,max=20"`
	TopB                     int `yaml:"topB" validate:"min=0,max=20"`
	MaxTransferMinutes       int `yaml:"maxTransferMinutes" validate:"min=0,max=120"`
	BudgetSeconds            int `yaml:"budgetSeconds" validate:"min=0,max=120"`
	TransferThresholdMinutes int `yaml:"transferThresholdMinutes" validate:"min=0"`
	TransferPenaltyFactor    int `yaml:"transferPenaltyFactor" validate:"min=0"`
}

// Load reads and validates the configuration. A missing file yields the
// defaults; the NS_API_KEY environment variable overrides the file's key.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
			return nil, uerr
		}
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if key := os.Getenv("NS_API_KEY"); key != "" {
		cfg.NS.APIKey = key
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.NS.TimeoutSeconds == 0 {
		cfg.NS.TimeoutSeconds = 9
	}
	if cfg.NS.TripSlots == 0 {
		cfg.NS.TripSlots = 6
	}
	if cfg.NS.StationSlots == 0 {
		cfg.NS.StationSlots = 4
	}
	if cfg.OV.TimeoutSeconds == 0 {
		cfg.OV.TimeoutSeconds = 8
	}
	if cfg.Cache.ResponseTTLSeconds == 0 {
		cfg.Cache.ResponseTTLSeconds = 10
	}
	if cfg.Cache.ResponseCapacity == 0 {
		cfg.Cache.ResponseCapacity = 256
	}
	if cfg.Cache.StationTTLMinutes == 0 {
		cfg.Cache.StationTTLMinutes = 10
	}
	if cfg.Cache.StationCapacity == 0 {
		cfg.Cache.StationCapacity = 500
	}
	if cfg.Search.Target == 0 {
		cfg.Search.Target = 10
	}
	if cfg.Search.MaxVia == 0 {
		cfg.Search.MaxVia = 8
	}
	if cfg.Search.TopA == 0 {
		cfg.Search.TopA = 5
	}
	if cfg.Search.TopB == 0 {
		cfg.Search.TopB = 8
	}
	if cfg.Search.MaxTransferMinutes == 0 {
		cfg.Search.MaxTransferMinutes = 20
	}
	if cfg.Search.BudgetSeconds == 0 {
		cfg.Search.BudgetSeconds = 15
	}
	if cfg.Search.TransferThresholdMinutes == 0 {
		cfg.Search.TransferThresholdMinutes = 10
	}
	if cfg.Search.TransferPenaltyFactor == 0 {
		cfg.Search.TransferPenaltyFactor = 2
	}
	if cfg.Favorites == "" {
		cfg.Favorites = "data/favorites.json"
	}
}
