// internal/workers/shopping/ask-assistant/config.go
package askassistant

import (
	"time"

	"shopping-assistant/internal/common/config"
)

type Config struct {
	MaxJobsActive int
	Timeout       time.Duration
}

// defaultTimeout leaves headroom over the default assistant deadline.
const defaultTimeout = 35 * time.Second

func LoadConfig(wcfg config.WorkerConfig) *Config {
	cfg := &Config{
		MaxJobsActive: wcfg.MaxJobsActive,
		Timeout:       config.GetDuration(wcfg.Timeout),
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}
