// internal/workers/shopping/notify-reply/config.go
package notifyreply

import (
	"time"

	"shopping-assistant/internal/common/config"
)

type Config struct {
	EmailEnabled   bool
	SMSEnabled     bool
	DefaultSubject string
	Timeout        time.Duration
}

func LoadConfig(wcfg config.WorkerConfig, ncfg config.NotificationConfig) *Config {
	cfg := &Config{
		EmailEnabled:   ncfg.Email.Enabled,
		SMSEnabled:     ncfg.SMS.Enabled,
		DefaultSubject: "Your shopping assistant reply",
		Timeout:        config.GetDuration(wcfg.Timeout),
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return cfg
}
