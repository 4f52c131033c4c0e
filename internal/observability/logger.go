package observability

import (
	"fmt"

	"github.com/liminal-ai/liminal-chat/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from config. LOG_FORMAT=text selects the
// development console encoder; anything else logs JSON.
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zcfg zap.Config
	if cfg.LogFormat == "text" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

// TruncateID shortens an identifier so logs can correlate users without
// carrying full identities.
func TruncateID(id string) string {
	const keep = 8
	runes := []rune(id)
	if len(runes) <= keep {
		return id
	}
	return string(runes[:keep]) + "..."
}
