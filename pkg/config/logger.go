package config

import "go.uber.org/zap"

// NewLogger builds the process logger: human-readable in local development,
// JSON in production.
func NewLogger(app AppConfig) (*zap.Logger, error) {
	if app.Env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
