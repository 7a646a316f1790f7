package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger: JSON production encoding for env "production", the
// human-readable development encoder otherwise.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}

	return zap.NewDevelopment()
}
