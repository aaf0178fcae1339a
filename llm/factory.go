package llm

import (
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "QG_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewGenerator creates a model client based on the QG_MODE environment
// variable. If QG_MODE=MOCK, returns a MockClient; otherwise a real Client.
func NewGenerator(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) Generator {
	if os.Getenv(EnvMode) == ModeMock {
		logger.Info("QG_MODE=MOCK detected, using mock model client")
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, model, timeout)
}
