package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger writing to stderr, so command output on
// stdout stays clean. debug selects the development config (console
// encoding, debug level); otherwise the production config (JSON, info
// level) is used. fields are attached to every entry.
func NewLogger(debug bool, fields ...zap.Field) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(fields...), nil
}
