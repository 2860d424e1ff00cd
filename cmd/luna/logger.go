package main

import (
	"log/slog"
	"os"

	"github.com/lunacore/luna/pkg/logger"
)

// initLogger configures the package-wide slog logger from CLI flags,
// returning a cleanup func that closes the log file, if any.
func initLogger(level, file, format string) (func(), error) {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	out := os.Stderr
	cleanup := func() {}
	if file != "" {
		f, closeFn, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, err
		}
		out = f
		cleanup = closeFn
	}

	logger.Init(lvl, out, format)
	slog.SetDefault(logger.GetLogger())
	return cleanup, nil
}
