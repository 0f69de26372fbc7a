// Package logging routes the standard logger to stdout and, when configured, to a
// rotating file.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/jack/golang-campaign-redirect-service/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup points the standard logger (and gin's writers) at stdout plus an optional
// rotating file. The returned closer releases the file.
func Setup(cfg *config.LogConfig) (io.Writer, io.Closer) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return os.Stdout, io.NopCloser(nil)
	}

	rotator := NewRotator(cfg)
	w := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(w)
	return w, rotator
}

// NewRotator returns the lumberjack writer for cfg.File.
func NewRotator(cfg *config.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
}
