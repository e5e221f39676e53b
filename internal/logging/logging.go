// Package logging builds the prefixed loggers every component receives.
//
// Output always goes to stderr. When Config.File is set it is also written
// to a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log output.
type Config struct {
	// File is an optional log file path. Empty means stderr only.
	File string `mapstructure:"file" toml:"file"`

	// MaxSizeMB is the size at which the file is rotated (default: 10).
	MaxSizeMB int `mapstructure:"max_size_mb" toml:"max_size_mb"`

	// MaxBackups is how many rotated files to keep (default: 3).
	MaxBackups int `mapstructure:"max_backups" toml:"max_backups"`

	// MaxAgeDays removes rotated files older than this (0 keeps them).
	MaxAgeDays int `mapstructure:"max_age_days" toml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `mapstructure:"compress" toml:"compress"`
}

// DefaultConfig logs to stderr only.
func DefaultConfig() Config {
	return Config{
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// Output owns the shared log writer.
type Output struct {
	w    io.Writer
	file *lumberjack.Logger
	once sync.Once
}

// Open creates the writer described by cfg.
func Open(cfg Config) (*Output, error) {
	if cfg.File == "" {
		return &Output{w: os.Stderr}, nil
	}
	if cfg.MaxSizeMB < 0 || cfg.MaxBackups < 0 || cfg.MaxAgeDays < 0 {
		return nil, fmt.Errorf("log rotation limits must not be negative")
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &Output{
		w:    io.MultiWriter(os.Stderr, file),
		file: file,
	}, nil
}

// Logger returns a logger whose lines start with "[component] ".
func (o *Output) Logger(component string) *log.Logger {
	return log.New(o.w, "["+component+"] ", log.LstdFlags)
}

// Writer returns the underlying writer.
func (o *Output) Writer() io.Writer {
	return o.w
}

// Close closes the log file, if any. Safe to call more than once.
func (o *Output) Close() error {
	var err error
	o.once.Do(func() {
		if o.file != nil {
			err = o.file.Close()
		}
	})
	return err
}

// New returns a component logger writing to stderr, for callers without an
// Output.
func New(component string) *log.Logger {
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags)
}
