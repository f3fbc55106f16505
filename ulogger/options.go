package ulogger

import (
	"io"
	"os"
)

type Options struct {
	writer   io.Writer
	logLevel string
}

type Option func(*Options)

func DefaultOptions() *Options {
	return &Options{
		writer:   os.Stdout,
		logLevel: "INFO",
	}
}

func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.writer = w
	}
}

func WithLevel(level string) Option {
	return func(o *Options) {
		o.logLevel = level
	}
}
