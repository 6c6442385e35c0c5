package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Channels used across the service.
const (
	ChannelAuth = "authuser"
	ChannelEnv  = "varenv"
	ChannelDB   = "db"
	ChannelSAT  = "sat"
	ChannelHTTP = "http"
)

func Setup(dev bool) zerolog.Logger {
	return New(os.Stderr, dev)
}

// New builds a logger writing to w. In dev mode output is human readable and includes stacks.
func New(w io.Writer, dev bool) zerolog.Logger {
	return build(output(w, dev), dev)
}

func output(w io.Writer, dev bool) io.Writer {
	if !dev {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, FormatTimestamp: func(i any) string {
		return time.Now().Format(time.RFC3339)
	}}
}

func build(w io.Writer, dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp().Caller()
	if dev {
		ctx = ctx.Stack()
	}
	return ctx.Logger()
}

// Registry hands out one logger per named channel. Channels are tagged with
// their name and, when a directory is configured, also appended as JSON to <dir>/<name>.log.
type Registry struct {
	out  io.Writer
	dev  bool
	dir  string
	root zerolog.Logger

	mu       sync.Mutex
	channels map[string]zerolog.Logger
	files    []*os.File
}

// NewRegistry creates a registry writing to w. An empty dir disables log files.
func NewRegistry(w io.Writer, dev bool, dir string) (*Registry, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return &Registry{
		out:      w,
		dev:      dev,
		dir:      dir,
		root:     New(w, dev),
		channels: make(map[string]zerolog.Logger),
	}, nil
}

// Root returns the logger not bound to any channel.
func (r *Registry) Root() zerolog.Logger {
	return r.root
}

// Channel returns the logger for name, creating it on first use.
// If the channel file cannot be opened the channel logs to the main output only.
func (r *Registry) Channel(name string) zerolog.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.channels[name]; ok {
		return l
	}

	w := output(r.out, r.dev)
	if r.dir != "" {
		path := filepath.Join(r.dir, name+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			r.root.Error().Err(err).Str("path", path).Msg("Failed to open channel log file")
		} else {
			r.files = append(r.files, f)
			w = zerolog.MultiLevelWriter(w, f)
		}
	}

	l := build(w, r.dev).With().Str("channel", name).Logger()
	r.channels[name] = l
	return l
}

// Close closes the channel log files.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, f := range r.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.files = nil
	return firstErr
}
