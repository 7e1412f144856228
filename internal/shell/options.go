package shell

import (
	"io"

	"github.com/okian/leadflow/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithOutput sets where command output goes.
func WithOutput(w io.Writer) Option {
	return func(s *Session) {
		if w != nil {
			s.out = w
		}
	}
}

// WithPrompt sets the prompt printed before every line. Empty disables it.
func WithPrompt(prompt string) Option {
	return func(s *Session) {
		s.prompt = prompt
	}
}

// WithFormat sets the default render format of list, stats and top.
func WithFormat(format string) Option {
	return func(s *Session) {
		if format != "" {
			s.format = format
		}
	}
}

// WithTopLimit sets how many leads top shows without -n.
func WithTopLimit(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.topLimit = n
		}
	}
}

// WithNotifications prints background import outcomes as they happen.
func WithNotifications(enabled bool) Option {
	return func(s *Session) {
		s.notify = enabled
	}
}

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
