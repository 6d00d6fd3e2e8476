package cqrs

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Validatable is implemented by messages that carry their own
// validation rules.
type Validatable interface {
	Validate() error
}

// Logger is the subset of logging the decorators need.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// ValidationDecorator runs the message's Validate method before the
// handler. A failure short-circuits the dispatch; the handler never
// runs on invalid input.
type ValidationDecorator struct{}

func (ValidationDecorator) Wrap(next Invocation) Invocation {
	return func(ctx context.Context, msg Message) error {
		if v, ok := msg.(Validatable); ok {
			if err := v.Validate(); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryValidation, "command validation failed").
					WithMetadata(map[string]any{"message_type": msg.Type()})
			}
		}
		return next(ctx, msg)
	}
}

// LoggingDecorator records every dispatch with its duration and
// outcome.
type LoggingDecorator struct {
	logger Logger
}

// NewLoggingDecorator creates a logging decorator over the given
// logger.
func NewLoggingDecorator(logger Logger) *LoggingDecorator {
	return &LoggingDecorator{logger: logger}
}

func (l *LoggingDecorator) Wrap(next Invocation) Invocation {
	return func(ctx context.Context, msg Message) error {
		start := time.Now()
		err := next(ctx, msg)
		if err != nil {
			l.logger.Error("command %s failed after %s: %v", msg.Type(), time.Since(start), err)
			return err
		}
		l.logger.Debug("command %s completed in %s", msg.Type(), time.Since(start))
		return nil
	}
}
