package extensibility

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/primitives"
)

// LoggingKernel wraps a Kernel and logs around execution.
type LoggingKernel struct {
	inner  core.Kernel
	logger *zap.Logger
}

// NewLoggingKernel creates a LoggingKernel wrapping inner. A nil logger is a no-op.
func NewLoggingKernel(inner core.Kernel, logger *zap.Logger) *LoggingKernel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingKernel{inner: inner, logger: logger.Named("kernel")}
}

// Execute logs before and after delegating to the inner kernel.
func (k *LoggingKernel) Execute(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack) error {
	k.logger.Debug("executing kernel",
		zap.String("op", op.QualifiedName()),
		zap.Int("stack", stack.Len()))
	start := time.Now()
	err := k.inner.Execute(ctx, ec, op, stack)
	fields := []zap.Field{
		zap.String("op", op.QualifiedName()),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		k.logger.Warn("kernel failed", append(fields, zap.Error(err))...)
		return err
	}
	k.logger.Debug("kernel completed", fields...)
	return nil
}
