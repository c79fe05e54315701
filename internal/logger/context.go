package logger

import "context"

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds fields that are attached to every *Ctx log call.
type LogContext struct {
	Script string // scenario name
	Step   int    // 1-based step number, 0 when unset
	Txn    string // transaction label
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithStep returns a copy for the given step and transaction.
func (lc *LogContext) WithStep(step int, txn string) *LogContext {
	clone := lc.Clone()
	if clone == nil {
		clone = &LogContext{}
	}
	clone.Step = step
	clone.Txn = txn
	return clone
}
