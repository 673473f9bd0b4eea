package auth

import "context"

type contextKey struct{}

// WithCaller attaches a validated caller identity to a request context.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	if caller == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, caller)
}

// CallerFromContext extracts the caller, or nil when the frame carried no
// credentials (anonymous, or authentication disabled).
func CallerFromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(contextKey{}).(*Caller)
	return caller
}
