package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> utils).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyToken         = ContextKey("Token")
	ContextKeyStoreId       = ContextKey("StoreId")
	ContextKeyCorrelationId = ContextKey("CorrelationId")

	// ContextKeyViewId identifies the UI view that issued a reconciliation.
	// A newer request from the same view supersedes older ones.
	ContextKeyViewId = ContextKey("ViewId")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
