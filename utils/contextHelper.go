package utils

import (
	"context"

	"github.com/mmdatafocus/storecrm_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyStoreId       = appctx.ContextKeyStoreId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyViewId        = appctx.ContextKeyViewId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetStoreIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyStoreId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetViewIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyViewId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetStoreIdInContext(ctx context.Context, storeId string) context.Context {
	return appctx.Set(ctx, ContextKeyStoreId, storeId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetViewIdInContext(ctx context.Context, viewId string) context.Context {
	return appctx.Set(ctx, ContextKeyViewId, viewId)
}
