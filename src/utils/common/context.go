package common

import (
	"context"

	"github.com/mysomeid/sponsor/src/utils/config"
)

type ContextKey int

const (
	ContextKeyConfig ContextKey = iota
	ContextKeyRequestId
)

func SetConfig(ctx context.Context, v *config.Config) context.Context {
	return context.WithValue(ctx, ContextKeyConfig, v)
}

func GetConfig(ctx context.Context) *config.Config {
	v, _ := ctx.Value(ContextKeyConfig).(*config.Config)
	return v
}

func SetRequestId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestId, id)
}

func GetRequestId(ctx context.Context) (id string) {
	id, _ = ctx.Value(ContextKeyRequestId).(string)
	return
}
