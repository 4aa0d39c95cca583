package httpx

import "context"

type userSinkKey struct{}

func withUserSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, userSinkKey{}, sink)
}

func userSink(ctx context.Context) *string {
	s, _ := ctx.Value(userSinkKey{}).(*string)
	return s
}
