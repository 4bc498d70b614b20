package audit

import "context"

// RequestInfo is the ambient actor context threaded explicitly into the
// persistence call. All fields are optional; a background job without a
// request produces entries with null actor columns.
type RequestInfo struct {
	UserID   *string
	IP       string
	Endpoint string
}

type ctxKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	if ctx == nil {
		return RequestInfo{}, false
	}
	v, ok := ctx.Value(ctxKey{}).(RequestInfo)
	return v, ok
}
