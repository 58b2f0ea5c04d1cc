package core

import "context"

type contextKey string

const (
	ipContextKey        contextKey = "client_ip"
	userAgentContextKey contextKey = "user_agent"
)

// WithClientInfo attaches the caller's IP and user agent to the
// context so audit entries written deep in the pipeline can carry
// them without threading HTTP details through the engine.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ipContextKey, ip)
	return context.WithValue(ctx, userAgentContextKey, userAgent)
}

// IPFromContext returns the caller IP, or "" when absent.
func IPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ipContextKey).(string)
	return ip
}

// UserAgentFromContext returns the caller user agent, or "" when absent.
func UserAgentFromContext(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentContextKey).(string)
	return ua
}
