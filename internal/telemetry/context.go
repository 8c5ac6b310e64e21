package telemetry

import "context"

type contextKey int

const clientKey contextKey = iota

// WithClient attaches a telemetry client to the context.
func WithClient(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// GetClient retrieves the telemetry client from the context, falling
// back to a NoOpClient if none was attached.
//
//nolint:ireturn // returns whichever Client implementation was attached
func GetClient(ctx context.Context) Client {
	if v := ctx.Value(clientKey); v != nil {
		if c, ok := v.(Client); ok {
			return c
		}
	}
	return &NoOpClient{}
}
