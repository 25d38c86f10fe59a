package goAuthForm

import "context"

type requestOriginContextKey struct{}
type deviceClassContextKey struct{}

// WithRequestOrigin attaches the host page origin to ctx. The form engine
// copies it into the flow event stream so sinks can correlate attempts with
// the embedding surface.
func WithRequestOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, requestOriginContextKey{}, origin)
}

// WithDeviceClass attaches a free-form device class label ("desktop",
// "mobile", kiosk IDs, ...) to ctx for flow event enrichment.
func WithDeviceClass(ctx context.Context, deviceClass string) context.Context {
	return context.WithValue(ctx, deviceClassContextKey{}, deviceClass)
}

func requestOriginFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	origin, _ := ctx.Value(requestOriginContextKey{}).(string)
	return origin
}

func deviceClassFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	deviceClass, _ := ctx.Value(deviceClassContextKey{}).(string)
	return deviceClass
}

// carryRequestValues copies the request-scoped metadata of a transition call
// onto the base context an effect goroutine will run with. Effects outlive the
// transition call, so values are carried, not the caller's deadline.
func carryRequestValues(base, call context.Context) context.Context {
	if call == nil {
		return base
	}
	if origin := requestOriginFromContext(call); origin != "" {
		base = WithRequestOrigin(base, origin)
	}
	if deviceClass := deviceClassFromContext(call); deviceClass != "" {
		base = WithDeviceClass(base, deviceClass)
	}
	return base
}
