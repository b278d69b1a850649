package obs

import (
	"context"
	"sync"
)

type routePatternKey struct{}

type annotationsKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

// Annotations collects request-scoped fields (quote id, cache outcome, batch
// id) that handlers add after routing and the request logger emits once the
// response is written.
type Annotations struct {
	mu     sync.Mutex
	keys   []string
	values map[string]string
}

// WithAnnotations installs an empty annotation set on the context unless one
// is already present.
func WithAnnotations(ctx context.Context) (context.Context, *Annotations) {
	if ctx == nil {
		ctx = context.Background()
	}
	if a := annotationsFrom(ctx); a != nil {
		return ctx, a
	}
	a := &Annotations{values: map[string]string{}}
	return context.WithValue(ctx, annotationsKey{}, a), a
}

// Annotate records key=value on the request's annotation set. Later values
// for the same key replace earlier ones. Without an installed set the call
// is a no-op.
func Annotate(ctx context.Context, key, value string) {
	a := annotationsFrom(ctx)
	if a == nil || key == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, seen := a.values[key]; !seen {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Each visits annotations in first-set order.
func (a *Annotations) Each(fn func(key, value string)) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range a.keys {
		fn(k, a.values[k])
	}
}

func annotationsFrom(ctx context.Context) *Annotations {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(annotationsKey{}).(*Annotations)
	return a
}
