// Package operator carries the authenticated staff member through request contexts.
package operator

import "context"

type ctxKey string

const operatorKey ctxKey = "dentalcrm.operator"

// System is recorded as the actor when no operator is authenticated.
const System = "system"

// WithOperator stores the operator name in context.
func WithOperator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operatorKey, name)
}

// FromContext extracts the operator name if present.
func FromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(operatorKey)
	if val == nil {
		return "", false
	}
	name, ok := val.(string)
	return name, ok && name != ""
}

// Actor returns the operator name, or System when the request is anonymous.
func Actor(ctx context.Context) string {
	if name, ok := FromContext(ctx); ok {
		return name
	}
	return System
}
