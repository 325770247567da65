package api

import (
	"context"
	"errors"
)

// orgContextKey is the context key for the authenticated organization ID.
type orgContextKey struct{}

// ErrNoOrgInContext indicates no organization ID was found in the context.
var ErrNoOrgInContext = errors.New("no organization in context")

// WithOrgID returns a new context with the organization ID attached.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgContextKey{}, orgID)
}

// OrgIDFromContext extracts the organization ID from the context.
// Returns ErrNoOrgInContext if not present or empty.
func OrgIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(orgContextKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoOrgInContext
	}
	return id, nil
}

// MustOrgIDFromContext extracts the organization ID or panics.
// Use only when middleware guarantees its presence.
func MustOrgIDFromContext(ctx context.Context) string {
	id, err := OrgIDFromContext(ctx)
	if err != nil {
		panic("organization not in context: middleware misconfiguration")
	}
	return id
}
