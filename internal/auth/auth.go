// Package auth is the boundary to the external authentication
// collaborator. The service only needs a resolved owner identity; how
// sessions are issued is out of scope.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Resolver maps an incoming request to an owner identity or
// ErrUnauthenticated. Every cart and checkout operation requires a
// resolved owner before any mutation.
type Resolver interface {
	OwnerID(r *http.Request) (string, error)
}

// HeaderResolver trusts an upstream gateway to have authenticated the
// caller and to forward the owner identity in a header.
type HeaderResolver struct {
	Header string
}

func NewHeaderResolver(header string) *HeaderResolver {
	if header == "" {
		header = "X-Owner-ID"
	}
	return &HeaderResolver{Header: header}
}

func (hr *HeaderResolver) OwnerID(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get(hr.Header))
	if owner == "" {
		return "", ErrUnauthenticated
	}
	return owner, nil
}

type ownerKey struct{}

// WithOwner stores the resolved owner on the context.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the owner placed by the auth middleware, or
// ErrUnauthenticated when the request never passed through it.
func OwnerFromContext(ctx context.Context) (string, error) {
	owner, _ := ctx.Value(ownerKey{}).(string)
	if owner == "" {
		return "", ErrUnauthenticated
	}
	return owner, nil
}
