package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

type principalKey struct{}

// principal is what Auth learned about the caller. Stored by value, so each
// With* call yields a new copy.
type principal struct {
	userID    string
	role      string
	sessionID string
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, set func(*principal)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	p := principalFrom(ctx)
	set(&p)
	return context.WithValue(ctx, principalKey{}, p)
}

func UserIDFromContext(ctx context.Context) string { return principalFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return principalFrom(ctx).role }

// SessionIDFromContext returns the access token's jti, which also keys the
// terminal's cart.
func SessionIDFromContext(ctx context.Context) string { return principalFrom(ctx).sessionID }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.userID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.role = role })
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.sessionID = sessionID })
}

// ViewerFromContext resolves the authenticated operator.
func ViewerFromContext(ctx context.Context) (sales.Viewer, error) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return sales.Viewer{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return sales.Viewer{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role, err := enums.ParseUserRole(RoleFromContext(ctx))
	if err != nil {
		return sales.Viewer{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid role")
	}
	return sales.Viewer{UserID: userID, Role: role}, nil
}
