// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// UserContext contains the authenticated staff member.
type UserContext struct {
	UserID  string
	Email   string
	Roles   []string
	ShopIDs []string // Shops the staff member works in; empty means all
	IsAdmin bool
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasShopAccess reports whether the user may work with orders of the shop.
// Requests without a user (auth disabled) are not restricted.
func HasShopAccess(ctx context.Context, shopID string) bool {
	u := GetUser(ctx)
	if u == nil || u.IsAdmin || len(u.ShopIDs) == 0 {
		return true
	}
	for _, id := range u.ShopIDs {
		if id == shopID {
			return true
		}
	}
	return false
}
