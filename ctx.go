package account

import (
	"context"

	"github.com/google/uuid"
)

var userCtxKey = &contextKey{"user"}
var userIDCtxKey = &contextKey{"user_id"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithUserID sets the verified session owner in the given context
func WithUserID(r context.Context, id uuid.UUID) context.Context {
	return context.WithValue(r, userIDCtxKey, id)
}

// UserIDFromContext finds the verified session owner from the context.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	raw, ok := ctx.Value(userIDCtxKey).(uuid.UUID)
	return raw, ok
}
