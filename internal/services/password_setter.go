package services

import (
	"context"

	"github.com/resetlink/backend/internal/logger"
	"go.uber.org/zap"
)

// PasswordSetter is the boundary to the external user store that actually
// persists the new credential. Hashing and storage live on the other side of
// this interface.
type PasswordSetter interface {
	SetPassword(ctx context.Context, email, newPassword string) error
}

// NoopPasswordSetter acknowledges redemptions without touching any user
// store. Hosts replace it with their own implementation.
type NoopPasswordSetter struct{}

func (NoopPasswordSetter) SetPassword(ctx context.Context, email, newPassword string) error {
	logger.Log.Warn("password set requested but no user store is wired",
		zap.String("email", email))
	return nil
}
