package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/resetlink/backend/internal/models"
	"gorm.io/gorm"
)

// ErrDuplicateToken signals a unique-constraint collision on the token
// column. Callers are expected to regenerate and retry.
var ErrDuplicateToken = errors.New("duplicate reset token")

// TokenStore is the persistence boundary for reset tokens. It must behave
// identically on the embedded SQLite store and on Postgres.
type TokenStore interface {
	Insert(ctx context.Context, email, token string, createdAt, expiresAt time.Time) (*models.ResetToken, error)
	FindByToken(ctx context.Context, token string) (*models.ResetToken, error)
	MarkUsed(ctx context.Context, token string) error
	Consume(ctx context.Context, token string, now time.Time) (bool, error)
}

type tokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) TokenStore {
	return &tokenStore{db: db}
}

func (s *tokenStore) Insert(ctx context.Context, email, token string, createdAt, expiresAt time.Time) (*models.ResetToken, error) {
	record := &models.ResetToken{
		Email:     email,
		Token:     token,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		Used:      false,
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateToken
		}
		return nil, fmt.Errorf("insert reset token: %w", err)
	}
	return record, nil
}

// FindByToken returns (nil, nil) when no record carries the token.
func (s *tokenStore) FindByToken(ctx context.Context, token string) (*models.ResetToken, error) {
	var record models.ResetToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return &record, nil
}

// MarkUsed unconditionally flips the used flag. Missing tokens are a no-op.
func (s *tokenStore) MarkUsed(ctx context.Context, token string) error {
	err := s.db.WithContext(ctx).
		Model(&models.ResetToken{}).
		Where("token = ?", token).
		Update("used", true).Error
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	return nil
}

// Consume atomically claims a pending, unexpired token. The guarded UPDATE
// makes concurrent redeemers race on a single row write, so exactly one
// caller observes true.
func (s *tokenStore) Consume(ctx context.Context, token string, now time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.ResetToken{}).
		Where("token = ? AND used = ? AND expires_at > ?", token, false, now).
		Update("used", true)
	if result.Error != nil {
		return false, fmt.Errorf("consume reset token: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
