package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/resetlink/backend/internal/config"
	"github.com/resetlink/backend/internal/logger"
	"github.com/resetlink/backend/internal/store"
	"github.com/resetlink/backend/pkg/validation"
	"go.uber.org/zap"
)

// ErrInvalidEmail rejects addresses that fail the syntactic check in Issue.
var ErrInvalidEmail = errors.New("invalid email address")

// TokenStatus classifies a token at read time. Expiry is a derived
// predicate, not a stored state; a used token reports StatusUsed even after
// its window has passed.
type TokenStatus int

const (
	StatusMissing TokenStatus = iota
	StatusUsed
	StatusExpired
	StatusValid
)

func (s TokenStatus) String() string {
	switch s {
	case StatusUsed:
		return "used"
	case StatusExpired:
		return "expired"
	case StatusValid:
		return "valid"
	default:
		return "missing"
	}
}

// Evaluation is the outcome of classifying a token. Email is set only for
// StatusValid.
type Evaluation struct {
	Status TokenStatus
	Email  string
}

const (
	tokenBytes          = 32
	maxCollisionRetries = 3
)

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type TokenService struct {
	store store.TokenStore
	cfg   *config.Config
}

func NewTokenService(tokenStore store.TokenStore, cfg *config.Config) *TokenService {
	return &TokenService{
		store: tokenStore,
		cfg:   cfg,
	}
}

// Issue validates and normalizes the address, then persists a fresh token
// record expiring after the configured window. The returned string is the
// only copy of the credential; it cannot be re-derived from the record.
func (s *TokenService) Issue(ctx context.Context, email string) (string, error) {
	if !validation.ValidateEmail(email) {
		return "", ErrInvalidEmail
	}
	email = validation.NormalizeEmail(email)

	var lastErr error
	for attempt := 0; attempt < maxCollisionRetries; attempt++ {
		token, err := generateToken()
		if err != nil {
			return "", err
		}

		now := time.Now().UTC()
		_, err = s.store.Insert(ctx, email, token, now, now.Add(s.cfg.ResetExpiry))
		if err == nil {
			logger.Log.Info("reset token issued",
				zap.String("email", email),
				zap.Time("expires_at", now.Add(s.cfg.ResetExpiry)))
			return token, nil
		}
		if !errors.Is(err, store.ErrDuplicateToken) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("issue reset token: %w", lastErr)
}

// Evaluate classifies a token without mutating it. Check order is fixed:
// nonexistence, then used, then expiry, so a used-and-expired token reports
// StatusUsed.
func (s *TokenService) Evaluate(ctx context.Context, token string) (Evaluation, error) {
	record, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return Evaluation{}, err
	}
	if record == nil {
		return Evaluation{Status: StatusMissing}, nil
	}
	if record.Used {
		return Evaluation{Status: StatusUsed}, nil
	}
	if record.Expired(time.Now().UTC()) {
		return Evaluation{Status: StatusExpired}, nil
	}
	return Evaluation{Status: StatusValid, Email: record.Email}, nil
}

// Redeem consumes a token exactly once. Classification and the used-flag
// write race as a single guarded UPDATE, so of any number of concurrent
// redeemers exactly one gets StatusValid; the rest see StatusUsed.
func (s *TokenService) Redeem(ctx context.Context, token string) (Evaluation, error) {
	eval, err := s.Evaluate(ctx, token)
	if err != nil {
		return Evaluation{}, err
	}
	if eval.Status != StatusValid {
		return eval, nil
	}

	won, err := s.store.Consume(ctx, token, time.Now().UTC())
	if err != nil {
		return Evaluation{}, err
	}
	if !won {
		// Lost the race to another redeemer, or the window closed between
		// the read and the write. Reclassify for accurate messaging.
		eval, err = s.Evaluate(ctx, token)
		if err != nil {
			return Evaluation{}, err
		}
		if eval.Status == StatusValid {
			eval = Evaluation{Status: StatusUsed}
		}
		return eval, nil
	}

	logger.Log.Info("reset token redeemed", zap.String("email", eval.Email))
	return eval, nil
}
