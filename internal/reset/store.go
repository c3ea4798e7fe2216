// Package reset manages single-use, expiring password-reset tokens keyed by
// (email, token).
//
// Lifecycle per email:
//
//	no-token -> Issue -> active
//	active -> Reissue -> superseded (is_used)
//	active -> Consume -> used
//	active -> expiry -> expired (row kept until the next PurgeExpired)
package reset

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Kyz7/authserver/internal/metrics"
	"github.com/Kyz7/authserver/internal/models"
	"github.com/Kyz7/authserver/internal/utils"
	"github.com/samber/oops"
	"gorm.io/gorm"
)

// TokenBytes is the entropy of a reset token before encoding.
const TokenBytes = 64

var ErrResetTokenNotFound = errors.New("reset token not found")

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// InvalidateActive marks every unused token for email as used.
func (s *Store) InvalidateActive(ctx context.Context, email string) error {
	return invalidateActive(s.db.WithContext(ctx), email)
}

// Issue persists a new token for email expiring after ttl and returns the
// token value only.
func (s *Store) Issue(ctx context.Context, email string, ttl time.Duration) (string, error) {
	return s.issue(s.db.WithContext(ctx), email, ttl)
}

// Reissue invalidates the active tokens for email and issues a new one in a
// single transaction, so two tokens are never active at once.
func (s *Store) Reissue(ctx context.Context, email string, ttl time.Duration) (string, error) {
	var token string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := invalidateActive(tx, email); err != nil {
			return err
		}
		var err error
		token, err = s.issue(tx, email, ttl)
		return err
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// PurgeExpired deletes every token with expires_at <= now and returns the
// number of rows removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.clock()).
		Delete(&models.ResetToken{})
	if result.Error != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").Wrap(result.Error)
	}
	metrics.ResetTokensPurged.Add(float64(result.RowsAffected))
	return result.RowsAffected, nil
}

// Validate purges expired tokens, then reports whether (email, token) is
// active. It never changes the matching record.
func (s *Store) Validate(ctx context.Context, email, token string) (bool, error) {
	if _, err := s.PurgeExpired(ctx); err != nil {
		return false, err
	}

	_, err := s.findActive(s.db.WithContext(ctx), email, token)
	if errors.Is(err, ErrResetTokenNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Consume burns an active token and stores newPasswordHash for email.
//
// The token is claimed first with a conditional update and that claim is kept
// even if the password write fails afterwards: a stuck user is preferred over a
// reusable token.
func (s *Store) Consume(ctx context.Context, email, token, newPasswordHash string) error {
	db := s.db.WithContext(ctx)

	record, err := s.findActive(db, email, token)
	if err != nil {
		return err
	}

	claim := db.Model(&models.ResetToken{}).
		Where("id = ? AND is_used = ?", record.ID, false).
		Update("is_used", true)
	if claim.Error != nil {
		return oops.Code("RESET_CONSUME_FAILED").With("operation", "mark used").Wrap(claim.Error)
	}
	if claim.RowsAffected == 0 {
		// lost the race against another consume or a reissue
		return ErrResetTokenNotFound
	}

	update := db.Model(&models.User{}).
		Where("email = ?", email).
		Update("password", newPasswordHash)
	if update.Error != nil {
		return oops.Code("RESET_CONSUME_FAILED").With("operation", "update password").Wrap(update.Error)
	}
	if update.RowsAffected == 0 {
		return ErrResetTokenNotFound
	}

	log.Printf("🔑 Reset token %s consumed", utils.Fingerprint(token))
	return nil
}

func (s *Store) issue(db *gorm.DB, email string, ttl time.Duration) (string, error) {
	token, err := utils.RandomToken(TokenBytes)
	if err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	record := models.ResetToken{
		Email:     email,
		Token:     token,
		ExpiresAt: s.clock().Add(ttl),
		IsUsed:    false,
	}
	if err := db.Create(&record).Error; err != nil {
		return "", oops.Code("RESET_TOKEN_SAVE_FAILED").Wrap(err)
	}
	return token, nil
}

func (s *Store) findActive(db *gorm.DB, email, token string) (*models.ResetToken, error) {
	var record models.ResetToken
	err := db.
		Where("email = ? AND token = ? AND is_used = ? AND expires_at > ?", email, token, false, s.clock()).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrResetTokenNotFound
	}
	if err != nil {
		return nil, oops.Code("RESET_LOOKUP_FAILED").Wrap(err)
	}
	return &record, nil
}

func invalidateActive(db *gorm.DB, email string) error {
	err := db.Model(&models.ResetToken{}).
		Where("email = ? AND is_used = ?", email, false).
		Update("is_used", true).Error
	if err != nil {
		return oops.Code("RESET_INVALIDATE_FAILED").Wrap(err)
	}
	return nil
}
