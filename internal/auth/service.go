package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Kyz7/authserver/internal/mail"
	"github.com/Kyz7/authserver/internal/metrics"
	"github.com/Kyz7/authserver/internal/models"
	"github.com/Kyz7/authserver/internal/reset"
	"github.com/Kyz7/authserver/internal/token"
	"github.com/Kyz7/authserver/internal/user"
	"github.com/Kyz7/authserver/internal/utils"
	"github.com/samber/oops"
)

// DefaultResetTTL is how long a password reset link stays usable.
const DefaultResetTTL = time.Hour

type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type UserStore interface {
	FindByIDOrEmail(ctx context.Context, q user.Lookup) (*models.User, error)
	Create(ctx context.Context, email, passwordHash string) (*models.User, error)
}

type ResetStore interface {
	Reissue(ctx context.Context, email string, ttl time.Duration) (string, error)
	Validate(ctx context.Context, email, token string) (bool, error)
	Consume(ctx context.Context, email, token, newPasswordHash string) error
}

type Options struct {
	// Domain is the host placed in reset links.
	Domain   string
	ResetTTL time.Duration
}

type Service struct {
	users  UserStore
	hasher Hasher
	signer *token.Signer
	resets ResetStore
	mailer mail.Sender
	opts   Options

	dummyOnce sync.Once
	dummyHash string
}

func NewService(users UserStore, hasher Hasher, signer *token.Signer, resets ResetStore, mailer mail.Sender, opts Options) *Service {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = DefaultResetTTL
	}
	return &Service{
		users:  users,
		hasher: hasher,
		signer: signer,
		resets: resets,
		mailer: mailer,
		opts:   opts,
	}
}

// Result is what a successful register or login hands back to the caller.
type Result struct {
	User    *models.User
	Tokens  token.Pair
	Session Session
}

func (s *Service) Register(ctx context.Context, email, password string) (*Result, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrValidation
	}

	_, err := s.users.FindByIDOrEmail(ctx, user.Lookup{Email: email})
	switch {
	case err == nil:
		metrics.AuthEvents.WithLabelValues("register", "conflict").Inc()
		return nil, user.ErrUserExists
	case !errors.Is(err, user.ErrUserNotFound):
		return nil, err
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Create(ctx, email, hash)
	if err != nil {
		return nil, err
	}

	result, err := s.issue(u)
	if err != nil {
		return nil, err
	}

	s.send(ctx, mail.WelcomeMessage(u.Email))
	metrics.AuthEvents.WithLabelValues("register", "success").Inc()
	log.Printf("👤 User %d registered", u.ID)
	return result, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrValidation
	}

	u, err := s.users.FindByIDOrEmail(ctx, user.Lookup{Email: email})
	if errors.Is(err, user.ErrUserNotFound) {
		// spend the same hashing work as a real mismatch
		s.hasher.Verify(password, s.placeholderHash())
		metrics.AuthEvents.WithLabelValues("login", "failure").Inc()
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(password, u.Password) {
		metrics.AuthEvents.WithLabelValues("login", "failure").Inc()
		return nil, ErrUnauthorized
	}

	result, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	metrics.AuthEvents.WithLabelValues("login", "success").Inc()
	return result, nil
}

// Logout returns the cleared session state. Tokens are not revoked
// server-side; the caller drops the cookies.
func (s *Service) Logout() Session {
	metrics.AuthEvents.WithLabelValues("logout", "success").Inc()
	return Session{}
}

// Refresh mints a new access token. The refresh token is not rotated.
func (s *Service) Refresh(refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrUnauthorized
	}
	access, err := s.signer.Refresh(refreshToken)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("refresh", "failure").Inc()
		if errors.Is(err, token.ErrTokenInvalid) || errors.Is(err, token.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return "", err
	}
	metrics.AuthEvents.WithLabelValues("refresh", "success").Inc()
	return access, nil
}

// Authenticate verifies an access token and returns its session.
func (s *Service) Authenticate(accessToken string) (Session, error) {
	claim, err := s.signer.VerifyAccess(accessToken)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return Session{UserID: claim.UserID, Email: claim.Email}, nil
}

// RequestPasswordReset succeeds the same way whether or not email belongs to
// an account. For a known account every earlier token is superseded before
// the new link is mailed.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrValidation
	}

	u, err := s.users.FindByIDOrEmail(ctx, user.Lookup{Email: email})
	if errors.Is(err, user.ErrUserNotFound) {
		metrics.AuthEvents.WithLabelValues("reset_request", "unknown").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	tok, err := s.resets.Reissue(ctx, u.Email, s.opts.ResetTTL)
	if err != nil {
		return err
	}

	s.send(ctx, mail.ResetMessage(u.Email, mail.ResetLink(s.opts.Domain, u.Email, tok)))
	metrics.AuthEvents.WithLabelValues("reset_request", "success").Inc()
	return nil
}

// ValidatePasswordReset only reads; it does not burn the token.
func (s *Service) ValidatePasswordReset(ctx context.Context, email, tok string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || tok == "" {
		return false, reset.ErrResetTokenNotFound
	}
	return s.resets.Validate(ctx, email, tok)
}

func (s *Service) PerformPasswordReset(ctx context.Context, email, tok, newPassword string) error {
	email = normalizeEmail(email)
	if email == "" || tok == "" || newPassword == "" {
		return ErrValidation
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.resets.Consume(ctx, email, tok, hash); err != nil {
		if errors.Is(err, reset.ErrResetTokenNotFound) {
			metrics.AuthEvents.WithLabelValues("reset_perform", "failure").Inc()
		}
		return err
	}
	metrics.AuthEvents.WithLabelValues("reset_perform", "success").Inc()
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	return hash, nil
}

func (s *Service) issue(u *models.User) (*Result, error) {
	pair, err := s.signer.Issue(token.UserClaim{UserID: u.ID, Email: u.Email})
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").With("user_id", u.ID).Wrap(err)
	}
	return &Result{
		User:    u,
		Tokens:  pair,
		Session: Session{UserID: u.ID, Email: u.Email},
	}, nil
}

// send delivers best-effort: a mail failure never fails the owning operation.
func (s *Service) send(ctx context.Context, msg mail.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Printf("⚠️  Failed to send %q email to %s: %v", msg.Subject, msg.To, err)
	}
}

func (s *Service) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("placeholder-password")
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
