// Package token issues and verifies the signed access/refresh credential pair.
//
// Tokens are self-contained HS256 JWTs; nothing is persisted. A refresh token
// stays valid for its full lifetime because there is no revocation list:
// rotating both secrets is the only way to invalidate outstanding sessions.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// UserClaim is the identity carried by both tokens.
type UserClaim struct {
	UserID uint
	Email  string
}

type Pair struct {
	AccessToken  string
	RefreshToken string
}

type Claims struct {
	Email string `json:"email,omitempty"`
	Kind  string `json:"typ"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Now defaults to time.Now.
	Now func() time.Time
}

type Signer struct {
	cfg Config
}

func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Signer{cfg: cfg}, nil
}

func (s *Signer) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *Signer) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// Issue signs a fresh access/refresh pair for the claim.
func (s *Signer) Issue(claim UserClaim) (Pair, error) {
	access, err := s.sign(claim, kindAccess, s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.sign(claim, kindRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Signer) VerifyAccess(tokenStr string) (UserClaim, error) {
	return s.verify(tokenStr, kindAccess, s.cfg.AccessSecret)
}

func (s *Signer) VerifyRefresh(tokenStr string) (UserClaim, error) {
	return s.verify(tokenStr, kindRefresh, s.cfg.RefreshSecret)
}

// Refresh mints a new access token from a valid refresh token. The refresh
// token itself is not rotated.
func (s *Signer) Refresh(refreshToken string) (string, error) {
	claim, err := s.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	return s.sign(claim, kindAccess, s.cfg.AccessSecret, s.cfg.AccessTTL)
}

func (s *Signer) sign(claim UserClaim, kind string, key []byte, ttl time.Duration) (string, error) {
	now := s.cfg.Now()
	claims := Claims{
		Email: claim.Email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Subject:   strconv.FormatUint(uint64(claim.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (s *Signer) verify(tokenStr, kind string, key []byte) (UserClaim, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.cfg.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return UserClaim{}, ErrTokenExpired
		}
		return UserClaim{}, ErrTokenInvalid
	}
	if !token.Valid || claims.Kind != kind {
		return UserClaim{}, ErrTokenInvalid
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return UserClaim{}, ErrTokenInvalid
	}

	return UserClaim{UserID: uint(id), Email: claims.Email}, nil
}
