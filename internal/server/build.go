package server

import (
	"fmt"

	"github.com/Kyz7/authserver/internal/auth"
	"github.com/Kyz7/authserver/internal/cache"
	"github.com/Kyz7/authserver/internal/config"
	"github.com/Kyz7/authserver/internal/mail"
	"github.com/Kyz7/authserver/internal/metrics"
	"github.com/Kyz7/authserver/internal/reset"
	"github.com/Kyz7/authserver/internal/token"
	"github.com/Kyz7/authserver/internal/user"
	"github.com/Kyz7/authserver/internal/utils"
	"gorm.io/gorm"
)

// Build wires the services for one process. The reset store is owned by the
// caller since the purge job shares it.
func Build(cfg *config.Config, db *gorm.DB, store cache.Store, resets *reset.Store, mailer mail.Sender) (Deps, error) {
	signer, err := token.NewSigner(token.Config{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        "authserver",
	})
	if err != nil {
		return Deps{}, fmt.Errorf("token signer: %w", err)
	}

	users := user.NewRepository(db)
	authSvc := auth.NewService(users, utils.NewBcryptHasher(cfg.BcryptCost), signer, resets, mailer, auth.Options{
		Domain:   cfg.Domain,
		ResetTTL: cfg.ResetTokenTTL,
	})

	return Deps{
		Auth:     authSvc,
		Users:    user.NewService(users, cache.Invalidator{Store: store}),
		Cache:    store,
		Registry: metrics.NewRegistry(),
		Cookies: auth.CookieConfig{
			Secure:     cfg.CookieSecure,
			AccessTTL:  signer.AccessTTL(),
			RefreshTTL: signer.RefreshTTL(),
		},
		CORSOrigins: cfg.CORSOrigins,
	}, nil
}
