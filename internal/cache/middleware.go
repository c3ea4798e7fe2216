package cache

import (
	"context"
	"log"

	"github.com/Kyz7/authserver/internal/metrics"
	"github.com/gofiber/fiber/v2"
)

type Config struct {
	Store Store
	// Identity returns the authenticated user id for the request, or "".
	Identity func(c *fiber.Ctx) string
	// Tags lists the invalidation tags for the response being stored.
	Tags func(c *fiber.Ctx) []string
}

// New returns a read-through handler. It must be mounted after authentication
// and directly before the read handler. Only GET requests answered with 200
// are stored.
//
// Entries are keyed by c.Path(): the query string is not part of the key, so
// routes behind this handler must not vary their body by query. Tags are
// resolved and their generations recorded before the read handler runs.
func New(cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet {
			return c.Next()
		}

		userID := ""
		if cfg.Identity != nil {
			userID = cfg.Identity(c)
		}
		key := Key(c.Path(), userID)
		ctx := c.UserContext()

		body, ok, err := cfg.Store.Get(ctx, key)
		if err != nil {
			metrics.CacheLookups.WithLabelValues("error").Inc()
			return err
		}
		if ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			c.Set("X-Cache", "HIT")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
			return c.Send(body)
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()

		var tags []string
		if cfg.Tags != nil {
			tags = cfg.Tags(c)
		}
		snap, err := cfg.Store.Snapshot(ctx, tags)
		if err != nil {
			metrics.CacheLookups.WithLabelValues("error").Inc()
			return err
		}

		if err := c.Next(); err != nil {
			return err
		}

		c.Set("X-Cache", "MISS")
		if c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}

		rendered := append([]byte(nil), c.Response().Body()...)
		stored, err := cfg.Store.Set(ctx, key, rendered, snap)
		switch {
		case err != nil:
			// the response is already rendered; a failed write only costs a miss
			log.Printf("⚠️  Cache store failed for %s: %v", key, err)
		case !stored:
			metrics.CacheStaleWrites.Inc()
		}
		return nil
	}
}

// Invalidator drops cached user renderings after a mutation.
type Invalidator struct {
	Store Store
}

func (i Invalidator) InvalidateUser(ctx context.Context, id uint) error {
	n, err := i.Store.InvalidateTag(ctx, UserTag(id))
	if err != nil {
		return err
	}
	metrics.CacheInvalidations.Add(float64(n))
	return nil
}
