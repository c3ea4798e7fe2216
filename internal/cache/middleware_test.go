package cache

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{ Store }

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}

func newTestApp(store Store, calls *atomic.Int32) *fiber.App {
	app := fiber.New()
	identity := func(c *fiber.Ctx) string { return c.Get("X-User") }
	mw := New(Config{
		Store:    store,
		Identity: identity,
		Tags: func(c *fiber.Ctx) []string {
			return []string{"user:" + c.Params("id")}
		},
	})

	app.Get("/users/:id", mw, func(c *fiber.Ctx) error {
		n := calls.Add(1)
		if c.Params("id") == "404" {
			return c.Status(fiber.StatusNotFound).SendString("missing")
		}
		return c.JSON(fiber.Map{"id": c.Params("id"), "render": n})
	})
	app.Put("/users/:id", mw, func(c *fiber.Ctx) error {
		id, _ := strconv.Atoi(c.Params("id"))
		return Invalidator{Store: store}.InvalidateUser(c.UserContext(), uint(id))
	})
	return app
}

func get(t *testing.T, app *fiber.App, path, user string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header.Get("X-Cache"), string(body)
}

func TestMiddlewareReadThrough(t *testing.T) {
	var calls atomic.Int32
	store := NewMemoryStore(0)
	app := newTestApp(store, &calls)

	code, state, first := get(t, app, "/users/1", "1")
	assert.Equal(t, 200, code)
	assert.Equal(t, "MISS", state)

	code, state, second := get(t, app, "/users/1", "1")
	assert.Equal(t, 200, code)
	assert.Equal(t, "HIT", state)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	t.Run("Keys are scoped per user", func(t *testing.T) {
		_, state, _ := get(t, app, "/users/1", "2")
		assert.Equal(t, "MISS", state)
		_, state, _ = get(t, app, "/users/1", "")
		assert.Equal(t, "MISS", state)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("Query string does not split the key", func(t *testing.T) {
		_, state, _ := get(t, app, "/users/9?x=1", "1")
		assert.Equal(t, "MISS", state)
		_, state, _ = get(t, app, "/users/9?x=2", "1")
		assert.Equal(t, "HIT", state)
		_, ok, err := store.Get(context.Background(), Key("/users/9", "1"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Non-200 responses are not stored", func(t *testing.T) {
		code, _, _ := get(t, app, "/users/404", "1")
		assert.Equal(t, 404, code)
		_, state, _ := get(t, app, "/users/404", "1")
		assert.Equal(t, "MISS", state)
	})

	t.Run("Mutation invalidates every rendering of the user", func(t *testing.T) {
		req := httptest.NewRequest("PUT", "/users/1", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		before := calls.Load()
		_, state, _ := get(t, app, "/users/1", "1")
		assert.Equal(t, "MISS", state)
		_, state, _ = get(t, app, "/users/1", "2")
		assert.Equal(t, "MISS", state)
		assert.Equal(t, before+2, calls.Load())
	})
}

func TestMiddlewareStoreFailurePropagates(t *testing.T) {
	var calls atomic.Int32
	app := newTestApp(failingStore{}, &calls)

	code, _, _ := get(t, app, "/users/1", "1")
	assert.Equal(t, 500, code)
	assert.Zero(t, calls.Load())
}

// A read that loaded the record before a concurrent update must not leave
// its body in the cache once the update has invalidated the user.
func TestMiddlewareDropsBodyRenderedBeforeInvalidation(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore(0) },
		"redis": func(t *testing.T) Store {
			_, rdb := newTestRedis(t)
			return NewRedisStore(rdb, "test", 0)
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			var record atomic.Value
			record.Store("old")

			var blockNext atomic.Bool
			blockNext.Store(true)
			loaded := make(chan struct{})
			release := make(chan struct{})

			app := fiber.New()
			app.Get("/users/:id", New(Config{
				Store: store,
				Tags: func(c *fiber.Ctx) []string {
					return []string{"user:" + c.Params("id")}
				},
			}), func(c *fiber.Ctx) error {
				body := record.Load().(string)
				if blockNext.CompareAndSwap(true, false) {
					close(loaded)
					<-release
				}
				return c.SendString(body)
			})

			first := make(chan string, 1)
			go func() {
				resp, err := app.Test(httptest.NewRequest("GET", "/users/1", nil), -1)
				if err != nil {
					first <- err.Error()
					return
				}
				defer resp.Body.Close()
				body, _ := io.ReadAll(resp.Body)
				first <- string(body)
			}()

			<-loaded
			record.Store("new")
			require.NoError(t, Invalidator{Store: store}.InvalidateUser(context.Background(), 1))
			close(release)
			assert.Equal(t, "old", <-first)

			_, ok, err := store.Get(context.Background(), Key("/users/1", ""))
			require.NoError(t, err)
			assert.False(t, ok, "body read before the update was cached")

			code, state, body := get(t, app, "/users/1", "")
			assert.Equal(t, 200, code)
			assert.Equal(t, "MISS", state)
			assert.Equal(t, "new", body)

			_, state, body = get(t, app, "/users/1", "")
			assert.Equal(t, "HIT", state)
			assert.Equal(t, "new", body)
		})
	}
}
