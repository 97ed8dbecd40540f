package middleware

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/equipment-rental/internal/config"
)

// bodyCapture tees the response body while forwarding it to the client.
type bodyCapture struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	limit  int
}

func (w *bodyCapture) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	if w.buf.Len()+len(b) <= w.limit {
		w.buf.Write(b)
	} else {
		// Over the cap: poison the capture so the entry is not stored.
		w.buf.Reset()
		w.limit = 0
	}
	return w.ResponseWriter.Write(b)
}

// ResponseCache caches successful GET JSON responses in Redis, keyed by
// route and query string.  Intended for the read-heavy search endpoints
// (nearby, heatmap) where short staleness is acceptable.  Redis failures
// fall through to the handler.
func ResponseCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			key := cacheKey(cfg.Prefix, c)
			ctx := c.Request().Context()

			if cached, err := rdb.Get(ctx, key).Bytes(); err == nil {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(http.StatusOK, cached)
			}

			cw := &bodyCapture{ResponseWriter: c.Response().Writer, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw

			if err := next(c); err != nil {
				return err
			}
			if cw.status == 0 || cw.status == http.StatusOK {
				if body := cw.buf.Bytes(); len(body) > 0 {
					_ = rdb.Set(ctx, key, body, cfg.TTL).Err()
				}
			}
			return nil
		}
	}
}

func cacheKey(prefix string, c echo.Context) string {
	sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
	return fmt.Sprintf("%s:%x", prefix, sum)
}
