// Package ops exposes health and readiness endpoints for deployments that
// probe the bot process.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports dependency readiness, typically the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter builds the ops HTTP handler.
func NewRouter(pinger Pinger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "support-bot",
			"time":    time.Now().Unix(),
		})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return r
}

// Serve runs the ops listener until ctx is cancelled or the server fails.
func Serve(ctx context.Context, addr string, pinger Pinger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(pinger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
