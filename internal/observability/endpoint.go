package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/anomalystream/internal/logger"
	"github.com/tphakala/anomalystream/internal/observability/metrics"
)

// Endpoint serves /metrics and /healthz while a run is in progress.
type Endpoint struct {
	echo          *echo.Echo
	listenAddress string
	metrics       *Metrics
	startTime     time.Time
	listener      net.Listener
	wg            sync.WaitGroup
	log           logger.Logger
}

// NewEndpoint creates an endpoint for listenAddress. Nothing is bound until Start.
func NewEndpoint(listenAddress string, m *Metrics) *Endpoint {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	ep := &Endpoint{
		echo:          e,
		listenAddress: listenAddress,
		metrics:       m,
		log:           GetLogger(),
	}
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.GET("/healthz", ep.healthCheck)
	return ep
}

// Start binds the listen address and serves in the background. Bind
// failures are returned directly.
func (ep *Endpoint) Start() error {
	ln, err := net.Listen("tcp", ep.listenAddress)
	if err != nil {
		return fmt.Errorf("metrics endpoint: %w", err)
	}
	ep.listener = ln
	ep.echo.Listener = ln
	ep.startTime = time.Now()

	ep.wg.Go(func() {
		ep.log.Info("metrics endpoint starting", logger.String("address", ln.Addr().String()))
		if err := ep.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ep.log.Error("metrics endpoint error", logger.Error(err))
		}
	})
	return nil
}

// Addr returns the bound address, or nil before Start.
func (ep *Endpoint) Addr() net.Addr {
	if ep.listener == nil {
		return nil
	}
	return ep.listener.Addr()
}

// Shutdown stops the server gracefully and waits for it to exit.
func (ep *Endpoint) Shutdown(ctx context.Context) error {
	if ep.listener == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, metrics.ShutdownTimeout)
	defer cancel()

	ep.log.Info("stopping metrics endpoint")
	err := ep.echo.Shutdown(ctx)
	ep.wg.Wait()
	if err != nil {
		return fmt.Errorf("metrics endpoint shutdown: %w", err)
	}
	return nil
}

func (ep *Endpoint) healthCheck(c echo.Context) error {
	uptime := time.Since(ep.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}
