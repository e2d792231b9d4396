package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/ports"
)

// HTTPProber implements ports.ProbeExecutor with HTTP GET probes. A probe
// succeeds when the endpoint answers with a 2xx status within the timeout.
type HTTPProber struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPProber creates a new HTTP prober
func NewHTTPProber(timeout time.Duration, logger *zap.Logger) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Probe executes one HTTP health check (ports.ProbeExecutor interface)
func (p *HTTPProber) Probe(ctx context.Context, handle string, spec ports.ProbeSpec) (ports.ProbeOutcome, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.Endpoint, nil)
	if err != nil {
		return ports.ProbeOutcome{}, fmt.Errorf("invalid probe endpoint: %w", err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return ports.ProbeOutcome{}, err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	return ports.ProbeOutcome{
		OK:      ok,
		Latency: latency,
		Output:  resp.Status,
	}, nil
}
