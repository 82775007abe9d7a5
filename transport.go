package tus

import (
	"net/http"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
)

// HTTPClient executes a single HTTP request and returns the response.
// *http.Client satisfies it. Connection pooling, TLS and timeouts are the
// transport's concern; the client never retries a request itself.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewRetryingClient returns an HTTP client that retries transient transport
// failures with exponential backoff. Plugging it into NewClient is an
// explicit caller decision: the protocol layer stays retry-free either way.
func NewRetryingClient(logger log.Logger) *http.Client {
	return retryhttp.NewClient(logger).StandardClient()
}
