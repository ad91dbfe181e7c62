package overview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const chunkSize = 32 * 1024

// HTTPTransport is a Transport over net/http. It reports StateOpened before
// sending, StateHeadersReceived once the response headers arrive, one
// StateLoading per body chunk and StateDone at the end.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport creates a transport with the given request timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

// Get implements Transport. A request that fails before completing is
// reported as done with status 0 and the error as status text.
func (t *HTTPTransport) Get(ctx context.Context, url string, onChange StateFunc) error {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	onChange(StateOpened, Response{})

	resp, err := client.Do(req)
	if err != nil {
		onChange(StateDone, Response{StatusText: err.Error()})
		return fmt.Errorf("failed to get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	status := Response{Status: resp.StatusCode, StatusText: reasonPhrase(resp)}
	onChange(StateHeadersReceived, status)

	var body strings.Builder
	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			body.Write(buf[:n])
			onChange(StateLoading, status)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			onChange(StateDone, Response{StatusText: readErr.Error()})
			return fmt.Errorf("failed to read %s: %w", url, readErr)
		}
	}

	status.Body = body.String()
	onChange(StateDone, status)
	return nil
}

// reasonPhrase returns the status text the server sent, falling back to the
// registered text when the status line carries none.
func reasonPhrase(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}
