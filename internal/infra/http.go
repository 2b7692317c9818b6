package infra

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// UserAgent is sent with every outbound request.
const UserAgent = "fredcycle/1.0"

// secretParams are query parameters redacted from URLs in errors and logs.
var secretParams = []string{"api_key", "apikey", "token"}

// HTTPError reports a non-2xx response.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	msg := string(e.Body)
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, msg)
}

// StatusCode extracts the HTTP status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// NewHTTPClient returns a JSON client with the given timeout. Retries stay
// disabled; callers decide whether to try again.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", UserAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
}

// GetJSON performs a GET with query parameters and decodes a 2xx JSON body
// into dest. Non-2xx responses return *HTTPError. Secret query parameters
// never appear in returned errors.
func GetJSON(ctx context.Context, c *resty.Client, rawURL string, query map[string]string, dest any) error {
	resp, err := c.R().
		SetContext(ctx).
		SetQueryParams(query).
		ForceContentType("application/json").
		SetResult(dest).
		Get(rawURL)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = RedactURL(ue.URL)
		}
		return fmt.Errorf("GET %s: %w", RedactURL(rawURL), err)
	}
	if !resp.IsSuccess() {
		return &HTTPError{
			URL:        RedactURL(rawURL),
			StatusCode: resp.StatusCode(),
			Body:       resp.Body(),
		}
	}
	return nil
}

// RedactURL masks secret query parameters. Unparsable input is returned as "<invalid url>".
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	changed := false
	for _, k := range secretParams {
		if q.Has(k) {
			q.Set(k, "***")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
