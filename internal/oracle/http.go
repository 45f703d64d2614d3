package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

// defaultTimeout bounds a single feed request. Resolution treats the read as
// one atomic external call; a slow feed fails the resolve rather than
// blocking it indefinitely.
const defaultTimeout = 10 * time.Second

// FeedClient pulls readings from an HTTP price feed exposing
// GET {base}/v1/price/{ref} with a JSON body {"ref": "...", "reading": N}.
type FeedClient struct {
	baseURL string
	http    *http.Client
}

// feedResponse is the feed's wire format. Reading is the signed integer the
// ledger compares against the market threshold.
type feedResponse struct {
	Ref     string `json:"ref"`
	Reading int64  `json:"reading"`
}

// NewFeedClient creates a client for the feed at baseURL. A nil httpClient
// uses a default with a request timeout.
func NewFeedClient(baseURL string, httpClient *http.Client) *FeedClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &FeedClient{baseURL: baseURL, http: httpClient}
}

// Read fetches the current reading for the reference.
func (c *FeedClient) Read(ctx context.Context, ref string) (int64, error) {
	u := fmt.Sprintf("%s/v1/price/%s", c.baseURL, url.PathEscape(ref))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("oracle: build request for %q: %w", ref, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle: fetch %q: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("oracle: fetch %q: status %d: %s", ref, resp.StatusCode, body)
	}

	var out feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("oracle: decode reading for %q: %w", ref, err)
	}
	return out.Reading, nil
}

var _ domain.PriceOracle = (*FeedClient)(nil)
