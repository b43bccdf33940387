package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/auth"
)

// Profile is the display subset of a doctor/patient profile used to label
// conversations. The profile services own the full records.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Client fetches display profiles from the profile services over HTTP with
// exponential-backoff retries. Lookup failures must never block chat flows;
// callers fall back to a generic label.
type Client struct {
	baseURL string
	http    *http.Client
	retry   time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    32,
		IdleConnTimeout: 60 * time.Second,
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: tr, Timeout: timeout},
		retry:   timeout,
	}
}

func (c *Client) Lookup(ctx context.Context, id string, role auth.Role) (Profile, error) {
	var profile Profile
	url := fmt.Sprintf("%s/internal/profiles/%s/%s", c.baseURL, role, id)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()
		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("profile %s/%s not found", role, id))
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("profile service returned %d", resp.StatusCode)
		}
		var envelope struct {
			Success bool    `json:"success"`
			Data    Profile `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return backoff.Permanent(err)
		}
		if !envelope.Success {
			return backoff.Permanent(fmt.Errorf("profile lookup rejected for %s/%s", role, id))
		}
		profile = envelope.Data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.retry
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return Profile{}, err
	}
	return profile, nil
}
