// Package upstream contains the HTTP clients for the two remote services
// this subsystem consumes: the identity service (identifier validation,
// token issuance, role permission lookup) and the one-time-code service
// (code dispatch and verification).
//
// Every call carries the shared application credential header and a
// bounded timeout; a timeout is a failure of that call, never a pending
// state. Neither service is implemented here — both are external
// collaborators behind a private network boundary.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CredentialHeader is the header carrying the shared application-level
// credential on every upstream call.
const CredentialHeader = "X-App-Credential"

const defaultTimeout = 10 * time.Second

var (
	// ErrUnavailable covers transport failures, timeouts, and 5xx
	// responses from either upstream service.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrIdentifierNotFound is returned when the identity service does
	// not know the identifier, or knows it as inactive.
	ErrIdentifierNotFound = errors.New("identifier not found or inactive")

	// ErrCodeRejected is returned when the OTC service rejects a
	// verification attempt (wrong code or expired verification session).
	ErrCodeRejected = errors.New("verification code rejected")

	// ErrDeliveryFailed is returned when the OTC service could not
	// deliver a code to the requested channel.
	ErrDeliveryFailed = errors.New("code delivery failed")
)

// Config holds the connection settings for both upstream services.
type Config struct {
	// IdentityBaseURL is the base URL of the identity service.
	IdentityBaseURL string

	// OTCBaseURL is the base URL of the one-time-code service. When
	// empty, the identity base URL is used for OTC operations as well.
	OTCBaseURL string

	// Credential is the static application credential sent on every call.
	Credential string

	// Timeout bounds each individual remote call. Zero means the
	// package default (10s).
	Timeout time.Duration
}

// Client talks to the identity and OTC services. A Client is safe for
// concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New validates cfg and returns a ready Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.IdentityBaseURL) == "" {
		return nil, errors.New("upstream: identity base URL required")
	}
	if cfg.OTCBaseURL == "" {
		cfg.OTCBaseURL = cfg.IdentityBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.IdentityBaseURL = strings.TrimSuffix(cfg.IdentityBaseURL, "/")
	cfg.OTCBaseURL = strings.TrimSuffix(cfg.OTCBaseURL, "/")

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// postJSON sends body to url and decodes a 2xx response into out.
// Non-2xx statuses are returned as *statusError so callers can map them
// onto the package sentinels.
func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CredentialHeader, c.cfg.Credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return &statusError{code: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set(CredentialHeader, c.cfg.Credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return &statusError{code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.code)
}

// mapStatus translates a non-2xx response into a sentinel: notFound for
// 404/410, rejected for the remaining 4xx, ErrUnavailable otherwise.
func mapStatus(err error, notFound, rejected error) error {
	var se *statusError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.code == http.StatusNotFound || se.code == http.StatusGone:
		return notFound
	case se.code >= 400 && se.code < 500:
		return rejected
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, se)
	}
}
