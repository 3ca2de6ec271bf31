// Package reniec is a client for the RENIEC DNI lookup API.
package reniec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/sanisidro/sanisidro-api/internal/domain/identity"
)

// Config configures the lookup client. Token has no default and is read
// from the environment or a config file.
type Config struct {
	BaseURL string        `default:"https://api.decolecta.com/v1/reniec/dni" yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `default:"5s" yaml:"timeout"`
	Retries uint          `default:"2" yaml:"retries"`
}

// Enabled reports whether a token is configured.
func (c Config) Enabled() bool { return c.Token != "" }

const maxBodySize = 64 << 10

// StatusError is returned for an unexpected upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reniec: unexpected status %d", e.Code)
}

var _ identity.Lookup = (*Client)(nil)

// Client looks up DNI holders over HTTP.
type Client struct {
	http       *http.Client
	baseURL    string
	token      string
	retries    uint
	newBackOff func() backoff.BackOff
}

// NewClient returns a Client whose requests are traced with tp.
func NewClient(cfg Config, tp trace.TracerProvider) *Client {
	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tp)),
		},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		retries: cfg.Retries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			return b
		},
	}
}

// LookupDNI fetches the holder of dni. Server errors, throttling and
// transport failures are retried; a 404 yields identity.ErrNotFound.
func (c *Client) LookupDNI(ctx context.Context, dni string) (*identity.Person, error) {
	if err := identity.ValidateDNI(dni); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.RawQuery = url.Values{"numero": {dni}}.Encode()
	target := u.String()

	p, err := backoff.Retry(ctx, func() (*identity.Person, error) {
		return c.do(ctx, target)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.retries+1),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup dni %s", dni)
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, target string) (*identity.Person, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "create request"))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(identity.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &StatusError{Code: resp.StatusCode}
	default:
		return nil, backoff.Permanent(&StatusError{Code: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	p, err := decodePerson(body)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "decode response"))
	}
	return p, nil
}

func decodePerson(body []byte) (*identity.Person, error) {
	var p identity.Person
	d := jx.DecodeBytes(body)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var dst *string
		switch string(key) {
		case "first_name":
			dst = &p.FirstName
		case "first_last_name":
			dst = &p.FirstLastName
		case "second_last_name":
			dst = &p.SecondLastName
		case "document_number":
			dst = &p.DocumentNumber
		case "full_name":
			dst = &p.FullName
		default:
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		*dst = v
		return nil
	}); err != nil {
		return nil, err
	}

	if p.FullName == "" {
		p.FullName = p.ComposeFullName()
	}
	return &p, nil
}
