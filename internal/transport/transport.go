// Package transport builds the HTTP clients used to reach storefronts.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"
)

// =============================================================================
// STOREFRONT CLIENTS
// =============================================================================
//
// Storefronts sit behind CDNs that fingerprint TLS handshakes (JA3) and throttle
// clients that do not look like a browser. Go's default handshake is easy to
// spot, so the chrome transport presents Chrome's ClientHello via uTLS and lets
// ALPN pick h2 or http/1.1.
//
// Carts are keyed by the "cart" cookie. A session client keeps cookies in a
// jar scoped by public suffix, so the cart set by the first /cart.js response
// is sent on every later call (CLI mode). The server instead binds the cart
// token per request and uses a jar-less client.
// =============================================================================

// Options configures NewClient and NewSessionClient.
type Options struct {
	Timeout     time.Duration // Whole-request timeout; 30s when zero
	Fingerprint bool          // Present Chrome's TLS fingerprint
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 30 * time.Second
	}
	return o.Timeout
}

// NewClient returns a cookie-less client for storefront requests.
func NewClient(opts Options) *http.Client {
	client := &http.Client{Timeout: opts.timeout()}
	if opts.Fingerprint {
		client.Transport = NewChromeTransport(opts.timeout())
	}
	return client
}

// NewSessionClient returns a client that persists storefront cookies between calls.
func NewSessionClient(opts Options) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	client := NewClient(opts)
	client.Jar = jar
	return client, nil
}

// errNoH2 reports that the server did not pick h2 during ALPN. Nothing has
// been sent on the connection yet.
var errNoH2 = errors.New("server did not negotiate h2")

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint. HTTP/2 is tried first and HTTP/1.1 is the fallback.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	return &chromeTransport{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				conn, err := dialChromeTLS(ctx, dialer, network, addr)
				if err != nil {
					return nil, err
				}
				if conn.ConnectionState().NegotiatedProtocol != http2.NextProtoTLS {
					conn.Close()
					return nil, errNoH2
				}
				return conn, nil
			},
		},
		h1: &http.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialChromeTLS(ctx, dialer, network, addr)
			},
			ForceAttemptHTTP2: false,
		},
		plain: http.DefaultTransport,
	}
}

// chromeTransport routes https through the fingerprinted h2/h1 pair and
// plain http (local development storefronts) through the default transport.
type chromeTransport struct {
	h2    http.RoundTripper
	h1    http.RoundTripper
	plain http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.plain.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	// Cart mutations are not idempotent. Once h2 may have sent one, a
	// second attempt over h1 could apply it twice.
	if !errors.Is(err, errNoH2) && !isIdempotent(req.Method) {
		return nil, err
	}
	retry, rewindErr := rewind(req)
	if rewindErr != nil {
		return nil, err
	}
	return t.h1.RoundTrip(retry)
}

func isIdempotent(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// rewind returns req with a fresh body for a second attempt.
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry := req.Clone(req.Context())
	retry.Body = body
	return retry, nil
}

// dialChromeTLS establishes a TLS connection with Chrome's fingerprint.
func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (*utls.UConn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
