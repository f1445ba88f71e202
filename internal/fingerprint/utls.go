// Package fingerprint builds HTTP transports whose TLS ClientHello mimics a
// real browser, so that crawled sites answer the crawler the way they answer
// visitors.
package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// Options tweak the transport. The zero value is what production uses.
type Options struct {
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool
}

// ParseProfile maps a configuration string onto a Profile. An empty string
// selects ProfileGo.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProfileGo, nil
	}
	if p == ProfileGo {
		return p, nil
	}
	if _, err := helloID(p); err != nil {
		return "", err
	}
	return p, nil
}

func helloID(p Profile) (utls.ClientHelloID, error) {
	switch p {
	case ProfileChrome:
		return utls.HelloChrome_Auto, nil
	case ProfileFirefox:
		return utls.HelloFirefox_Auto, nil
	case ProfileSafari:
		return utls.HelloIOS_Auto, nil
	case ProfileRandom:
		return utls.HelloRandomizedALPN, nil
	default:
		return utls.ClientHelloID{}, fmt.Errorf("fingerprint: unknown profile %q", p)
	}
}

// Transport returns an http.RoundTripper configured with the specified
// TLS fingerprint profile. If the profile is "go", it returns a standard
// http.Transport. Otherwise the TLS handshake is performed by utls.UClient.
// Proxy settings come from the environment.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	id, err := helloID(p)
	if err != nil {
		return nil, err
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn := utls.UClient(tcpConn, &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}, id)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
		}

		return uConn, nil
	}

	return transport, nil
}
