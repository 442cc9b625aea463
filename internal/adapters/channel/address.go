package channel

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dkeye/Rendezvous/internal/domain"
)

// SignalPath is where the rendezvous serves peer connections.
const SignalPath = "/video/connections"

// Address derives the signaling URL from a page location: http becomes ws,
// https becomes wss, the host is kept, the path is fixed and the query
// string is forwarded as is.
func Address(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location: %w", err)
	}
	var scheme string
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		scheme = "ws"
	case "https", "wss":
		scheme = "wss"
	default:
		return "", fmt.Errorf("location %q: unsupported scheme %q", location, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("location %q: missing host", location)
	}
	out := url.URL{Scheme: scheme, Host: u.Host, Path: SignalPath, RawQuery: u.RawQuery}
	return out.String(), nil
}

// AddressFor is Address with userID and peerID appended from pair unless
// the location already carries them. The existing query is kept byte for byte.
func AddressFor(location string, pair domain.Pair) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location: %w", err)
	}
	q := u.Query()
	raw := u.RawQuery
	add := func(key, value string) {
		if q.Get(key) != "" {
			return
		}
		if raw != "" {
			raw += "&"
		}
		raw += url.QueryEscape(key) + "=" + url.QueryEscape(value)
	}
	add("userID", string(pair.Self))
	add("peerID", string(pair.Remote))
	u.RawQuery = raw
	return Address(u.String())
}
