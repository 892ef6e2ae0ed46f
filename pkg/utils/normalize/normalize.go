// Package normalize canonicalizes relay URLs so that map keys and service
// routing treat equivalent spellings of an address identically.
package normalize

import (
	"net/url"
	"strings"
)

// URL normalizes a relay address: adds the wss:// scheme when missing
// (ws:// for localhost), lowercases the whole address including the path,
// and strips the trailing slash from the path. Returns nil for unparseable
// input.
func URL(u string) (b []byte) {
	u = strings.TrimSpace(u)
	if u == "" {
		return
	}
	u = strings.ToLower(u)
	if strings.HasPrefix(u, "http://") {
		u = "ws://" + u[7:]
	} else if strings.HasPrefix(u, "https://") {
		u = "wss://" + u[8:]
	} else if !strings.HasPrefix(u, "ws://") &&
		!strings.HasPrefix(u, "wss://") {
		if strings.HasPrefix(u, "localhost") ||
			strings.HasPrefix(u, "127.0.0.1") {
			u = "ws://" + u
		} else {
			u = "wss://" + u
		}
	}
	p, err := url.Parse(u)
	if err != nil {
		return
	}
	if p.Path == "/" {
		p.Path = ""
	}
	p.Path = strings.TrimSuffix(p.Path, "/")
	return []byte(p.String())
}
