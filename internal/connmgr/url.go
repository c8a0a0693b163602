package connmgr

import (
	"net/url"
	"strings"
)

// BuildURL applies spec's combined-stream URL construction rules to base
// (scheme + host[:port]; any existing path is discarded) and the current
// stream set, preserving stream order.
func BuildURL(base string, streams []string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", err
	}
	u.Path = ""
	u.RawQuery = ""
	root := strings.TrimSuffix(u.String(), "/")

	switch len(streams) {
	case 0:
		return root + "/ws", nil
	case 1:
		return root + "/ws/" + streams[0], nil
	default:
		return root + "/stream?streams=" + strings.Join(streams, "/"), nil
	}
}
