package session

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildTarget returns the chat URL of roomID on endpoint:
//
//	ws://host[/prefix]/community/<roomID>/chat?nickname=<nickname>
//
// The room id is path-escaped as a single segment.
func BuildTarget(endpoint, roomID, nickname string) (string, error) {
	u, err := parseEndpoint(endpoint)
	if err != nil {
		return "", err
	}

	rawPath := strings.TrimSuffix(u.EscapedPath(), "/") +
		"/community/" + url.PathEscape(roomID) + "/chat"
	p, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint path %q: %w", endpoint, err)
	}
	u.Path, u.RawPath = p, rawPath

	q := u.Query()
	q.Set("nickname", nickname)
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be ws or wss", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}
	return u, nil
}
