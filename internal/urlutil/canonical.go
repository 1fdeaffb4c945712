package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Canonicalize parses a raw URL string and returns its canonical form.
// The canonicalization rules are:
// 1. Scheme and host are lowercased.
// 2. Default ports (80 for http, 443 for https) are stripped.
// 3. The URL fragment (#...) is removed.
// 4. A trailing slash is removed, unless it's the root path.
// Returns an error if the URL is not a valid absolute HTTP/HTTPS URL.
func Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("url must be an absolute http or https url")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Host includes the port; Hostname() does not.
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Hostname()
	}

	u.Fragment = ""

	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// MatchKey reduces a captured URL to the form used for similarity scoring.
// Captured URLs are often not absolute (archived ones carry replay prefixes),
// so it works on the raw text: canonical form when the URL parses as absolute,
// otherwise lowercased with the fragment and a trailing slash removed.
func MatchKey(rawURL string) string {
	if c, err := Canonicalize(rawURL); err == nil {
		return strings.ToLower(c)
	}
	key := strings.ToLower(strings.TrimSpace(rawURL))
	if i := strings.IndexByte(key, '#'); i >= 0 {
		key = key[:i]
	}
	if len(key) > 1 {
		key = strings.TrimSuffix(key, "/")
	}
	return key
}

// Host returns the lowercased host of rawURL, or "" when it has none.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
