// Package guard gates navigation to protected views and guarantees that
// login redirects can never recurse: the redirect chain depth is bounded
// at 1.
package guard

import (
	"net/url"
	"strings"
)

const loginPath = "/login"

// publicPaths is the fixed allow-list of routes reachable without a session.
// "/" matches exactly; the rest match by prefix.
var publicPaths = []string{
	"/",
	"/square",
	"/login",
	"/register",
	"/forgot-password",
	"/change-password",
	"/personalization",
	"/about",
	"/privacy",
}

// IsPublicPath classifies a path. Classification is a pure function of the
// path string alone.
func IsPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
		if p != "/" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Decision is the outcome of one redirect-safety check, computed fresh per
// navigation attempt and never persisted.
type Decision struct {
	Blocked  bool
	LoginURL string
}

// Decide reports whether issuing a login redirect from the current location
// would recurse. A blocked decision means: stay put, do not navigate.
//
// The rules apply in order, first match wins:
//  1. already on the login page;
//  2. an existing redirect parameter whose decoded value references the
//     login page directly, nested, or percent-encoded (single or double);
//  3. the redirect parameter cannot be decoded (fail closed).
func Decide(currentPath, currentSearch string) Decision {
	if strings.HasPrefix(currentPath, loginPath) {
		return Decision{Blocked: true}
	}

	raw, present := redirectParam(currentSearch)
	if present {
		decoded, err := url.QueryUnescape(raw)
		if err != nil {
			return Decision{Blocked: true}
		}
		if suspiciousRedirect(decoded) {
			return Decision{Blocked: true}
		}
		// A redirect token already exists; use the bare login path so
		// repeated redirects cannot compound parameters.
		return Decision{LoginURL: loginPath}
	}

	// Encode only the bare path, never the current query string.
	return Decision{LoginURL: loginPath + "?redirect=" + url.QueryEscape(currentPath)}
}

// redirectParam extracts the raw (still-encoded) value of the first redirect
// parameter in the search string.
func redirectParam(search string) (string, bool) {
	search = strings.TrimPrefix(search, "?")
	for _, pair := range strings.Split(search, "&") {
		if pair == "redirect" {
			return "", true
		}
		if v, ok := strings.CutPrefix(pair, "redirect="); ok {
			return v, true
		}
	}
	return "", false
}

// suspiciousRedirect reports whether a decoded redirect value would recurse
// into the login page.
func suspiciousRedirect(decoded string) bool {
	lower := strings.ToLower(decoded)
	return strings.Contains(decoded, loginPath) ||
		strings.Contains(decoded, "redirect=") ||
		strings.Contains(decoded, "?") ||
		strings.Contains(lower, "%2flogin") ||
		strings.Contains(lower, "%252flogin")
}
