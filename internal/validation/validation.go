package validation

import (
	"errors"
	"net"
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxKeywordLength bounds a seed keyword, in runes.
const MaxKeywordLength = 120

// NormalizeKeyword trims a keyword and collapses inner whitespace runs.
func NormalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(keyword), " ")
}

// ValidateKeyword checks a normalized keyword: non-empty, bounded, and free
// of control characters.
func ValidateKeyword(keyword string) bool {
	if keyword == "" || utf8.RuneCountInString(keyword) > MaxKeywordLength {
		return false
	}
	for _, r := range keyword {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
// This prevents javascript:, data:, vbscript:, and other dangerous URL schemes.
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}

var ErrInvalidTarget = errors.New("invalid target URL")

// NormalizeTargetURL accepts a site URL as typed by a user. A bare host such
// as "example.com/blog" gets an https scheme. Literal private addresses and
// localhost are rejected since they cannot rank in public search.
func NormalizeTargetURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return nil, ErrInvalidTarget
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if valid, _ := ValidateURL(raw); !valid {
		return nil, ErrInvalidTarget
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, ErrInvalidTarget
	}
	host := u.Hostname()
	if host == "" || strings.EqualFold(host, "localhost") || IsPrivateIP(net.ParseIP(host)) {
		return nil, ErrInvalidTarget
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u, nil
}

// Origin returns scheme://host of u.
func Origin(u *url.URL) *url.URL {
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
}

// ResolveAgainstOrigin turns a model-reported page into an absolute http(s)
// URL. Absolute URLs are kept, root-relative and relative paths are resolved
// against the origin of target, and bare hosts get target's scheme. Values
// with whitespace or without any URL shape ("none", "n/a") are rejected.
func ResolveAgainstOrigin(raw string, target *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || target == nil || strings.ContainsAny(raw, " \t\r\n") {
		return "", false
	}

	switch {
	case strings.Contains(raw, "://"), strings.HasPrefix(raw, "/"):
	case strings.EqualFold(raw, "n/a"), strings.Contains(raw, ":"):
		return "", false
	case looksLikeHost(raw):
		raw = target.Scheme + "://" + raw
	case strings.Contains(raw, "/"), pageExtension(raw):
		// relative path such as "blog/post" or "pricing.html"
	default:
		return "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	resolved := Origin(target).ResolveReference(ref)
	if valid, _ := ValidateURL(resolved.String()); !valid {
		return "", false
	}
	return resolved.String(), true
}

func looksLikeHost(raw string) bool {
	first, _, _ := strings.Cut(raw, "/")
	return strings.Contains(first, ".") && !pageExtension(first)
}

func pageExtension(segment string) bool {
	ext := strings.ToLower(path.Ext(segment))
	switch ext {
	case ".html", ".htm", ".php", ".asp", ".aspx":
		return true
	}
	return false
}

// IsPrivateIP checks if an IP address is in a private/reserved range,
// including cloud metadata endpoints.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	// 169.254.169.254 is link-local already; Azure uses 168.63.129.16
	return ip.Equal(net.ParseIP("168.63.129.16"))
}
