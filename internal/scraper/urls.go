package scraper

import (
	"net/url"
	"regexp"
	"strings"
)

var thumbSrcParam = regexp.MustCompile(`src=([^&]+)`)

// ResolveURL converts a possibly relative URL into an absolute one against the
// page it was found on. Resolution is best-effort: a base URL that cannot be
// parsed returns the candidate unchanged rather than failing the scrape.
func ResolveURL(candidate, base string) string {
	if candidate == "" {
		return candidate
	}
	if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
		return candidate
	}

	// Protocol-relative: keep the page's scheme.
	if strings.HasPrefix(candidate, "//") {
		scheme := "https"
		if u, err := url.Parse(base); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		return scheme + ":" + candidate
	}

	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return candidate
	}

	// Root-relative: scheme+host only.
	if strings.HasPrefix(candidate, "/") {
		return u.Scheme + "://" + u.Host + candidate
	}

	// Directory-relative: drop the last path segment of the base, then join.
	parts := splitPath(u.Path)
	if len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}
	dir := "/"
	if len(parts) > 0 {
		dir = "/" + strings.Join(parts, "/") + "/"
	}
	return u.Scheme + "://" + u.Host + dir + candidate
}

// ResolveThumbnailProxy decodes thumbnail-proxy URLs (phpThumb and friends)
// that embed the real asset path in a src= query parameter. The decoded path
// is re-based against the page's scheme+host after stripping a leading ".."
// escape segment; proxied sources are site-root-relative once unescaped.
// The second return value reports whether the candidate was handled.
func ResolveThumbnailProxy(candidate, base string) (string, bool) {
	if !strings.Contains(candidate, "phpThumb") && !strings.Contains(candidate, "php") {
		return "", false
	}

	m := thumbSrcParam.FindStringSubmatch(candidate)
	if m == nil {
		return "", false
	}

	src := m[1]
	if decoded, err := url.QueryUnescape(src); err == nil {
		src = decoded
	}
	src = strings.TrimPrefix(src, "..")

	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return candidate, true
	}
	return u.Scheme + "://" + u.Host + src, true
}

// resolveImageURL applies the proxy resolver first and falls back to generic
// resolution, the order every image extraction site must use.
func resolveImageURL(candidate, base string) string {
	if resolved, ok := ResolveThumbnailProxy(candidate, base); ok {
		return resolved
	}
	return ResolveURL(candidate, base)
}

func splitPath(p string) []string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}
