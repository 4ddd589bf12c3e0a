package normalize

import (
	"net/url"
	"strings"
)

// tracking parameter keys dropped during canonicalization; prefixes are
// matched case-insensitively
var (
	trackingPrefixes = []string{"utm_", "ref_", "spm", "fbclid", "gclid", "mc_cid", "mc_eid"}
	trackingExact    = map[string]bool{"ref": true, "source": true, "src": true}
)

// CanonicalizeURL strips the fragment and known tracking query parameters so
// tracking-link variants of the same page collapse to one identity. URLs
// without a scheme or host (e.g. bare arXiv abstract ids) are opaque
// identifiers and pass through unchanged. The function is idempotent.
func CanonicalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	if u.RawQuery != "" {
		// filter pairs by hand to preserve the original order and encoding
		// of the parameters we keep
		kept := make([]string, 0, 4)
		for _, pair := range strings.Split(u.RawQuery, "&") {
			if pair == "" {
				continue
			}
			key := pair
			if idx := strings.Index(pair, "="); idx >= 0 {
				key = pair[:idx]
			}
			if unescaped, uerr := url.QueryUnescape(key); uerr == nil {
				key = unescaped
			}
			if isTrackingKey(strings.ToLower(key)) {
				continue
			}
			kept = append(kept, pair)
		}
		u.RawQuery = strings.Join(kept, "&")
	}

	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func isTrackingKey(key string) bool {
	if trackingExact[key] {
		return true
	}
	for _, prefix := range trackingPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
