package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no query untouched", "https://example.com/post", "https://example.com/post"},
		{"utm stripped", "https://example.com/post?utm_source=x&utm_medium=y", "https://example.com/post"},
		{"mixed keeps order", "https://example.com/p?a=1&utm_source=x&b=2&c=3", "https://example.com/p?a=1&b=2&c=3"},
		{"ref exact stripped", "https://example.com/p?ref=hn&id=7", "https://example.com/p?id=7"},
		{"source exact stripped", "https://example.com/p?source=rss", "https://example.com/p"},
		{"src exact stripped", "https://example.com/p?src=tw&x=1", "https://example.com/p?x=1"},
		{"fbclid gclid stripped", "https://example.com/p?fbclid=abc&gclid=def&keep=1", "https://example.com/p?keep=1"},
		{"mailchimp stripped", "https://example.com/p?mc_cid=1&mc_eid=2", "https://example.com/p"},
		{"spm prefix stripped", "https://example.com/p?spm=a.b.c", "https://example.com/p"},
		{"ref_ prefix stripped", "https://example.com/p?ref_src=twsrc", "https://example.com/p"},
		{"case insensitive keys", "https://example.com/p?UTM_Source=x&Keep=1", "https://example.com/p?Keep=1"},
		{"fragment dropped", "https://example.com/p?a=1#section-2", "https://example.com/p?a=1"},
		{"resource-like param kept", "https://example.com/p?refresh=1", "https://example.com/p?refresh=1"},
		{"opaque id untouched", "2403.01234v1", "2403.01234v1"},
		{"relative path untouched", "/local/path?utm_source=x", "/local/path?utm_source=x"},
		{"empty untouched", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalizeURL(tt.in))
		})
	}
}

func TestCanonicalizeURL_Idempotent(t *testing.T) {
	urls := []string{
		"https://example.com/post?utm_source=x&a=1#frag",
		"https://example.com/p?a=1&b=2",
		"https://example.com/bare",
		"not-a-url",
		"https://example.com/p?ref=hn&spm=a.b&keep=yes",
	}
	for _, u := range urls {
		once := CanonicalizeURL(u)
		assert.Equal(t, once, CanonicalizeURL(once), "canonicalize must be idempotent for %q", u)
	}
}
