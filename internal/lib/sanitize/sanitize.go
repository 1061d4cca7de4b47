// Package sanitize strips untrusted HTML from user-authored post and comment
// bodies before they are stored.
package sanitize

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Policy is an allow-list HTML sanitizer. It is safe for concurrent use.
type Policy struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

// New builds the sanitizer used for blog content.
//
// Posts keep basic formatting: paragraphs, headings, lists, quotes, code,
// emphasis, links and https images. Links get target="_blank" and
// rel="nofollow noreferrer noopener". Scripts, iframes, styles and on*
// attributes are dropped.
func New() *Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr", "h2", "h3", "h4",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "del",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})

	return &Policy{
		rich:  p,
		plain: bluemonday.StrictPolicy(),
	}
}

// Content sanitizes a post body, keeping allowed formatting.
func (p *Policy) Content(raw string) string {
	return strings.TrimSpace(p.rich.Sanitize(raw))
}

// Comment sanitizes a comment body. Comments are stored as plain text.
func (p *Policy) Comment(raw string) string {
	return strings.TrimSpace(p.plain.Sanitize(raw))
}

// Text strips all markup from short single-line fields such as titles, tags
// and profile bios.
func (p *Policy) Text(raw string) string {
	return strings.TrimSpace(p.plain.Sanitize(raw))
}
