package render

import "github.com/microcosm-cc/bluemonday"

// allow-list of tags a rendered page may contain: the baseline safe set
// (a, abbr, acronym, b, blockquote, code, em, i, li, ol, strong, ul)
// plus the block elements the Markdown extensions produce
var allowedTags = []string{
	"a", "abbr", "acronym", "b", "blockquote", "code", "em", "i", "li", "ol", "strong", "ul",
	"p", "pre",
	"h1", "h2", "h3",
	"table", "thead", "tbody", "tr", "td", "th",
	"hr", "br", "img",
}

var policy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	// URL hygiene without RequireNoFollowOnLinks: links keep exactly
	// href and title, nothing gets injected
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("mailto", "http", "https")
	return p
}()

// Sanitize strips everything outside the allow-list from the given HTML.
// Disallowed tags are removed, their text content is kept. All attributes
// other than a[href,title] and img[src,alt,title] are dropped, including
// the syntax-highlight classes. Sanitize is a fixed point: running it on
// already-sanitized HTML changes nothing.
func Sanitize(html string) string {
	return policy.Sanitize(html)
}
