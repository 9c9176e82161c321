package wpmap

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// stripPolicy drops every tag (script and style bodies included) and leaves
// a space where each tag stood, so "<p>a</p><p>b</p>" keeps its word break.
var stripPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// StripHTML reduces post HTML to plain text for the news description
// column: tags removed, script/style contents dropped, entities decoded,
// non-breaking and repeated whitespace collapsed.
func StripHTML(raw string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(raw))
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return SanitizeText(text)
}
