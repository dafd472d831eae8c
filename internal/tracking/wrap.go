package tracking

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// WrapLinks rewrites every trackable anchor in htmlBody so its href points
// at the click endpoint with the original target embedded in the token.
//
// The body is walked with the html tokenizer rather than a regex: anything
// that is not a rewritten anchor — text, other tags, comments, malformed or
// unterminated markup — is emitted from the tokenizer's raw bytes, so it
// passes through byte-for-byte and a broken body never corrupts or panics.
// An empty body yields an empty result; a body with no trackable links
// comes back unchanged.
func WrapLinks(base, htmlBody, queueID, campaignID string) string {
	var out bytes.Buffer
	tok := html.NewTokenizer(strings.NewReader(htmlBody))
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			// io.EOF from a strings.Reader; nothing else can error here.
			// Raw still holds any partial token (an unterminated tag at
			// end of input), which passes through untouched.
			out.Write(tok.Raw())
			return out.String()
		}
		raw := tok.Raw()
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			t := tok.Token()
			if t.Data == "a" && rewriteHref(&t, base, queueID, campaignID) {
				out.WriteString(t.String())
				continue
			}
		}
		out.Write(raw)
	}
}

// rewriteHref replaces the anchor's href with a tracking URL, leaving all
// other attributes in place. Returns false if nothing was rewritten, in
// which case the caller emits the raw bytes untouched.
func rewriteHref(t *html.Token, base, queueID, campaignID string) bool {
	for i, a := range t.Attr {
		if a.Key == "href" && shouldWrap(a.Val) {
			t.Attr[i].Val = ClickURL(base, queueID, campaignID, a.Val)
			return true
		}
	}
	return false
}

// shouldWrap reports whether an href belongs to a trackable link. Links
// already pointing at a click endpoint, mail/tel links, and pure in-page
// fragments pass through unmodified.
func shouldWrap(href string) bool {
	if href == "" {
		return false
	}
	if strings.Contains(href, ClickPath) ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "#") {
		return false
	}
	return true
}

// InjectOpenPixel inserts a hidden 1x1 image reference into htmlBody just
// before the closing body tag, or appends it when the body has none.
func InjectOpenPixel(htmlBody, pixelURL string) string {
	img := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none" />`,
		html.EscapeString(pixelURL))
	for _, closer := range []string{"</body>", "</BODY>"} {
		if strings.Contains(htmlBody, closer) {
			return strings.Replace(htmlBody, closer, img+closer, 1)
		}
	}
	return htmlBody + img
}
