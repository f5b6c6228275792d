package tracking

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/brightsend/crm/internal/domain"
)

// Rewriter produces recipient-specific renderings of a campaign body:
// open-tracking pixel, click-tracked links, and an unsubscribe footer.
//
// Rewrite is pure and deterministic: the same body and tokens always yield
// byte-identical output, and the campaign's canonical body is never mutated.
type Rewriter struct {
	baseURL string
}

// NewRewriter creates a Rewriter that points tracking URLs at baseURL
// (scheme + host, no trailing slash).
func NewRewriter(baseURL string) *Rewriter {
	return &Rewriter{baseURL: strings.TrimRight(baseURL, "/")}
}

// OpenURL returns the pixel endpoint for an open token.
func (rw *Rewriter) OpenURL(token string) string {
	return fmt.Sprintf("%s/tracking/open/%s", rw.baseURL, token)
}

// ClickURL returns the redirect endpoint for a click token and destination.
// The destination is URL-encoded into the `u` query parameter so it can be
// recovered exactly on the way back.
func (rw *Rewriter) ClickURL(token, dest string) string {
	return fmt.Sprintf("%s/tracking/click/%s?u=%s", rw.baseURL, token, url.QueryEscape(dest))
}

// UnsubscribeURL returns the unsubscribe page for an unsubscribe token.
func (rw *Rewriter) UnsubscribeURL(token string) string {
	return fmt.Sprintf("%s/unsubscribe/%s", rw.baseURL, token)
}

var hrefRe = regexp.MustCompile(`href="([^"]*)"`)

// Rewrite transforms a campaign's canonical HTML and text bodies into the
// per-recipient rendering for one job's tokens:
//
//  1. every href that is not a #-fragment, mailto:, tel:, or an existing
//     tracking URL is rewritten through the click endpoint;
//  2. a 1x1 invisible pixel for the open token is inserted before </body>;
//  3. a visible unsubscribe footer is appended after the pixel;
//  4. the text body gets a plain unsubscribe line.
func (rw *Rewriter) Rewrite(html, text string, tokens domain.TrackingTokens) (string, string) {
	out := rw.rewriteLinks(html, tokens.Click)

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" alt="" />`,
		rw.OpenURL(tokens.Open))
	footer := fmt.Sprintf(
		`<div style="font-size:12px;color:#999;margin-top:24px"><a href="%s">Unsubscribe</a></div>`,
		rw.UnsubscribeURL(tokens.Unsub))
	out = insertBeforeBodyClose(out, pixel+footer)

	textOut := text
	if textOut != "" && !strings.HasSuffix(textOut, "\n") {
		textOut += "\n"
	}
	textOut += "\nUnsubscribe: " + rw.UnsubscribeURL(tokens.Unsub) + "\n"

	return out, textOut
}

func (rw *Rewriter) rewriteLinks(html, clickToken string) string {
	return hrefRe.ReplaceAllStringFunc(html, func(match string) string {
		dest := hrefRe.FindStringSubmatch(match)[1]
		if skipHref(dest) || strings.HasPrefix(dest, rw.baseURL+"/tracking/") ||
			strings.HasPrefix(dest, rw.baseURL+"/unsubscribe/") {
			return match
		}
		return `href="` + rw.ClickURL(clickToken, dest) + `"`
	})
}

// skipHref reports whether an href must pass through untouched.
func skipHref(dest string) bool {
	return dest == "" ||
		strings.HasPrefix(dest, "#") ||
		strings.HasPrefix(dest, "mailto:") ||
		strings.HasPrefix(dest, "tel:")
}

// insertBeforeBodyClose places markup immediately before the closing body
// tag, or at the end of the document when there is none (plenty of campaign
// HTML is a bare fragment).
func insertBeforeBodyClose(html, markup string) string {
	idx := strings.LastIndex(strings.ToLower(html), "</body>")
	if idx < 0 {
		return html + markup
	}
	return html[:idx] + markup + html[idx:]
}
