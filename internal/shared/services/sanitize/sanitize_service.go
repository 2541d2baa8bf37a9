// Package sanitize cleans server supplied challenge markup before it is
// rendered into a page.
package sanitize

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

type ChallengeSanitizer interface {
	// Sanitize keeps forms, inputs and frames and drops scripts and handlers.
	Sanitize(fragment string) string
}

type challengeSanitizerImpl struct {
	policy *bluemonday.Policy
}

var (
	identifier = regexp.MustCompile(`^[A-Za-z0-9_\-:.]+$`)
	httpURL    = regexp.MustCompile(`^https?://[^\s"'<>]+$`)
)

func NewChallengeSanitizer() ChallengeSanitizer {
	policy := bluemonday.NewPolicy()
	policy.AllowURLSchemes("https", "http")
	policy.RequireParseableURLs(true)
	policy.AllowRelativeURLs(false)

	policy.AllowElements("form", "input", "iframe", "div", "span", "p", "noscript", "button")
	policy.AllowNoAttrs().OnElements("form", "input", "iframe", "div", "span", "p", "noscript", "button")
	policy.AllowAttrs("action").Matching(httpURL).OnElements("form")
	policy.AllowAttrs("method").Matching(regexp.MustCompile(`(?i)^(get|post)$`)).OnElements("form")
	policy.AllowAttrs("target", "name", "id").Matching(identifier).OnElements("form")
	policy.AllowAttrs("type").Matching(regexp.MustCompile(`(?i)^(hidden|submit)$`)).OnElements("input", "button")
	policy.AllowAttrs("name", "id").Matching(identifier).OnElements("input", "iframe")
	policy.AllowAttrs("value").OnElements("input")
	policy.AllowAttrs("src").Matching(httpURL).OnElements("iframe")
	policy.AllowAttrs("width", "height").Matching(bluemonday.Number).OnElements("iframe")

	return &challengeSanitizerImpl{policy: policy}
}

func (s *challengeSanitizerImpl) Sanitize(fragment string) string {
	return s.policy.Sanitize(fragment)
}
