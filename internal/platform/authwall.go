package platform

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// loginFormSelector matches a password input inside a form on any platform.
const loginFormSelector = "form input[type='password']"

// DetectAuthWall reports whether the page at pageURL with the given HTML is asking the
// user to sign in, and describes the signal that matched.
func (s *Strategy) DetectAuthWall(pageURL, html string) (bool, string, error) {
	lowerURL := strings.ToLower(pageURL)
	for _, sub := range s.AuthWall.URLSubstrings {
		if sub != "" && strings.Contains(lowerURL, strings.ToLower(sub)) {
			return true, fmt.Sprintf("url contains %q", sub), nil
		}
	}

	if strings.TrimSpace(html) == "" {
		return false, "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, loc := range s.AuthWall.Chain {
		if loc.XPath {
			continue
		}
		if doc.Find(loc.Query).Length() > 0 {
			return true, fmt.Sprintf("page has %s", loc), nil
		}
	}
	if doc.Find(loginFormSelector).Length() > 0 {
		return true, "page has a password form", nil
	}

	if len(s.AuthWall.Phrases) > 0 {
		doc.Find("script, style, noscript").Remove()
		text := strings.ToLower(strings.Join(strings.Fields(doc.Find("body").Text()), " "))
		for _, phrase := range s.AuthWall.Phrases {
			if phrase != "" && strings.Contains(text, strings.ToLower(phrase)) {
				return true, fmt.Sprintf("page text contains %q", phrase), nil
			}
		}
	}
	return false, "", nil
}
