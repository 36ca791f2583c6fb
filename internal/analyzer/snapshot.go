package analyzer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanSnapshot strips scripts, CSP and refresh meta tags from html and pins
// relative URLs to baseURL so the copy renders like the original.
func CleanSnapshot(html, baseURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse snapshot: %w", err)
	}

	doc.Find("script").Remove()
	doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		switch strings.ToLower(strings.TrimSpace(s.AttrOr("http-equiv", ""))) {
		case "content-security-policy", "content-security-policy-report-only", "refresh":
			s.Remove()
		}
	})
	doc.Find("[onload],[onerror],[onclick]").Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("onload")
		s.RemoveAttr("onerror")
		s.RemoveAttr("onclick")
	})

	if baseURL != "" && doc.Find("base[href]").Length() == 0 {
		head := doc.Find("head").First()
		if head.Length() > 0 {
			base := fmt.Sprintf(`<base href="%s">`, htmlAttrEscape(baseURL))
			if head.Children().Length() > 0 {
				head.Children().First().BeforeHtml(base)
			} else {
				head.AppendHtml(base)
			}
		}
	}

	out, err := goquery.OuterHtml(doc.Selection.Children().First())
	if err != nil {
		return "", fmt.Errorf("render snapshot: %w", err)
	}
	return "<!DOCTYPE html>" + out, nil
}

func htmlAttrEscape(s string) string {
	return strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;").Replace(s)
}
