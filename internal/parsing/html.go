package parsing

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLToText flattens an HTML job description into plain text, one line per
// block element. Input without markup is returned trimmed.
func HTMLToText(content string) string {
	content = strings.TrimSpace(content)
	if !strings.Contains(content, "<") {
		return content
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}

	doc.Find("script, style, nav, footer, header, iframe, noscript").Remove()

	var lines []string
	doc.Find("p, li, h1, h2, h3, h4, h5, h6, td, pre").Each(func(_ int, s *goquery.Selection) {
		// Skip containers whose text is reported by a nested block.
		if s.Find("p, li, h1, h2, h3, h4, h5, h6, td, pre").Length() > 0 {
			return
		}
		text := collapseSpace(s.Text())
		if text == "" {
			return
		}
		if goquery.NodeName(s) == "li" {
			text = "- " + text
		}
		lines = append(lines, text)
	})

	if len(lines) == 0 {
		return collapseSpace(doc.Text())
	}
	return strings.Join(lines, "\n")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
