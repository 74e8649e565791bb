package llm

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	textExcerptLimit = 8000
	htmlExcerptLimit = 12000
)

// mainContentSelectors are tried in order when isolating the page's main
// content region
var mainContentSelectors = []string{
	"main",
	"article",
	"#content",
	"#main",
	".content",
	".main",
	"body",
}

// pageExcerpts is the cleaned page content sent to the LLM
type pageExcerpts struct {
	Text string // markdown-ish body text, capped at textExcerptLimit
	HTML string // main-content HTML, capped at htmlExcerptLimit
}

// cleanPage strips boilerplate and produces bounded text and HTML excerpts
func cleanPage(htmlContent string) pageExcerpts {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return pageExcerpts{
			Text: truncate(htmlContent, textExcerptLimit),
			HTML: truncate(htmlContent, htmlExcerptLimit),
		}
	}

	doc.Find("script, style, noscript, iframe, svg, nav, footer, header").Remove()

	var mainHTML string
	for _, selector := range mainContentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if h, err := goquery.OuterHtml(sel); err == nil && strings.TrimSpace(sel.Text()) != "" {
			mainHTML = h
			break
		}
	}
	if mainHTML == "" {
		mainHTML = htmlContent
	}

	text := htmlToText(mainHTML)
	if text == "" {
		text = strings.TrimSpace(doc.Text())
	}

	return pageExcerpts{
		Text: truncate(text, textExcerptLimit),
		HTML: truncate(mainHTML, htmlExcerptLimit),
	}
}

// htmlToText renders HTML as markdown so tables and lists keep their
// structure in the text excerpt
func htmlToText(htmlContent string) string {
	converter := md.NewConverter("", true, nil)
	text, err := converter.ConvertString(htmlContent)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
