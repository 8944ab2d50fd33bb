package link_extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/customeros/bccstack/interfaces"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'\[\]{}|\\^` + "`" + `]+`)

const trailingPunctuation = ".,;:!?)'\""

type linkExtractor struct{}

func NewLinkExtractor() interfaces.LinkExtractor {
	return &linkExtractor{}
}

// FromHTML returns the first http(s) anchor href, falling back to the first
// URL in the visible text.
func (e *linkExtractor) FromHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return e.FromText(html)
	}

	doc.Find("script, style").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	var found string
	doc.Find("a[href]").EachWithBreak(func(i int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if link, ok := normalize(href); ok {
			found = link
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	return e.FromText(doc.Text())
}

// FromText returns the first http(s) URL in text.
func (e *linkExtractor) FromText(text string) string {
	for _, candidate := range urlPattern.FindAllString(text, -1) {
		if link, ok := normalize(strings.TrimRight(candidate, trailingPunctuation)); ok {
			return link
		}
	}
	return ""
}

func normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return "", false
	}
	return raw, true
}
