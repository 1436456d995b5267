package crawler

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/listing-harvester/internal/domain"
	"github.com/user/listing-harvester/pkg/utils"
)

// minTextLength is the number of characters a selector match must exceed to be accepted.
const minTextLength = 20

const maxImages = 10

// Ordered selector fallbacks for the listing detail page.
var (
	TitleSelectors       = []string{"h1", `[data-testid="listing-title"]`}
	LocationSelectors    = []string{"address", `[class*="location"]`}
	DescriptionSelectors = []string{`[class*="description"]`, "p"}
	AgentSelectors       = []string{`[class*="agent"]`}
)

const descriptionMaxLen = 300

// Separators also accept U+00A0, which portals emit as &nbsp;.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Rp[\s\x{00A0}]*[\d.,]+[\s\x{00A0}]*(?:Juta|Miliar)?`),
	regexp.MustCompile(`(?i)IDR[\s\x{00A0}]*[\d.,]+`),
}

// NumberRule captures a numeric attribute from free page text.
type NumberRule struct {
	Pattern *regexp.Regexp
	Unit    string
}

var (
	BedroomsRule     = NumberRule{regexp.MustCompile(`(?i)(\d+)[\s\x{00A0}]*(?:kt|kamar tidur)`), "KT"}
	BathroomsRule    = NumberRule{regexp.MustCompile(`(?i)(\d+)[\s\x{00A0}]*(?:km|kamar mandi)`), "KM"}
	LandSizeRule     = NumberRule{regexp.MustCompile(`(?i)(\d+)[\s\x{00A0}]*m².*tanah`), "m²"}
	BuildingSizeRule = NumberRule{regexp.MustCompile(`(?i)(\d+)[\s\x{00A0}]*m².*bangunan`), "m²"}
)

var whitespace = regexp.MustCompile(`[\s\x{00A0}]+`)

// ExtractText returns the text of the first selector whose first match is longer
// than minTextLength characters, truncated to maxLen runes plus "..." when maxLen > 0.
// It returns domain.NotAvailable when nothing qualifies.
func ExtractText(doc *goquery.Document, selectors []string, maxLen int) string {
	for _, sel := range selectors {
		elem := doc.Find(sel).First()
		if elem.Length() == 0 {
			continue
		}
		text := normalizeText(elem.Text())
		if utf8.RuneCountInString(text) <= minTextLength {
			continue
		}
		if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
			return string([]rune(text)[:maxLen]) + "..."
		}
		return text
	}
	return domain.NotAvailable
}

// ExtractPrice returns the first currency match in text with its whitespace
// normalized, or domain.ContactAgent.
func ExtractPrice(text string) string {
	for _, re := range pricePatterns {
		if m := re.FindString(text); m != "" {
			return normalizeText(m)
		}
	}
	return domain.ContactAgent
}

// ExtractNumber returns "<digits> <unit>" for the first match of pattern, or domain.NotAvailable.
func ExtractNumber(text string, pattern *regexp.Regexp, unit string) string {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return domain.NotAvailable
	}
	return m[1] + " " + unit
}

// ExtractImages collects absolute image URLs, og:image first.
func ExtractImages(doc *goquery.Document, pageURL *url.URL) []string {
	images := make([]string, 0, maxImages)
	seen := make(map[string]bool)

	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") || len(images) >= maxImages {
			return
		}
		abs, err := utils.ToAbsoluteURL(pageURL, src)
		if err != nil || seen[abs] {
			return
		}
		seen[abs] = true
		images = append(images, abs)
	}

	doc.Find(`meta[property="og:image"]`).Each(func(i int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		add(content)
	})
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" && !strings.HasPrefix(src, "data:") {
			add(src)
			return
		}
		dataSrc, _ := s.Attr("data-src")
		add(dataSrc)
	})
	return images
}

// ExtractProperty parses a listing detail page. ok is false when the page has
// no usable title or cannot be parsed; such pages are dropped by the harvester.
func ExtractProperty(pageURL string, body []byte, now time.Time) (domain.PropertyRecord, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.PropertyRecord{}, false
	}
	doc.Find("script, style, noscript").Remove()

	title := ExtractText(doc, TitleSelectors, 0)
	if title == domain.NotAvailable {
		return domain.PropertyRecord{}, false
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return domain.PropertyRecord{}, false
	}

	text := doc.Text()
	return domain.PropertyRecord{
		URL:          pageURL,
		Title:        title,
		Price:        ExtractPrice(text),
		Location:     ExtractText(doc, LocationSelectors, 0),
		Bedrooms:     ExtractNumber(text, BedroomsRule.Pattern, BedroomsRule.Unit),
		Bathrooms:    ExtractNumber(text, BathroomsRule.Pattern, BathroomsRule.Unit),
		LandSize:     ExtractNumber(text, LandSizeRule.Pattern, LandSizeRule.Unit),
		BuildingSize: ExtractNumber(text, BuildingSizeRule.Pattern, BuildingSizeRule.Unit),
		Description:  ExtractText(doc, DescriptionSelectors, descriptionMaxLen),
		Agent:        ExtractText(doc, AgentSelectors, 0),
		Images:       ExtractImages(doc, base),
		ScrapedAt:    now.Format(domain.ScrapedAtLayout),
	}, true
}

func normalizeText(s string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}
