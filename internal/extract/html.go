// Package extract applies extraction rules to HTML and JSON documents.
// The fetch and interactive collectors share it so both yield the same record shape.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/charset"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

// Extractor holds the page sanitizer and markdown converter, both safe for concurrent use.
type Extractor struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

func New() *Extractor {
	return &Extractor{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// ParseHTML decodes body to UTF-8 using the Content-Type charset or the meta tags.
func ParseHTML(body io.Reader, contentType string) (*goquery.Document, error) {
	utf8Body, err := charset.NewReader(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(utf8Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// HTMLItems extracts one Item per element matching rules.Items.
// Items whose fields are all empty are dropped.
func (e *Extractor) HTMLItems(doc *goquery.Document, rules domain.ExtractionRules, pageURL *url.URL) []Item {
	var items []Item
	doc.Find(rules.Items).Each(func(_ int, sel *goquery.Selection) {
		fields := make(map[string]string, len(rules.Fields))
		if len(rules.Fields) == 0 {
			if text := textOf(sel); text != "" {
				fields["text"] = text
			}
		}
		for name, spec := range rules.Fields {
			if v := e.fieldValue(sel, name, spec, pageURL); v != "" {
				fields[name] = v
			}
		}
		if len(fields) == 0 {
			return
		}

		id := fields[rules.ID]
		if rules.ID == "" || id == "" {
			html, _ := goquery.OuterHtml(sel)
			id = hashID(html)
		}
		items = append(items, Item{ID: id, Fields: fields})
	})
	return items
}

// Page turns a whole document into a single item: title, url and markdown content.
// The body markup is sanitized before conversion.
func (e *Extractor) Page(doc *goquery.Document, pageURL *url.URL) (Item, error) {
	raw, err := doc.Find("body").Html()
	if err != nil {
		return Item{}, fmt.Errorf("failed to render body: %w", err)
	}
	html := e.policy.Sanitize(raw)
	var content string
	if pageURL != nil {
		content, err = e.md.ConvertString(html, converter.WithDomain(pageURL.String()))
	} else {
		content, err = e.md.ConvertString(html)
	}
	if err != nil {
		return Item{}, fmt.Errorf("failed to convert page to markdown: %w", err)
	}

	fields := map[string]string{
		"title":   collapse(doc.Find("title").First().Text()),
		"content": strings.TrimSpace(content),
	}
	if pageURL != nil {
		fields["url"] = pageURL.String()
	}
	return Item{ID: hashID(fields["content"]), Fields: fields}, nil
}

var attrName = regexp.MustCompile(`^[A-Za-z_:][-A-Za-z0-9_:.]*$`)

// splitSpec parses "selector@attr". An empty selector targets the item itself.
func splitSpec(spec string) (selector, attr string) {
	if i := strings.LastIndex(spec, "@"); i >= 0 && attrName.MatchString(spec[i+1:]) {
		return strings.TrimSpace(spec[:i]), spec[i+1:]
	}
	return strings.TrimSpace(spec), ""
}

func (e *Extractor) fieldValue(item *goquery.Selection, name, spec string, pageURL *url.URL) string {
	selector, attr := splitSpec(spec)
	target := item
	if selector != "" {
		target = item.Find(selector).First()
	}
	if target.Length() == 0 {
		return ""
	}

	if attr == "" && (name == "link" || name == "url") {
		attr = "href"
	}
	if attr == "" {
		return textOf(target)
	}

	v, ok := target.Attr(attr)
	if !ok {
		return ""
	}
	v = strings.TrimSpace(v)
	if attr == "href" || attr == "src" {
		return resolve(pageURL, v)
	}
	return collapse(v)
}

// textOf returns the visible text of sel. Script and style bodies are not text.
func textOf(sel *goquery.Selection) string {
	if sel.Find("script, style, noscript, template").Length() > 0 {
		sel = sel.Clone()
		sel.Find("script, style, noscript, template").Remove()
	}
	return collapse(sel.Text())
}

// collapse trims s and folds whitespace runs into single spaces. The text is
// already decoded, so anything that looks like markup is content and stays.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(pageURL *url.URL, ref string) string {
	if pageURL == nil || ref == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return pageURL.ResolveReference(u).String()
}

func hashID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
