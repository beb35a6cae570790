package wiki

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// apiResponse is the subset of the action=parse (formatversion=2) payload we use.
type apiResponse struct {
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
	Parse *struct {
		Title      string `json:"title"`
		Text       string `json:"text"`
		Categories []struct {
			Category string `json:"category"`
			Hidden   bool   `json:"hidden"`
		} `json:"categories"`
		Sections []struct {
			Line string `json:"line"`
		} `json:"sections"`
		Properties map[string]string `json:"properties"`
	} `json:"parse"`
}

// Namespaces whose links are not articles
var nonArticleNamespaces = map[string]bool{
	"file": true, "image": true, "category": true, "template": true,
	"template talk": true, "help": true, "wikipedia": true, "portal": true,
	"special": true, "talk": true, "user": true, "user talk": true,
	"module": true, "draft": true, "mediawiki": true, "wp": true,
}

// Containers whose anchors are not part of the article body
const skippedContainers = ".reflist, .references, .navbox, .metadata, .hatnote, .reference, .mw-editsection"

func parseResponse(requested string, body []byte, articleBase string) (*TopicData, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Title: requested, Kind: ErrTransient, Err: fmt.Errorf("decode response: %w", err)}
	}

	if resp.Error != nil {
		switch resp.Error.Code {
		case "missingtitle", "invalidtitle", "nosuchpageid":
			return nil, &FetchError{Title: requested, Kind: ErrNotFound, Err: fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Info)}
		default:
			return nil, &FetchError{Title: requested, Kind: ErrTransient, Err: fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Info)}
		}
	}
	if resp.Parse == nil || resp.Parse.Title == "" {
		return nil, &FetchError{Title: requested, Kind: ErrTransient, Err: fmt.Errorf("response has no parse section")}
	}

	p := resp.Parse
	if _, ok := p.Properties["disambiguation"]; ok {
		return nil, &FetchError{Title: requested, Kind: ErrDisambiguation}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.Text))
	if err != nil {
		return nil, &FetchError{Title: requested, Kind: ErrTransient, Err: fmt.Errorf("parse article html: %w", err)}
	}
	doc.Find("style, script").Remove()

	data := &TopicData{
		Title:     p.Title,
		URL:       articleBase + url.PathEscape(strings.ReplaceAll(p.Title, " ", "_")),
		Summary:   extractSummary(doc),
		Links:     extractLinks(doc),
		WordCount: len(strings.Fields(doc.Text())),
	}

	seen := make(map[string]bool)
	for _, c := range p.Categories {
		if c.Hidden {
			continue
		}
		name := strings.ReplaceAll(c.Category, "_", " ")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		data.Categories = append(data.Categories, name)
	}

	for _, s := range p.Sections {
		if line := plainText(s.Line); line != "" {
			data.Sections = append(data.Sections, line)
		}
	}

	return data, nil
}

// extractSummary returns the paragraphs that precede the first heading
func extractSummary(doc *goquery.Document) string {
	root := doc.Find(".mw-parser-output").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var paragraphs []string
	root.Children().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "h2" || s.HasClass("mw-heading") {
			return false
		}
		if goquery.NodeName(s) != "p" || s.HasClass("mw-empty-elt") {
			return true
		}
		p := s.Clone()
		p.Find("sup.reference").Remove()
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
		return true
	})
	return strings.Join(paragraphs, "\n")
}

// extractLinks returns linked article titles in document order
func extractLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.HasPrefix(href, "/wiki/") {
			return
		}
		if a.Closest(skippedContainers).Length() > 0 {
			return
		}
		title, ok := a.Attr("title")
		if !ok {
			// Fall back to the path segment
			raw := strings.TrimPrefix(href, "/wiki/")
			if i := strings.IndexByte(raw, '#'); i >= 0 {
				raw = raw[:i]
			}
			unescaped, err := url.PathUnescape(raw)
			if err != nil {
				return
			}
			title = strings.ReplaceAll(unescaped, "_", " ")
		}
		title = strings.TrimSpace(title)
		if title == "" || isNonArticle(title) {
			return
		}
		links = append(links, title)
	})
	return links
}

func isNonArticle(title string) bool {
	i := strings.IndexByte(title, ':')
	if i <= 0 {
		return false
	}
	return nonArticleNamespaces[strings.ToLower(strings.TrimSpace(title[:i]))]
}

func plainText(fragment string) string {
	if !strings.ContainsRune(fragment, '<') {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}
