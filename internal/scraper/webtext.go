package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	PageSourceName   = "wheredoestheanimeleaveoff"
	SearchSourceName = "duckduckgo"
)

// PageSource reads the fan-maintained "where does the anime leave off" page
// for a title and pulls the continuation chapter out of its visible text.
type PageSource struct {
	Client  *http.Client
	BaseURL string
}

func NewPageSource(baseURL string) *PageSource {
	return &PageSource{
		Client:  &http.Client{Timeout: 12 * time.Second},
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (s *PageSource) Name() string { return PageSourceName }

func (s *PageSource) Lookup(ctx context.Context, title string) (Finding, error) {
	slug := Slug(title)
	if slug == "" {
		return Finding{}, newError(PageSourceName, ErrorTypeNoContent, "empty title", nil)
	}
	endpoint := s.BaseURL + "/" + slug + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Finding{}, newError(PageSourceName, ErrorTypeUnknown, "build request", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.Client.Do(req)
	if err != nil {
		return Finding{}, requestError(ctx, PageSourceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Finding{}, newError(PageSourceName, ErrorTypeNoContent, "no page for "+slug, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return Finding{}, &LookupError{
			Type:       ErrorTypeUpstream,
			Source:     PageSourceName,
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Finding{}, newError(PageSourceName, ErrorTypeMalformed, "parse html", err)
	}
	text := VisibleText(doc)
	chapter, volume, ok := ParseContinuation(text)
	if !ok {
		return Finding{}, newError(PageSourceName, ErrorTypeNoContent, "no chapter on page", nil)
	}
	return Finding{
		Source:       PageSourceName,
		MatchedTitle: title,
		Chapter:      chapter,
		Volume:       volume,
		Detail:       endpoint,
	}, nil
}

// SearchSource queries the DuckDuckGo instant answer API and scans the
// abstract and related topics for a chapter reference.
type SearchSource struct {
	Client  *http.Client
	BaseURL string
}

func NewSearchSource(baseURL string) *SearchSource {
	return &SearchSource{
		Client:  &http.Client{Timeout: 12 * time.Second},
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (s *SearchSource) Name() string { return SearchSourceName }

type ddgTopic struct {
	Text   string     `json:"Text"`
	Topics []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Abstract      string     `json:"Abstract"`
	AbstractText  string     `json:"AbstractText"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

func (s *SearchSource) Lookup(ctx context.Context, title string) (Finding, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Finding{}, newError(SearchSourceName, ErrorTypeNoContent, "empty title", nil)
	}
	q := url.Values{}
	q.Set("q", title+" anime season ends manga chapter")
	q.Set("format", "json")
	q.Set("no_html", "1")
	endpoint := s.BaseURL + "/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Finding{}, newError(SearchSourceName, ErrorTypeUnknown, "build request", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return Finding{}, requestError(ctx, SearchSourceName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Finding{}, &LookupError{
			Type:       ErrorTypeUpstream,
			Source:     SearchSourceName,
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	var payload ddgResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return Finding{}, newError(SearchSourceName, ErrorTypeMalformed, "decode response", err)
	}

	texts := []string{payload.AbstractText, payload.Abstract}
	texts = appendTopicTexts(texts, payload.RelatedTopics)
	for _, t := range texts {
		if chapter, volume, ok := ParseContinuation(t); ok {
			return Finding{
				Source:       SearchSourceName,
				MatchedTitle: title,
				Chapter:      chapter,
				Volume:       volume,
				Detail:       strings.TrimSpace(t),
			}, nil
		}
	}
	return Finding{}, newError(SearchSourceName, ErrorTypeNoContent, "no chapter in search results", nil)
}

func appendTopicTexts(dst []string, topics []ddgTopic) []string {
	for _, t := range topics {
		if t.Text != "" {
			dst = append(dst, t.Text)
		}
		dst = appendTopicTexts(dst, t.Topics)
	}
	return dst
}

var (
	continuePattern = regexp.MustCompile(`(?i)\b(?:continue|start|resume|pick up)\s+(?:reading\s+)?(?:the\s+manga\s+)?(?:from|at|with)\s+chapter\s*#?\s*(\d+)`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// ParseContinuation prefers an explicit "continue from chapter N" phrase and
// falls back to the first chapter mentioned.
func ParseContinuation(text string) (int, *int, bool) {
	if m := continuePattern.FindStringSubmatchIndex(text); m != nil {
		// volume mentioned after the phrase belongs to it
		chapter, volume, ok := ParseProse(text[m[0]:])
		if ok {
			return chapter, volume, true
		}
	}
	return ParseProse(text)
}

// VisibleText flattens the readable text of a document, skipping scripts,
// styles and page chrome.
func VisibleText(doc *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Nav, atom.Footer, atom.Head:
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(b.String(), " "))
}
