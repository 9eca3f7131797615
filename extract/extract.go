package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/gather/models"
)

// Extractor turns a fetched HTML document into the list of extracted
// strings requested by the client. The Markdown converter is created once
// and reused across all requests (goroutine-safe).
type Extractor struct {
	mdConverter *mdConverter
}

// New initialises the Extractor.
func New() *Extractor {
	return &Extractor{mdConverter: newMarkdownConverter()}
}

// Extraction is the result of a successful Extract call.
type Extraction struct {
	// Results holds the extracted strings in document order. With no
	// selector there is exactly one entry; a selector matching nothing
	// yields an empty (non-nil) slice.
	Results []string

	// Title is the document title, when one could be determined.
	Title string
}

// Extract parses body and applies the request's selector, attribute and
// format rules.
//
// Flow:
//  1. Validate selector and exclude selectors (INVALID_SELECTOR).
//  2. Optionally reduce the document to its main content (article mode).
//  3. Parse (PARSE_FAILED on empty or unparseable body).
//  4. Remove excluded elements.
//  5. Render each match: attribute value, text, HTML, or Markdown.
func (e *Extractor) Extract(body []byte, req *models.ScrapeRequest, baseURL string) (*Extraction, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeParseFailed, "empty response body", nil)
	}

	var matcher goquery.Matcher
	if req.Selector != "" {
		m, err := cascadia.Compile(req.Selector)
		if err != nil {
			return nil, models.NewScrapeError(
				models.ErrCodeInvalidSelector,
				fmt.Sprintf("invalid selector %q", req.Selector),
				err,
			)
		}
		matcher = m
	}

	excludes := make([]goquery.Matcher, 0, len(req.Exclude))
	for _, sel := range req.Exclude {
		m, err := cascadia.Compile(sel)
		if err != nil {
			return nil, models.NewScrapeError(
				models.ErrCodeInvalidSelector,
				fmt.Sprintf("invalid exclude selector %q", sel),
				err,
			)
		}
		excludes = append(excludes, m)
	}

	docHTML := string(body)
	title := ""
	if req.ExtractMode == "article" {
		if content, artTitle, ok := readableContent(body, baseURL); ok {
			docHTML = content
			title = artTitle
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(docHTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParseFailed, "cannot parse HTML", err)
	}

	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	for _, m := range excludes {
		doc.FindMatcher(m).Remove()
	}

	if matcher == nil {
		value, err := e.renderDocument(doc, req, baseURL)
		if err != nil {
			return nil, err
		}
		return &Extraction{Results: []string{value}, Title: title}, nil
	}

	results := []string{}
	var renderErr error
	doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		if renderErr != nil {
			return
		}
		value, err := e.renderElement(s, req, baseURL)
		if err != nil {
			renderErr = err
			return
		}
		results = append(results, value)
	})
	if renderErr != nil {
		return nil, renderErr
	}

	return &Extraction{Results: results, Title: title}, nil
}

// renderElement produces the output string for one matched element.
func (e *Extractor) renderElement(s *goquery.Selection, req *models.ScrapeRequest, baseURL string) (string, error) {
	if req.Attribute != "" {
		// Missing attributes yield "" rather than dropping the element,
		// so result positions stay aligned with the match order.
		return s.AttrOr(req.Attribute, ""), nil
	}

	switch req.Format {
	case "html":
		return goquery.OuterHtml(s)
	case "markdown":
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			return "", err
		}
		return e.mdConverter.Convert(outer, baseURL)
	default: // "text"
		return visibleText(s.Nodes), nil
	}
}

// renderDocument produces the single result for a request without a
// selector: the whole document counts as one match.
func (e *Extractor) renderDocument(doc *goquery.Document, req *models.ScrapeRequest, baseURL string) (string, error) {
	if req.Attribute != "" {
		return doc.Find("html").AttrOr(req.Attribute, ""), nil
	}

	switch req.Format {
	case "html":
		return goquery.OuterHtml(doc.Selection)
	case "markdown":
		outer, err := goquery.OuterHtml(doc.Selection)
		if err != nil {
			return "", err
		}
		return e.mdConverter.Convert(outer, baseURL)
	default: // "text"
		// Only <body> carries visible text; head content is metadata.
		return visibleText(doc.Find("body").Nodes), nil
	}
}
