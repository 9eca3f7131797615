package extract

import (
	"bytes"
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minArticleLength is the minimum TextContent length (in characters) for
// readability output to be considered valid. Below this threshold we
// assume the algorithm failed to locate the main content and fall back
// to the full document.
const minArticleLength = 50

// readableContent runs the Mozilla Readability algorithm on body and
// returns the main-content HTML plus the extracted title. The third
// return value is false when extraction failed and the caller should use
// the full document instead. The API must never fail just because
// readability choked.
func readableContent(body []byte, sourceURL string) (string, string, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source URL, using full document",
			"url", sourceURL, "error", err,
		)
		return "", "", false
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed, using full document",
			"url", sourceURL, "error", err,
		)
		return "", "", false
	}

	if len(strings.TrimSpace(article.TextContent)) < minArticleLength {
		slog.Warn("readability: extracted content too short, using full document",
			"url", sourceURL, "length", len(article.TextContent),
		)
		return "", "", false
	}

	return article.Content, article.Title, true
}
