package extract

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// mdConverter wraps a reusable, goroutine-safe html-to-markdown converter.
//
//   - base plugin: strips script, style, iframe, noscript, head, meta,
//     link, input, textarea and HTML comments.
//   - commonmark plugin: standard Markdown rendering.
//   - table plugin: keeps table structure with minimal cell padding.
type mdConverter struct {
	conv *converter.Converter
}

func newMarkdownConverter() *mdConverter {
	return &mdConverter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// Convert turns an HTML fragment into Markdown. The domain resolves
// relative URLs in <a> and <img> tags so the output is self-contained.
func (m *mdConverter) Convert(htmlContent, domain string) (string, error) {
	return m.conv.ConvertString(htmlContent, converter.WithDomain(domain))
}
