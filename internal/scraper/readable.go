package scraper

import (
	"io"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/markusmobius/go-trafilatura"

	"webrag/internal/domain"
)

// ReadableText returns the main text of an HTML document. Navigation,
// comments and other boilerplate are removed by trafilatura, which falls
// back to readability and dom-distiller when its own result is too thin.
// pageURL is optional and only sharpens site-specific rules.
func ReadableText(r io.Reader, pageURL *url.URL) (string, error) {
	res, err := trafilatura.Extract(r, trafilatura.Options{
		OriginalURL:     pageURL,
		EnableFallback:  true,
		ExcludeComments: true,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to extract main text", goerr.T(domain.ErrTagExtract))
	}

	text := normalizeLines(res.ContentText)
	if text == "" {
		return "", goerr.New("no readable text in document", goerr.T(domain.ErrTagExtract))
	}
	return text, nil
}

// normalizeLines collapses runs of whitespace inside each line and drops
// empty lines.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if f := strings.Fields(line); len(f) > 0 {
			out = append(out, strings.Join(f, " "))
		}
	}
	return strings.Join(out, "\n")
}
