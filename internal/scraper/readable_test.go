package scraper_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"webrag/internal/domain"
	"webrag/internal/scraper"
)

const ownershipPage = `<!doctype html><html><head><title>Ownership</title><style>p{}</style></head>
<body>
<nav><ul><li><a href="/">Home</a></li><li><a href="/docs">Documentation index</a></li></ul></nav>
<article>
  <h1>Understanding Ownership</h1>
  <p>Ownership is the set of rules that govern how a Rust program manages memory. Every value in Rust
  has a variable that is called its owner, and there can only be one owner at a time.</p>
  <script>track()</script>
  <p>When the owner goes out of scope, the value is dropped and its memory is returned to the allocator.
  This makes memory safety guarantees possible without needing a garbage collector at run time.</p>
  <p>Borrowing lets code use a value through a reference without taking ownership of it, and the borrow
  checker makes sure that references never outlive the data they point to.</p>
</article>
<footer><p>Copyright Example Corp. All rights reserved.</p></footer>
</body></html>`

func TestReadableTextKeepsMainContent(t *testing.T) {
	u, _ := url.Parse("https://docs.example/ownership")
	text, err := scraper.ReadableText(strings.NewReader(ownershipPage), u)
	gt.NoError(t, err)

	gt.S(t, text).Contains("there can only be one owner at a time.")
	gt.S(t, text).Contains("the value is dropped")
	gt.S(t, text).Contains("never outlive the data they point to.")
	gt.S(t, text).NotContains("track()")
	gt.S(t, text).NotContains("Copyright Example Corp")
	gt.S(t, text).NotContains("Documentation index")
}

func TestReadableTextCollapsesWhitespace(t *testing.T) {
	text, err := scraper.ReadableText(strings.NewReader(ownershipPage), nil)
	gt.NoError(t, err)

	for _, line := range strings.Split(text, "\n") {
		gt.True(t, strings.TrimSpace(line) == line)
		gt.False(t, strings.Contains(line, "  "))
		gt.True(t, line != "")
	}
}

func TestReadableTextEmpty(t *testing.T) {
	_, err := scraper.ReadableText(strings.NewReader(`<html><body><script>x()</script></body></html>`), nil)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, domain.ErrTagExtract))
}
