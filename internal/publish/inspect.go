package publish

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
)

// DocsPage is what we learn from the generated static page.
type DocsPage struct {
	Title   string
	Scripts int
}

// InspectDocs parses the generated page and reports its title and script count.
func InspectDocs(path string) (DocsPage, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return DocsPage{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to open HTML file").
			WithContext("html_path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	doc, err := html.Parse(f)
	if err != nil {
		return DocsPage{}, errors.WrapError(err, errors.CategoryArtifact, "failed to parse HTML").Build()
	}

	var page DocsPage
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if page.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "script":
				page.Scripts++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return page, nil
}
