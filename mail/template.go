package mail

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Template is a reusable message with a default subject and Markdown content.
type Template struct {
	Name    string
	Subject string
	Content string // Markdown
}

// HTML renders the template content to HTML.
func (t *Template) HTML() (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(t.Content), &buf); err != nil {
		return "", errors.Wrapf(err, "failed to render template %q", t.Name)
	}
	return buf.String(), nil
}
