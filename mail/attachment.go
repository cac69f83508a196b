package mail

import (
	"bytes"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DefaultMimeType is used when an attachment type cannot be guessed.
const DefaultMimeType = "application/octet-stream"

// Attachment is a file attached to an email. Open returns the raw content.
type Attachment interface {
	Filename() string
	MimeType() string
	Open() (io.ReadCloser, error)
}

type memoryAttachment struct {
	name     string
	mimeType string
	content  []byte
}

// NewAttachment creates an in-memory attachment.
func NewAttachment(name, mimeType string, content []byte) Attachment {
	return &memoryAttachment{
		name:     name,
		mimeType: guessMimeType(name, mimeType),
		content:  content,
	}
}

func (a *memoryAttachment) Filename() string { return a.name }
func (a *memoryAttachment) MimeType() string { return a.mimeType }

func (a *memoryAttachment) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(a.content)), nil
}

type fileAttachment struct {
	path     string
	mimeType string
}

// NewFileAttachment creates an attachment read from path on every Open.
func NewFileAttachment(path, mimeType string) Attachment {
	return &fileAttachment{
		path:     path,
		mimeType: guessMimeType(path, mimeType),
	}
}

func (a *fileAttachment) Filename() string { return filepath.Base(a.path) }
func (a *fileAttachment) MimeType() string { return a.mimeType }

func (a *fileAttachment) Open() (io.ReadCloser, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open attachment %q", a.path)
	}
	return f, nil
}

func guessMimeType(name, mimeType string) string {
	if mimeType != "" {
		return mimeType
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return DefaultMimeType
}
