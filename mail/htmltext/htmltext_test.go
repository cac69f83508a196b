package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "paragraphs become lines",
			html: "<p>Hi</p><p>Bye</p>",
			want: "Hi\nBye",
		},
		{
			name: "inline tags also split",
			html: "<p>Hello <b>world</b></p>",
			want: "Hello \nworld",
		},
		{
			name: "plain text",
			html: "just text",
			want: "just text",
		},
		{
			name: "empty",
			html: "",
			want: "",
		},
		{
			name: "entities decoded",
			html: "<p>Fish &amp; Chips</p>",
			want: "Fish & Chips",
		},
		{
			name: "script and style dropped",
			html: "<style>p{color:red}</style><p>Visible</p><script>alert(1)</script>",
			want: "Visible",
		},
		{
			name: "comments dropped",
			html: "<p>A</p><!-- hidden --><p>B</p>",
			want: "A\nB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Flatten(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
