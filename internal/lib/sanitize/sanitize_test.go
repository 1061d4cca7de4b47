package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContent(t *testing.T) {
	t.Parallel()

	p := New()

	tests := []struct {
		name         string
		in           string
		contains     []string
		notContains  []string
		wantExactly  string
		checkExactly bool
	}{
		{
			name:         "plain paragraph kept",
			in:           "<p>Hello <strong>world</strong></p>",
			wantExactly:  "<p>Hello <strong>world</strong></p>",
			checkExactly: true,
		},
		{
			name:        "script removed",
			in:          `<p>hi</p><script>alert(1)</script>`,
			contains:    []string{"<p>hi</p>"},
			notContains: []string{"<script", "alert(1)"},
		},
		{
			name:        "event handler removed",
			in:          `<p onclick="steal()">x</p>`,
			contains:    []string{"<p>x</p>"},
			notContains: []string{"onclick"},
		},
		{
			name:        "javascript link dropped",
			in:          `<a href="javascript:alert(1)">x</a>`,
			notContains: []string{"javascript:"},
		},
		{
			name:     "external link hardened",
			in:       `<a href="https://example.com">x</a>`,
			contains: []string{`href="https://example.com"`, `target="_blank"`, "noreferrer", "nofollow"},
		},
		{
			name:        "iframe removed",
			in:          `<iframe src="https://evil.example"></iframe>text`,
			contains:    []string{"text"},
			notContains: []string{"iframe"},
		},
		{
			name:         "empty",
			in:           "   ",
			wantExactly:  "",
			checkExactly: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Content(tt.in)
			if tt.checkExactly {
				assert.Equal(t, tt.wantExactly, got)
			}
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestComment_StripsAllMarkup(t *testing.T) {
	t.Parallel()

	p := New()

	assert.Equal(t, "nice post", p.Comment("<b>nice</b> post<script>x()</script>"))
	assert.Equal(t, "", p.Comment("<script>only()</script>"))
	assert.Equal(t, "Title", p.Text("  <h1>Title</h1> "))
}

func TestContent_Idempotent(t *testing.T) {
	t.Parallel()

	p := New()
	in := `<p>a <a href="https://example.com">link</a></p><img src="https://example.com/x.png" alt="x">`

	once := p.Content(in)
	assert.Equal(t, once, p.Content(once))
}
