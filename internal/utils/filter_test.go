package utils_test

import (
	"testing"

	"github.com/raysh454/a11yscan/internal/utils"
	"github.com/stretchr/testify/assert"
)

const root = "https://example.com/"

func TestNormalizeAndFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		href   string
		want   string
		wantOK bool
	}{
		{"relative path", "/about/", "https://example.com/about", true},
		{"relative no slash", "contact", "https://example.com/contact", true},
		{"absolute same host", "https://example.com/news?utm_medium=mail", "https://example.com/news", true},
		{"host case differs", "https://EXAMPLE.COM/a", "https://example.com/a", true},
		{"fragment only", "#top", "https://example.com/", true},
		{"other host", "https://other.com/about", "", false},
		{"subdomain", "https://www.example.com/", "", false},
		{"mailto", "mailto:hi@example.com", "", false},
		{"tel", "tel:+123", "", false},
		{"javascript", "javascript:void(0)", "", false},
		{"empty", "  ", "", false},
		{"pdf", "/brochure.pdf", "", false},
		{"image upper", "/img/Logo.PNG", "", false},
		{"ftp", "ftp://example.com/file", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := utils.NormalizeAndFilter(root, tt.href)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSameHost(t *testing.T) {
	t.Parallel()

	assert.True(t, utils.SameHost("https://example.com/a", "http://example.com:8080/b"))
	assert.False(t, utils.SameHost("https://example.com/", "https://example.org/"))
	assert.False(t, utils.SameHost("::bad", "https://example.org/"))
}

func TestIsPseudoLink(t *testing.T) {
	t.Parallel()

	assert.True(t, utils.IsPseudoLink(" MailTo:x@y.z"))
	assert.False(t, utils.IsPseudoLink("/telephone"))
}
