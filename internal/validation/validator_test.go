package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_ValidateGenerateQuizRequest(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		url       string
		wantField bool
	}{
		{name: "valid article", url: "https://en.wikipedia.org/wiki/Alan_Turing"},
		{name: "mixed case host", url: "https://EN.Wikipedia.ORG/wiki/Go"},
		{name: "empty", url: "", wantField: true},
		{name: "whitespace", url: "   ", wantField: true},
		{name: "other host", url: "https://example.com/wiki/Go", wantField: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateGenerateQuizRequest(tt.url)
			if !tt.wantField {
				assert.Empty(t, errs)
				return
			}
			if assert.Len(t, errs, 1) {
				assert.Equal(t, "url", errs[0].Field)
			}
		})
	}
}

func TestValidator_ParseQuizID(t *testing.T) {
	v := NewValidator()

	id, errs := v.ParseQuizID("42")
	assert.Empty(t, errs)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "0", "-3", "1.5"} {
		_, errs := v.ParseQuizID(raw)
		assert.Len(t, errs, 1, "input %q", raw)
	}
}
