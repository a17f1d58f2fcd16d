package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "Whole response is JSON",
			text:   `{"title":"T"}`,
			want:   `{"title":"T"}`,
			wantOK: true,
		},
		{
			name:   "Wrapped in prose and a code fence",
			text:   "Here you go:\n```json\n{\"a\": 1}\n```\nThanks",
			want:   `{"a": 1}`,
			wantOK: true,
		},
		{
			name:   "Nested objects",
			text:   `x {"a": {"b": {"c": 1}}} y`,
			want:   `{"a": {"b": {"c": 1}}}`,
			wantOK: true,
		},
		{
			name:   "Braces inside string literals",
			text:   `{"body": "use } and { freely", "n": 1} trailing }`,
			want:   `{"body": "use } and { freely", "n": 1}`,
			wantOK: true,
		},
		{
			name:   "Escaped quotes inside strings",
			text:   `{"body": "say \"}\" please"}`,
			want:   `{"body": "say \"}\" please"}`,
			wantOK: true,
		},
		{
			name:   "First balanced candidate is not JSON",
			text:   `see {placeholder} then {"a": true}`,
			want:   `{"a": true}`,
			wantOK: true,
		},
		{
			name:   "Stray quote in prose before the object",
			text:   `He said "{" then {"a":1}`,
			want:   `{"a":1}`,
			wantOK: true,
		},
		{
			name:   "Two objects, first wins",
			text:   `{"a":1} {"b":2}`,
			want:   `{"a":1}`,
			wantOK: true,
		},
		{
			name:   "No object",
			text:   "nothing to see",
			wantOK: false,
		},
		{
			name:   "Never closed",
			text:   `{"a": {"b": 1}`,
			want:   `{"b": 1}`,
			wantOK: true,
		},
		{
			name:   "Brace inside a prose quote opens a string for later braces",
			text:   `"{" x {"a": "}"} {"b":2}`,
			want:   `{"a": "}"}`,
			wantOK: true,
		},
		{
			name:   "Only an unclosed brace",
			text:   `{ unclosed`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindJSONObject(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindJSONObjectManyUnclosedBraces(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "Unclosed braces", text: strings.Repeat("{ ", 200000) + `{"a":1}`},
		{name: "Quoted braces", text: strings.Repeat(`"{`, 200000) + ` {"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindJSONObject(tt.text)
			assert.True(t, ok)
			assert.Equal(t, `{"a":1}`, got)
		})
	}
}

func TestMatchBraces(t *testing.T) {
	ends := matchBraces(`{"a": {"b": 1}`)
	assert.Equal(t, -1, ends[0])
	assert.Equal(t, 13, ends[6])
	assert.Equal(t, -1, ends[1])
}
