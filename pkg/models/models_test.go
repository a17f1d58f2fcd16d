package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePriority(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    Priority
		wantErr bool
	}{
		{name: "low", input: "low", want: PriorityLow},
		{name: "upper case", input: "HIGH", want: PriorityHigh},
		{name: "padded", input: "  medium ", want: PriorityMedium},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown", input: "critical", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePriority(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAppendUnique(t *testing.T) {
	got := AppendUnique([]string{"enhancement"}, "Enhancement", "", "ui", "ui", " api ")
	assert.Equal(t, []string{"enhancement", "ui", "api"}, got)
}

func TestParseRepository(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		wantOwner string
		wantName  string
		wantErr   bool
	}{
		{name: "valid", input: "acme/widgets", wantOwner: "acme", wantName: "widgets"},
		{name: "no slash", input: "acme", wantErr: true},
		{name: "too many parts", input: "acme/widgets/extra", wantErr: true},
		{name: "empty owner", input: "/widgets", wantErr: true},
		{name: "empty name", input: "acme/", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			owner, name, err := ParseRepository(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRepositoryFormat)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.wantOwner, owner)
			assert.Equal(t, tc.wantName, name)
		})
	}
}
