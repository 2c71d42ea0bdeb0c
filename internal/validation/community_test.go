package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommunity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		cname    string
		desc     string
		hashtags []string
		wantErr  bool
	}{
		{"Valid", "Valorant Squad", "5-stacks every night", []string{"fps"}, false},
		{"Too Short", "ab", "", nil, true},
		{"Too Long", strings.Repeat("x", 81), "", nil, true},
		{"Reserved", "Admin", "", nil, true},
		{"Long Description", "Raiders", strings.Repeat("d", 2001), nil, true},
		{"Too Many Hashtags", "Raiders", "", make([]string, 11), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommunity(tt.cname, tt.desc, tt.hashtags)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateZepchat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateZepchat("Best loadout?", "Looking for ideas"))
	assert.Error(t, ValidateZepchat("   ", "body"))
	assert.Error(t, ValidateZepchat("Heading", ""))
	assert.Error(t, ValidateZepchat(strings.Repeat("h", 201), "body"))
}

func TestValidateHeading(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateHeading("Patch 7.2 tier list"))
	assert.NoError(t, ValidateHeading(strings.Repeat("é", 200)))
	assert.ErrorContains(t, ValidateHeading(" \t"), "heading is required")
	assert.ErrorContains(t, ValidateHeading(strings.Repeat("h", 201)), "must not exceed 200")
}

func TestValidateDisplayName(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateDisplayName("Alice"))
	assert.Error(t, ValidateDisplayName("  "))
	assert.Error(t, ValidateDisplayName(strings.Repeat("é", 61)))
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "alice@x.com", NormalizeEmail("  Alice@X.com "))
}
