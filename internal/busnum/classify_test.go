package busnum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busmate/internal/domain"
)

func TestClassifyNumericWindows(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		category domain.RouteCategory
		valid    bool
	}{
		{"trunk mid", "742", domain.RouteTrunk, true},
		{"branch lower bound", "2000", domain.RouteBranch, true},
		{"branch upper bound", "3999", domain.RouteBranch, true},
		{"above branch window", "4000", domain.RouteUnknown, false},
		{"trunk wins over village at 999", "999", domain.RouteTrunk, true},
		{"village low number", "25", domain.RouteVillage, true},
		{"trunk lower bound", "100", domain.RouteTrunk, true},
		{"village lower bound", "1", domain.RouteVillage, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.valid, got.Valid)
			if !tt.valid {
				assert.NotEmpty(t, got.Reason)
			}
		})
	}
}

func TestClassifyPrefixedShapes(t *testing.T) {
	village := Classify("강남1")
	assert.Equal(t, domain.RouteVillage, village.Category)
	assert.True(t, village.Valid)
	assert.Equal(t, "강남1", village.Number)

	airport := Classify("A1")
	assert.Equal(t, domain.RouteAirport, airport.Category)
	assert.True(t, airport.Valid)

	// Branch prefix shape carries the branch window; a low leading number
	// falls outside it.
	branch := Classify("강남1-1234")
	assert.Equal(t, domain.RouteBranch, branch.Category)
	assert.False(t, branch.Valid)
	assert.Contains(t, branch.Reason, "branch")
}

func TestClassifyNormalizesSeparators(t *testing.T) {
	got := Classify(" 7·4 2 ")
	require.True(t, got.Valid)
	assert.Equal(t, "742", got.Number)
	assert.Equal(t, domain.RouteTrunk, got.Category)
}

func TestClassifyRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "bus", "742A", "a1", "가나다"} {
		got := Classify(input)
		assert.False(t, got.Valid, "input %q", input)
		assert.Equal(t, domain.RouteUnknown, got.Category, "input %q", input)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	first := Classify("강남1")
	second := Classify("강남1")
	assert.Equal(t, first, second)
}

func TestMatchesShape(t *testing.T) {
	assert.True(t, MatchesShape("742"))
	assert.True(t, MatchesShape("1234-5678"))
	assert.True(t, MatchesShape("강남1"))
	assert.True(t, MatchesShape("A1"))
	// Shape match is syntactic only; 4000 has no valid window but is
	// still a recognizable bus-number shape.
	assert.True(t, MatchesShape("4000"))
	assert.False(t, MatchesShape("742A"))
	assert.False(t, MatchesShape("bus"))
}

func TestDigitsFromTranscript(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"742번 버스", "742"},
		{"7 4 2", "742"},
		{"칠사이", "742"},
		{"하나공공", "100"},
		{"버스", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DigitsFromTranscript(tt.input), "input %q", tt.input)
	}
}
