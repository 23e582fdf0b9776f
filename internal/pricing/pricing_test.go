package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartserve/internal/models"
)

func breakfast() *models.MenuItem {
	return &models.MenuItem{
		ID:    "b1",
		Name:  "Full Java Breakfast Combo",
		Price: 1360,
		Modifiers: []models.Modifier{
			{Label: "Eggs Style", Kind: models.ModifierSingle, Options: []string{"Scrambled", "No Eggs (- KSh 50)"}},
			{Label: "Toast: Preparation", Kind: models.ModifierSingle, Options: []string{"Toasted (Standard)", "Butter Glazed Toasted (+ KSh 30)"}},
			{Label: "Add Extras", Kind: models.ModifierMulti, Options: []string{"Extra 2 Eggs (+ KSh 120)", "Extra Bacon (+ KSh 200)"}},
		},
	}
}

func TestDelta(t *testing.T) {
	testCases := []struct {
		option string
		want   int
	}{
		{"No Eggs (- KSh 50)", -50},
		{"Butter Glazed Toasted (+ KSh 30)", 30},
		{"Double (+KSh 100)", 100},
		{"Extra Honey (+ ksh 30)", 30},
		{"Strong (Extra Ginger) (+ KSh 20)", 20},
		{"Scrambled", 0},
		{"Fried (Over Easy)", 0},
		{"(+ KSh )", 0},
		{"(* KSh 40)", 0},
		{"", 0},
		{"Huge (+ KSh 999999999999999999999999)", 0},
		{"Fullwidth (＋ KSh 15)", 15},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, Delta(tc.option), "Delta(%q)", tc.option)
	}
}

func TestLineTotal(t *testing.T) {
	selected := models.Selection{
		"Eggs Style":         {"No Eggs (- KSh 50)"},
		"Toast: Preparation": {"Butter Glazed Toasted (+ KSh 30)"},
	}
	assert.Equal(t, 1340, LineTotal(1360, selected))

	multi := models.Selection{
		"Add Extras": {"Extra 2 Eggs (+ KSh 120)", "Extra Bacon (+ KSh 200)"},
	}
	assert.Equal(t, 1680, LineTotal(1360, multi))

	assert.Equal(t, 1360, LineTotal(1360, nil))
}

func TestLineTotal_ClampsAtZero(t *testing.T) {
	selected := models.Selection{
		"Size":  {"Smaller (- KSh 100)"},
		"Extra": {"No Toast (- KSh 50)"},
	}
	assert.Equal(t, 0, LineTotal(120, selected))
}

func TestQuote(t *testing.T) {
	item := breakfast()

	price, err := Quote(item, models.Selection{
		"Eggs Style":         {"No Eggs (- KSh 50)"},
		"Toast: Preparation": {"Butter Glazed Toasted (+ KSh 30)"},
		"Add Extras":         {"Extra Bacon (+ KSh 200)"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1540, price)
}

func TestQuote_RejectsInvalidSelections(t *testing.T) {
	item := breakfast()

	testCases := []struct {
		name     string
		selected models.Selection
		want     error
	}{
		{"unknown group", models.Selection{"Sauce": {"Ketchup"}}, ErrUnknownModifier},
		{"unknown option", models.Selection{"Eggs Style": {"Raw"}}, ErrUnknownOption},
		{"two singles", models.Selection{"Eggs Style": {"Scrambled", "No Eggs (- KSh 50)"}}, ErrTooManyOptions},
		{"duplicate", models.Selection{"Add Extras": {"Extra Bacon (+ KSh 200)", "Extra Bacon (+ KSh 200)"}}, ErrDuplicateOption},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Quote(item, tc.selected)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFormatKSh(t *testing.T) {
	assert.Equal(t, "KSh 1,340", FormatKSh(1340))
	assert.Equal(t, "KSh 150", FormatKSh(150))
	assert.Equal(t, "KSh 1,234,567", FormatKSh(1234567))
}
