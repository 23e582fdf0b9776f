package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMenuItemSetStock(t *testing.T) {
	item := MenuItem{ID: "d1", Name: "Cappuccino", Price: 350}

	item.SetStock(3)
	assert.True(t, item.IsAvailable)
	require.NoError(t, ValidateMenuItem(&item))

	item.SetStock(0)
	assert.False(t, item.IsAvailable)
	require.NoError(t, ValidateMenuItem(&item))

	item.IsAvailable = true
	assert.Error(t, ValidateMenuItem(&item))
}

func TestValidateMenuItem(t *testing.T) {
	valid := MenuItem{ID: "b1", Name: "Breakfast", Price: 1360, Stock: 1, IsAvailable: true,
		Modifiers: []Modifier{{Label: "Eggs", Kind: ModifierSingle, Options: []string{"Fried"}}}}
	require.NoError(t, ValidateMenuItem(&valid))

	noPrice := valid
	noPrice.Price = 0
	assert.Error(t, ValidateMenuItem(&noPrice))

	badKind := valid
	badKind.Modifiers = []Modifier{{Label: "Eggs", Kind: "radio"}}
	assert.Error(t, ValidateMenuItem(&badKind))
}

func TestMenuItemModifier(t *testing.T) {
	item := MenuItem{Modifiers: []Modifier{{Label: "Extras", Kind: ModifierMulti, Options: []string{"Avocado (+ KSh 100)"}}}}

	m, ok := item.Modifier("Extras")
	require.True(t, ok)
	assert.True(t, m.HasOption("Avocado (+ KSh 100)"))
	assert.False(t, m.HasOption("Bacon"))

	_, ok = item.Modifier("Sauce")
	assert.False(t, ok)
}

func TestOrderHelpers(t *testing.T) {
	o := Order{ID: "abcdef123456"}
	assert.True(t, o.IsServiceOnly())
	assert.Equal(t, "abcdef", o.ShortID(6))
	assert.Equal(t, "abcdef123456", o.ShortID(40))
	assert.False(t, o.FeedbackClosed())

	o.FeedbackSkipped = true
	assert.True(t, o.FeedbackClosed())

	assert.Equal(t, 1690, LinesTotal([]OrderLine{{Price: 1340}, {Price: 350}}))
}

func TestMenuItemHasTag(t *testing.T) {
	item := MenuItem{ID: "b1", Tags: []string{"quick", "popular"}}
	assert.True(t, item.HasTag("popular"))
	assert.False(t, item.HasTag("vegan"))
	assert.False(t, (&MenuItem{}).HasTag("popular"))
}
