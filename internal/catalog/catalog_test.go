package catalog

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	t.Parallel()

	c, err := Load()
	require.NoError(t, err)

	partners := c.Partners()
	require.Len(t, partners, 4)
	assert.Equal(t, "Hebe", partners[0].Name)
	assert.Equal(t, 15, partners[0].DiscountPercent)
	assert.Equal(t, "8", partners[1].Required().String())
	assert.Equal(t, "Żabka", partners[2].Name)

	assert.Equal(t, []string{"Mehmet K.", "Anna W.", "Piotr B.", "Kasia M.", "Tomasz L."}, c.Couriers())

	points := c.CollectionPoints()
	require.Len(t, points, 5)
	for i, p := range points {
		assert.Equal(t, strconv.Itoa(i+1), p.ID)
		assert.True(t, strings.HasSuffix(p.Address, ", Warsaw"), p.Address)
		assert.NotEmpty(t, p.OpeningHours)
	}
	assert.InDelta(t, 52.1884, points[0].Lat, 1e-9)

	for _, name := range []string{PageAbout, PageBiodiesel, PageGlycerin} {
		page, ok := c.Page(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, page.Title)
		assert.NotContains(t, page.Content, "\n")
	}

	_, ok := c.Page("missing")
	assert.False(t, ok)
}

func TestLoad_ReturnsCopies(t *testing.T) {
	t.Parallel()

	c, err := Load()
	require.NoError(t, err)

	partners := c.Partners()
	partners[0].Name = "mutated"
	assert.Equal(t, "Hebe", c.Partners()[0].Name)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", "partners: ["},
		{"no partners", "couriers: [a]"},
		{"no couriers", "partners: [{name: X, discount_percent: 5, required_liters: 1}]"},
		{"zero threshold", "couriers: [a]\npartners: [{name: X, discount_percent: 5, required_liters: 0}]"},
		{"discount over 100", "couriers: [a]\npartners: [{name: X, discount_percent: 150, required_liters: 1}]"},
		{"point without id", "couriers: [a]\npartners: [{name: X, discount_percent: 5, required_liters: 1}]\ncollection_points: [{name: P}]"},
		{"duplicate point id", "couriers: [a]\npartners: [{name: X, discount_percent: 5, required_liters: 1}]\ncollection_points: [{id: \"1\", name: P}, {id: \"1\", name: Q}]"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
