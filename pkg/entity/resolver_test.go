package entity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(filepath.Join("testdata", "lookups.yaml"), zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestNewResolver_LoadsIndexes(t *testing.T) {
	r := newTestResolver(t)

	loc, ok := r.Location("366")
	require.True(t, ok)
	assert.Equal(t, "KS Verksgata", loc.DBName)
	assert.Equal(t, "Verksgata", loc.DisplayName)
	assert.Equal(t, 761, loc.CustomerID)
	assert.Equal(t, StatusActive, loc.Status)

	// Numeric and quoted ruids both load.
	_, ok = r.Location("412")
	assert.True(t, ok)
}

func TestNewResolver_RejectsMalformedLocation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lookups.yaml")
	bad := "locations:\n  oslo:\n    - name: Missing Ruid\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

	_, err := NewResolver(path, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing ruid")
}

func TestResolveLocations(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name     string
		question string
		ruid     string
	}{
		{"display name", "revenue at Verksgata today", "366"},
		{"brand prefix stripped from db name", "how is kvadrat doing", "371"},
		{"chain prefix stripped", "sales at majorstuen", "412"},
		{"planday department alias", "hours for verksgata avd", "366"},
		{"explicit override alias", "numbers for kvadrat senter please", "371"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := r.ResolveLocations(tt.question)
			require.NotEmpty(t, matches)
			assert.Equal(t, tt.ruid, matches[0].RUID)
		})
	}
}

func TestResolveLocations_NoMentionIsEmpty(t *testing.T) {
	r := newTestResolver(t)
	assert.Empty(t, r.ResolveLocations("total revenue by category last month"))
}

func TestResolveProducts(t *testing.T) {
	r := newTestResolver(t)

	matches := r.ResolveProducts("how many kanelsnurr did we sell")
	require.Len(t, matches, 1)
	assert.Equal(t, "kanelsnurr", matches[0].Name)
	assert.Equal(t, "Boller", matches[0].Category)

	// Category from "Category > Sub" form.
	matches = r.ResolveProducts("cortado sales")
	require.Len(t, matches, 1)
	assert.Equal(t, "Varm drikke", matches[0].Category)
}

func TestResolveProducts_PluralAlias(t *testing.T) {
	r := newTestResolver(t)

	// "Croissant" comes from top_products; the plural form is derived.
	matches := r.ResolveProducts("how many croissants sold yesterday")
	require.Len(t, matches, 1)
	assert.Equal(t, "Croissant", matches[0].Name)
}

func TestFormatLocationHints(t *testing.T) {
	r := newTestResolver(t)

	assert.Empty(t, r.FormatLocationHints(nil))

	matches := r.ResolveLocations("sales at verksgata")
	hints := r.FormatLocationHints(matches)
	assert.Contains(t, hints, "RESOLVED LOCATIONS")
	assert.Contains(t, hints, "ru.name = 'KS Verksgata'")
	assert.Contains(t, hints, "WHERE o.revenue_unit_id = '366' AND o.customer_id = 761")
}

func TestFormatLocationHints_MergedNote(t *testing.T) {
	r := newTestResolver(t)

	matches := r.ResolveLocations("numbers for forus")
	require.NotEmpty(t, matches)
	hints := r.FormatLocationHints(matches)
	assert.Contains(t, hints, "Merged into KS Verksgata (ruid 366)")
}

func TestFormatProductHints(t *testing.T) {
	r := newTestResolver(t)

	assert.Empty(t, r.FormatProductHints(nil))

	matches := r.ResolveProducts("skolebolle revenue")
	hints := r.FormatProductHints(matches)
	assert.Contains(t, hints, "RESOLVED PRODUCTS")
	assert.Contains(t, hints, "ol.article_name ILIKE '%skolebolle%'")
}
