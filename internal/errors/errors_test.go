package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	err := Newf("something broke").Build()

	assert.Equal(t, "something broke", err.Error())
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.False(t, err.Timestamp.IsZero())
}

func TestBuilderFull(t *testing.T) {
	t.Parallel()

	base := stderrors.New("boom")
	err := Newf("wrapped: %w", base).
		Category(CategoryNetwork).
		Component("gbif").
		Context("url", "https://example.org").
		Context("status_code", 503).
		Build()

	assert.Equal(t, "wrapped: boom", err.Error())
	assert.Equal(t, "network", err.GetCategory())
	assert.Equal(t, "gbif", err.Component)
	assert.True(t, Is(err, base))

	ctx := err.GetContext()
	assert.Equal(t, "https://example.org", ctx["url"])
	assert.Equal(t, 503, ctx["status_code"])

	// The copy must not alias the internal map.
	ctx["url"] = "mutated"
	assert.Equal(t, "https://example.org", err.GetContext()["url"])
}

func TestIsMatchesByCategory(t *testing.T) {
	t.Parallel()

	a := Newf("a").Category(CategoryTimeout).Build()
	b := Newf("b").Category(CategoryTimeout).Build()
	c := Newf("c").Category(CategoryDatabase).Build()

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestCategoryOf(t *testing.T) {
	t.Parallel()

	enhanced := Newf("x").Category(CategoryParsing).Build()
	require.Equal(t, CategoryParsing, CategoryOf(enhanced))
	assert.Equal(t, CategoryGeneric, CategoryOf(stderrors.New("plain")))
}

func TestHTTPStatusCategory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategoryConfiguration, HTTPStatusCategory(401))
	assert.Equal(t, CategoryConfiguration, HTTPStatusCategory(403))
	assert.Equal(t, CategoryNotFound, HTTPStatusCategory(404))
	assert.Equal(t, CategoryLimit, HTTPStatusCategory(429))
	assert.Equal(t, CategoryNetwork, HTTPStatusCategory(500))
	assert.Equal(t, CategoryNetwork, HTTPStatusCategory(418))
}
