package intern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/basecode/internal/intern"
)

func TestInternAssignsMonotoneIDs(t *testing.T) {
	m := intern.New()

	first := m.Intern("hello")
	second := m.Intern("world")

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestInternDeduplicatesEqualValues(t *testing.T) {
	m := intern.New()

	a := m.Intern("shared")
	b := m.Intern("shared")

	assert.Equal(t, a, b)
	assert.Equal(t, 1, m.Count())
}

func TestValueRoundTrips(t *testing.T) {
	m := intern.New()
	id := m.Intern("payload")

	got, ok := m.Value(id)
	require.True(t, ok)
	assert.Equal(t, "payload", got)
}

func TestValueReportsMissingID(t *testing.T) {
	m := intern.New()

	_, ok := m.Value(42)
	assert.False(t, ok)

	_, ok = m.Value(-1)
	assert.False(t, ok)
}

func TestAllPreservesAllocationOrder(t *testing.T) {
	m := intern.New()
	m.Intern("a")
	m.Intern("b")
	m.Intern("a")

	assert.Equal(t, []string{"a", "b"}, m.All())
}

func TestLabelsAreStableAndDistinct(t *testing.T) {
	assert.Equal(t, "_intern_str_lit_3", intern.Label(3))
	assert.Equal(t, "_intern_str_lit_3_data", intern.DataLabel(3))
	assert.NotEqual(t, intern.Label(3), intern.DataLabel(3))
}
