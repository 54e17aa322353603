package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidTemplatesLoad(t *testing.T) {
	lib, problems, err := New([]*Template{sampleTemplate()})
	require.NoError(t, err)
	assert.Empty(t, problems)
	assert.Equal(t, 1, lib.Len())

	tmpl, ok := lib.Get("find_customer")
	require.True(t, ok)
	assert.Equal(t, "find_customer", tmpl.ID)
}

func TestNew_InvalidTemplateReportedButOthersLoad(t *testing.T) {
	valid := sampleTemplate()
	invalid := sampleTemplate()
	invalid.ID = "broken"
	invalid.Description = ""

	lib, problems, err := New([]*Template{valid, invalid})
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0].Error(), "broken")
	assert.Equal(t, 1, lib.Len())

	_, ok := lib.Get("broken")
	assert.False(t, ok)
}

func TestNew_DuplicateIDRejected(t *testing.T) {
	first := sampleTemplate()
	second := sampleTemplate()

	lib, problems, err := New([]*Template{first, second})
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0].Error(), "duplicate")
	assert.Equal(t, 1, lib.Len())
}

func TestLibrary_All_PreservesLoadOrder(t *testing.T) {
	a := sampleTemplate()
	a.ID = "a"
	b := sampleTemplate()
	b.ID = "b"

	lib, _, err := New([]*Template{a, b})
	require.NoError(t, err)

	ids := make([]string, 0, 2)
	for _, tmpl := range lib.All() {
		ids = append(ids, tmpl.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}
