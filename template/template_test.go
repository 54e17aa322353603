package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTemplate() *Template {
	return &Template{
		ID:          "find_customer",
		Description: "Look up a customer by id",
		Body:        "SELECT id, name FROM customers WHERE id = :customer_id",
		NLExamples:  []string{"Show customer 123"},
		Parameters: []*Parameter{
			{Name: "customer_id", DataType: "integer", Required: true},
		},
	}
}

func TestPlaceholders_AllSyntaxes(t *testing.T) {
	names := Placeholders("SELECT * FROM t WHERE a = :foo AND b = $bar OR c = {baz}")
	assert.ElementsMatch(t, []string{"foo", "bar", "baz"}, names)
}

func TestPlaceholders_Deduplicates(t *testing.T) {
	names := Placeholders(":foo :foo :foo")
	assert.Equal(t, []string{"foo"}, names)
}

func TestEmbeddingText_Deterministic(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.SemanticTags = &SemanticTags{Action: "find", PrimaryEntity: "customer"}

	first := tmpl.EmbeddingText()
	second := tmpl.EmbeddingText()
	assert.Equal(t, first, second)
	assert.Contains(t, first, "customer id")
}

func TestContentHash_ChangesWithEmbeddingText(t *testing.T) {
	tmpl := sampleTemplate()
	before := tmpl.ContentHash()

	tmpl.Description = "changed description"
	after := tmpl.ContentHash()

	assert.NotEqual(t, before, after)
}

func TestValidate_ValidTemplate(t *testing.T) {
	assert.NoError(t, Validate(sampleTemplate()))
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.Description = ""
	assert.Error(t, Validate(tmpl))
}

func TestValidate_PlaceholderWithoutParameter(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.Body = "SELECT * FROM customers WHERE id = :unknown_param"
	err := Validate(tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown_param")
}

func TestValidate_RequiredParameterWithDefaultRejected(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.Parameters[0].Default = 1
	assert.Error(t, Validate(tmpl))
}

func TestValidate_NestedConditionalBlocksRejected(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.Body = "SELECT * FROM t WHERE 1=1 {if customer_id} AND x {if customer_id} AND y {endif} {endif}"
	err := Validate(tmpl)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverlappingConditionals)
}

func TestValidate_FlatConditionalBlocksAccepted(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.Body = "SELECT * FROM t WHERE 1=1 {if customer_id} AND a = :customer_id {endif}"
	assert.NoError(t, Validate(tmpl))
}

func TestConditionalBlocks_UnmatchedMarker(t *testing.T) {
	_, err := ConditionalBlocks("{if status} AND status = :status")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnmatchedConditional)
}
