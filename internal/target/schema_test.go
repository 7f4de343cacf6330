package target

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaJSON_ContainsExpectedFields(t *testing.T) {
	assert := require.New(t)

	out, err := SchemaJSON()
	assert.NoError(err)
	assert.Contains(out, "\"targets\"")
	assert.Contains(out, "AgentV Target Configuration")
}

func TestValidate_Accepts(t *testing.T) {
	assert := require.New(t)

	f := File{Targets: []Config{{Name: "demo", Kind: "anthropic"}}}
	assert.NoError(Validate(f))
}
