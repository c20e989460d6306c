package docindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/bpcompile/pkg/cratedoc"
)

func segments(key string) []string {
	return strings.Split(key, "::")
}

const sampleDocument = `{
  "items": {
    "config::Config::new": {
      "kind": "function",
      "signature": {
        "inputs": [],
        "output": {"kind": "path", "path": ["config", "Config"]}
      }
    },
    "config::Config": {
      "kind": "struct"
    },
    "config::Pool": {
      "kind": "struct"
    },
    "config::ConnectError": {
      "kind": "enum"
    }
  },
  "trait_impls": {
    "config::Config": {"Send": true, "Sync": true, "Clone": false}
  }
}`

func TestDecodeParsesDocument(t *testing.T) {
	doc, err := Decode([]byte(sampleDocument))
	require.NoError(t, err)
	assert.Len(t, doc.Items, 4)
	assert.True(t, doc.TraitImpls["config::Config"]["Send"])
	assert.False(t, doc.TraitImpls["config::Config"]["Clone"])
}

func TestBuildProducesQueryableIndex(t *testing.T) {
	doc, err := Decode([]byte(sampleDocument))
	require.NoError(t, err)

	idx, err := doc.Build()
	require.NoError(t, err)

	sig, ok := idx.LookupItem(segments("config::Config::new"))
	require.True(t, ok)
	assert.Equal(t, cratedoc.ItemFunction, sig.Kind)
	require.NotNil(t, sig.Signature)
	assert.Equal(t, cratedoc.ExprPath, sig.Signature.Output.Kind)

	assert.True(t, idx.Implements("config::Config", "Send"))
	assert.False(t, idx.Implements("config::Config", "Clone"))
	assert.False(t, idx.Implements("config::Pool", "Send"))
}

func TestBuildRejectsFunctionWithoutSignature(t *testing.T) {
	doc, err := Decode([]byte(`{"items": {"broken::fn": {"kind": "function"}}}`))
	require.NoError(t, err)

	_, err = doc.Build()
	assert.Error(t, err)
}

func TestToTypeExprHandlesNestedShapes(t *testing.T) {
	doc, err := Decode([]byte(`{
		"items": {
			"pool::borrow": {
				"kind": "function",
				"signature": {
					"inputs": [
						{"kind": "reference", "inner": {"kind": "path", "path": ["Pool"]}, "is_static": true}
					],
					"output": {"kind": "tuple", "tuple": [
						{"kind": "slice", "inner": {"kind": "primitive", "primitive": "u8"}},
						{"kind": "generic", "generic": "T"}
					]}
				}
			}
		}
	}`))
	require.NoError(t, err)

	idx, err := doc.Build()
	require.NoError(t, err)

	sig, ok := idx.LookupItem(segments("pool::borrow"))
	require.True(t, ok)
	require.NotNil(t, sig.Signature)

	input := sig.Signature.Inputs[0]
	assert.Equal(t, cratedoc.ExprReference, input.Kind)
	assert.True(t, input.IsStatic)

	output := sig.Signature.Output
	assert.Equal(t, cratedoc.ExprTuple, output.Kind)
	assert.Equal(t, cratedoc.ExprSlice, output.Tuple[0].Kind)
	assert.Equal(t, cratedoc.ExprGeneric, output.Tuple[1].Kind)
}
