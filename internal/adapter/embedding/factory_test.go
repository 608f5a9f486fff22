package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviders(t *testing.T) {
	t.Setenv("EXAMPREP_TEST_KEY", "secret")

	for _, p := range Providers {
		t.Run(p, func(t *testing.T) {
			e, err := New(p, "EXAMPREP_TEST_KEY", "some-model", Prefixes{}, Options{Dimension: 16})
			require.NoError(t, err)
			require.NotNil(t, e)
			assert.Positive(t, e.Dimension())
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	e, err := New("deepseek", "", "m", Prefixes{}, Options{})
	assert.Error(t, err)
	assert.Nil(t, e)
}

func TestNewMissingKeyReturnsNilInterface(t *testing.T) {
	t.Setenv("EXAMPREP_MISSING_KEY", "")

	e, err := New("gemini", "EXAMPREP_MISSING_KEY", "text-embedding-004", Prefixes{}, Options{})
	assert.Error(t, err)
	assert.Nil(t, e)
}
