package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	data, err := Marshal(&samplePayload{ID: "1", Name: "guild"})
	require.NoError(t, err)

	var decoded samplePayload
	require.NoError(t, Unmarshal(data, &decoded))
	assert.Equal(t, samplePayload{ID: "1", Name: "guild"}, decoded)
}

func TestRemarshalTypedSource(t *testing.T) {
	source := &samplePayload{ID: "1", Name: "guild"}

	var target samplePayload
	require.NoError(t, Remarshal(source, &target))
	assert.Equal(t, *source, target)
}

func TestRemarshalGenericSource(t *testing.T) {
	// Cached payloads come back as generic maps after a JSON round trip.
	source := map[string]interface{}{"id": "1", "name": "guild"}

	var target samplePayload
	require.NoError(t, Remarshal(source, &target))
	assert.Equal(t, samplePayload{ID: "1", Name: "guild"}, target)
}

func TestRemarshalNilSource(t *testing.T) {
	var target samplePayload
	assert.Error(t, Remarshal(nil, &target))
}
