package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePicksKnownFields(t *testing.T) {
	f := Parse(`{"name":"rig-1","description":"basement rig","host":"rig1.example.com","public_ip":"1.2.3.4","overlay_ip":"10.0.0.4"}`)
	require.NotNil(t, f.Name)
	assert.Equal(t, "rig-1", *f.Name)
	require.NotNil(t, f.Host)
	assert.Equal(t, "rig1.example.com", *f.Host)
	require.NotNil(t, f.PublicIP)
	assert.Equal(t, "1.2.3.4", *f.PublicIP)
}

func TestParseMalformedBlob(t *testing.T) {
	f := Parse(`{not json`)
	assert.Nil(t, f.Name)
	assert.Nil(t, f.Description)
}

func TestParseNullAndMissingFieldsStayNil(t *testing.T) {
	f := Parse(`{"name":null,"host":"h"}`)
	assert.Nil(t, f.Name)
	assert.Nil(t, f.Description)
	require.NotNil(t, f.Host)
	assert.Equal(t, "h", *f.Host)
}

func TestOverrideMergeSemantics(t *testing.T) {
	name := "old-name"
	f := Parse(`{"description":"new desc"}`)

	Override(&name, f.Name)
	assert.Equal(t, "old-name", name)

	desc := "old desc"
	Override(&desc, f.Description)
	assert.Equal(t, "new desc", desc)
}
