package archive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_SmallPayloadStoredRaw(t *testing.T) {
	c, err := NewCodec(64)
	require.NoError(t, err)
	defer c.Close()

	payload, algo := c.Encode([]byte("JD001 01-01 101\n"))
	assert.Equal(t, AlgoNone, algo)
	assert.Equal(t, "JD001 01-01 101\n", string(payload))
}

func TestCodec_LargePayloadRoundTrip(t *testing.T) {
	c, err := NewCodec(64)
	require.NoError(t, err)
	defer c.Close()

	manifest := bytes.Repeat([]byte("JD001 01-01 101\n"), 500)

	payload, algo := c.Encode(manifest)
	require.Equal(t, AlgoZstd, algo)
	assert.Less(t, len(payload), len(manifest))

	out, err := c.Decode(payload, algo)
	require.NoError(t, err)
	assert.Equal(t, manifest, out)
}

func TestCodec_DecodeRejectsUnknownAlgo(t *testing.T) {
	c := MustCodec()
	defer c.Close()

	_, err := c.Decode([]byte("x"), Algo("lz4"))
	assert.Error(t, err)
}

func TestCodec_DecodeCorruptPayload(t *testing.T) {
	c := MustCodec()
	defer c.Close()

	_, err := c.Decode([]byte("not zstd at all"), AlgoZstd)
	assert.Error(t, err)
}
