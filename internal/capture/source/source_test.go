package source

import (
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktlive/internal/core"
)

func TestRecomputeSize(t *testing.T) {
	tests := []struct {
		name     string
		bufferMB int
		snapLen  int
		pageSize int
	}{
		{"default snaplen", 8, 65535, 4096},
		{"small snaplen", 2, 128, 4096},
		{"jumbo", 64, 9000, 4096},
		{"tiny buffer", 1, 65535, 4096},
		{"large pages", 8, 65535, 65536},
		{"frame over block limit", 16, 5 << 20, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frameSize, blockSize, numBlocks, err := recomputeSize(tt.bufferMB, tt.snapLen, tt.pageSize)
			require.NoError(t, err)

			assert.Zero(t, frameSize%tpacketAlignment, "frame size aligned")
			assert.GreaterOrEqual(t, frameSize, tt.snapLen+tpacketHdrLen)
			assert.Zero(t, blockSize%tt.pageSize, "block size page aligned")
			assert.Zero(t, blockSize%frameSize, "block size holds whole frames")
			if frameSize <= maxBlockSize {
				assert.LessOrEqual(t, blockSize, maxBlockSize)
			}
			assert.GreaterOrEqual(t, blockSize, frameSize)
			assert.GreaterOrEqual(t, numBlocks, 1)
		})
	}
}

func TestRecomputeSizeDefaultSnapLen(t *testing.T) {
	frameSize, blockSize, numBlocks, err := recomputeSize(8, 65535, 4096)
	require.NoError(t, err)

	// 65535+52 aligned to 16 is 65600; lcm with 4096 is far above 4 MiB, so
	// frames are padded to 17 pages and 60 of them fill a block.
	assert.Equal(t, 69632, frameSize)
	assert.Equal(t, 60*69632, blockSize)
	assert.Equal(t, 2, numBlocks)
}

func TestRecomputeSizeInvalid(t *testing.T) {
	_, _, _, err := recomputeSize(0, 1500, 4096)
	assert.Error(t, err)
	_, _, _, err = recomputeSize(8, 0, 4096)
	assert.Error(t, err)
	_, _, _, err = recomputeSize(8, 1500, 1000)
	assert.Error(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Config{Interface: "lo", Backend: "pfring"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSourceUnavailable))
	assert.Equal(t, core.ErrSourceUnavailable, errors.Cause(err))
}

func TestInterfaceWithIP(t *testing.T) {
	name, err := interfaceWithIP(net.ParseIP("127.0.0.1"))
	if err != nil {
		t.Skip("no loopback address configured")
	}
	assert.NotEmpty(t, name)

	_, err = interfaceWithIP(net.ParseIP("203.0.113.254"))
	assert.Error(t, err)
}
