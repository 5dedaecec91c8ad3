package source

import (
	"fmt"
)

const (
	tpacketAlignment = 16 // TPACKET_ALIGNMENT
	tpacketHdrLen    = 52 // approximate TPACKET3_HDRLEN
	maxBlockSize     = 4 << 20
)

// recomputeSize fits the AF_PACKET ring into bufferMB megabytes.
//
// PACKET_MMAP requires frameSize to be a multiple of TPACKET_ALIGNMENT and
// blockSize to be a multiple of both the page size and frameSize.
func recomputeSize(bufferMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if bufferMB <= 0 {
		return 0, 0, 0, fmt.Errorf("buffer size must be positive, got %d MB", bufferMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	blockSize = lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		// No exact LCM fits: pad frames to whole pages so any frame count
		// gives a block that is a multiple of both. A single frame larger
		// than maxBlockSize still gets a block of its own.
		frameSize = alignUp(frameSize, pageSize)
		frames := maxBlockSize / frameSize
		if frames < 1 {
			frames = 1
		}
		blockSize = frames * frameSize
	}

	numBlocks = (bufferMB << 20) / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
