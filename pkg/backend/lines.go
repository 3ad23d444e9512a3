package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// readChunkSize is the buffer size used when streaming blob content.
const readChunkSize = 32 * 1024

// CountLines returns the number of '\n' bytes in data, the way wc -l counts.
// A trailing line without a terminator is not counted.
func CountLines(data []byte) int64 {
	return int64(bytes.Count(data, []byte{'\n'}))
}

// CountLinesReader counts line terminators in everything read from r.
func CountLinesReader(r io.Reader) (int64, error) {
	buf := make([]byte, readChunkSize)

	var total int64

	for {
		n, err := r.Read(buf)
		total += CountLines(buf[:n])

		if errors.Is(err, io.EOF) {
			return total, nil
		}

		if err != nil {
			return total, fmt.Errorf("read blob content: %w", err)
		}
	}
}
