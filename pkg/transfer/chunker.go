package transfer

import (
	"context"
	"io"
	"os"
)

// chunkBacklog is the bounded backpressure depth between the file reader
// and the transport writer: at most 32 chunks (32 * 256KiB = 8MiB) in
// flight, spec.md §4.6/§5.
const chunkBacklog = 32

// readChunks streams path in ChunkSize pieces onto out, blocking on a
// full channel rather than buffering the whole file in memory. It closes
// out and reports the terminal error (nil on a clean EOF) on errc. The
// caller is responsible for draining out even after requesting
// cancellation, to avoid leaking this goroutine.
func readChunks(ctx context.Context, path string, out chan<- []byte, errc chan<- error, cancelled func() bool) {
	file, err := os.Open(path)
	if err != nil {
		close(out)
		errc <- err
		return
	}
	defer file.Close()

	buf := make([]byte, ChunkSize)
	for {
		if cancelled() {
			close(out)
			errc <- context.Canceled
			return
		}
		n, readErr := file.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunk:
			case <-ctx.Done():
				close(out)
				errc <- ctx.Err()
				return
			}
		}
		if readErr == io.EOF {
			close(out)
			errc <- nil
			return
		}
		if readErr != nil {
			close(out)
			errc <- readErr
			return
		}
	}
}
