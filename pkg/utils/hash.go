package utils

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// FingerprintChunkSize is the number of bytes sampled from each region of a
// file when computing a content fingerprint.
const FingerprintChunkSize = 64 * 1024

// FingerprintFile computes a content fingerprint of a file without ever
// loading the whole file into memory. The digest covers the file size plus
// the first, middle and last chunks; files smaller than three chunks are
// hashed in full. Equal fingerprints on equal-size files are treated as
// content identity for duplicate grouping.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat for fingerprint: %w", err)
	}
	size := info.Size()

	d := xxhash.New()

	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(size))
	d.Write(sizeBuf[:])

	if size <= 3*FingerprintChunkSize {
		if _, err := io.Copy(d, f); err != nil {
			return "", fmt.Errorf("hash content: %w", err)
		}
		return fmt.Sprintf("%016x", d.Sum64()), nil
	}

	// Sample three regions: head, middle, tail.
	offsets := []int64{0, size / 2, size - FingerprintChunkSize}
	buf := make([]byte, FingerprintChunkSize)
	for _, off := range offsets {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return "", fmt.Errorf("seek to %d: %w", off, err)
		}
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			return "", fmt.Errorf("read chunk at %d: %w", off, err)
		}
		d.Write(buf[:n])
	}

	return fmt.Sprintf("%016x", d.Sum64()), nil
}
