package pipeline

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// ChecksumFile returns the xxhash of a file's contents.
func ChecksumFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("checksum %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("checksum %s: %w", path, err)
	}
	return h.Sum64(), nil
}
