// Package safefile reads user-supplied decks with a size cap. Symbolic
// links are refused so a deck path cannot be pointed at an unrelated file.
package safefile

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// MaxDeckBytes matches the request body cap of the HTTP API.
const MaxDeckBytes = 1 << 20

// ErrTooLarge is returned when the input exceeds the cap.
var ErrTooLarge = errors.New("input too large")

// ReadFileMax reads path after verifying it is not a symlink and that
// the file size does not exceed maxBytes.
func ReadFileMax(path string, maxBytes int64) ([]byte, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("%s is a symbolic link (rejected for security)", path)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes, max %d)", path, ErrTooLarge, info.Size(), maxBytes)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only
	// The file may have grown since Lstat.
	return ReadAllMax(f, maxBytes)
}

// ReadAllMax reads r to EOF, failing once more than maxBytes arrive.
func ReadAllMax(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (max %d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}
