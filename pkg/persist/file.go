package persist

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// tempPattern is the name pattern of in-flight writes, next to the target.
const tempPattern = ".*.tmp"

// defaultFileMode is the mode of newly created state files.
const defaultFileMode os.FileMode = 0o644

// ErrCorrupt is returned by ReadFile when the file was read but could not be
// decoded.
var ErrCorrupt = errors.New("corrupt state file")

// WriteFile encodes state into path atomically: the data goes to a temporary
// file in the same directory which is synced and renamed over path. Readers
// never observe a partial file. An existing file keeps its permissions; a new
// one is created 0644.
func WriteFile(path string, codec Codec, state any) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	mode, err := fileMode(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+tempPattern)
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	err = tmp.Chmod(mode)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("chmod state file: %w", err)
	}

	err = writeAndSync(tmp, codec, state)
	if err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

func fileMode(path string) (os.FileMode, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultFileMode, nil
	}

	if err != nil {
		return 0, fmt.Errorf("stat state file: %w", err)
	}

	return info.Mode().Perm(), nil
}

func writeAndSync(f *os.File, codec Codec, state any) error {
	err := codec.Encode(f, state)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("encode state: %w", err)
	}

	err = f.Sync()
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("sync state file: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close state file: %w", err)
	}

	return nil
}

// ReadFile decodes path into state, which must be a pointer. A missing file
// returns an error matching os.ErrNotExist, content that does not decode one
// matching ErrCorrupt. Other errors are I/O failures.
func ReadFile(path string, codec Codec, state any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read state file: %w", err)
	}

	err = codec.Decode(bytes.NewReader(data), state)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return nil
}

// Exists reports whether path exists. Errors other than not-exist are returned.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("stat state file: %w", err)
	}

	return true, nil
}
