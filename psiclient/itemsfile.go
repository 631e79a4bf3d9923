package psiclient

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/fs"
)

// itemSize is the fixed wire size of one item record in a client set file.
const itemSize = 32

// SaveItems writes items to path as a flat sequence of 32-byte records,
// the format gen-client-set produces and query reads.
func SaveItems(path string, items [][32]byte) error {
	f, err := fs.CreateSecureFile(path)
	if err != nil {
		return fmt.Errorf("items: creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, item := range items {
		if _, err := w.Write(item[:]); err != nil {
			return fmt.Errorf("items: writing %s: %w", path, err)
		}
	}
	return w.Flush()
}

// LoadItems reads back a file written by SaveItems.
func LoadItems(path string) ([][32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("items: opening %s: %w", path, err)
	}
	defer f.Close()

	var out [][32]byte
	r := bufio.NewReader(f)
	buf := make([]byte, itemSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: item record in %s: %v", errs.ErrShort, path, err)
		}
		var item [32]byte
		copy(item[:], buf)
		out = append(out, item)
	}
	return out, nil
}
