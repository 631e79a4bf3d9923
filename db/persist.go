package db

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/fs"
)

// DatasetFileName is the name a Db's backing item/label records are
// written under inside a deployment's data folder.
const DatasetFileName = "dataset.bin"

// SaveDataset writes items to path as a flat sequence of 64-byte
// ItemLabel records, letting a restarted server rebuild its Db by
// re-inserting and re-preprocessing rather than serializing the
// polynomial coefficients themselves (persisted state is the
// key material and Params; the dataset itself is cheap to replay).
func SaveDataset(path string, items []ItemLabel) error {
	f, err := fs.CreateSecureFile(path)
	if err != nil {
		return fmt.Errorf("dataset: creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, il := range items {
		b, err := il.MarshalBinary()
		if err != nil {
			return fmt.Errorf("dataset: marshal record: %w", err)
		}
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("dataset: writing %s: %w", path, err)
		}
	}
	return w.Flush()
}

// LoadDataset reads back a file written by SaveDataset.
func LoadDataset(path string) ([]ItemLabel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: opening %s: %w", path, err)
	}
	defer f.Close()

	var out []ItemLabel
	r := bufio.NewReader(f)
	buf := make([]byte, ItemLabelSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: dataset record in %s: %v", errs.ErrShort, path, err)
		}
		il, err := UnmarshalItemLabel(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, il)
	}
	return out, nil
}
