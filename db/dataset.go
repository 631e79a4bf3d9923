package db

import "crypto/rand"

// RandomDataset generates n random 256-bit (item, label) pairs, useful for
// load-testing a deployment and for the gen-client-set CLI subcommand
// that produces a client query set overlapping a fraction of
// a server's dataset.
func RandomDataset(n int) ([]ItemLabel, error) {
	out := make([]ItemLabel, n)
	for i := range out {
		if _, err := rand.Read(out[i].Item[:]); err != nil {
			return nil, err
		}
		if _, err := rand.Read(out[i].Label[:]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// OverlappingQuerySet returns k items drawn from dataset (a true-positive
// subset the client should expect a label for) plus extra random
// non-members, for exercising recall against a specific Db.
func OverlappingQuerySet(dataset []ItemLabel, k, extra int) ([][32]byte, error) {
	out := make([][32]byte, 0, k+extra)
	for i := 0; i < k && i < len(dataset); i++ {
		out = append(out, dataset[i].Item)
	}
	for i := 0; i < extra; i++ {
		var item [32]byte
		if _, err := rand.Read(item[:]); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
