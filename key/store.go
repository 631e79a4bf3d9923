// Package key persists a server's BFV key material and deployment
// parameters in an embedded bbolt database (sync.Mutex-guarded *bolt.DB,
// one bucket).
package key

import (
	"fmt"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/fhe"
	"github.com/drand/labeled-psi/fs"
	"github.com/drand/labeled-psi/log"
	"github.com/drand/labeled-psi/params"
)

// BoltFileName is the name of the file the Store writes to.
const BoltFileName = "psi.db"

// BoltStoreOpenPerm is the permission used to create the db file.
const BoltStoreOpenPerm = 0600

var keysBucket = []byte("keys")

const (
	keySecret = "secret"
	keyPublic = "public"
	keyRelin  = "relin"
	keyParams = "params"
)

const galoisKeyPrefix = "galois/"

// Store persists one server's secret key, public key, relinearization
// key, Galois keys, and deployment Params across restarts.
type Store struct {
	sync.Mutex
	db  *bolt.DB
	log log.Logger
}

// Open creates (if needed) and opens the bbolt database under folder.
func Open(l log.Logger, folder string) (*Store, error) {
	fs.CreateSecureFolder(folder)
	dbPath := filepath.Join(folder, BoltFileName)
	db, err := bolt.Open(dbPath, BoltStoreOpenPerm, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open key store: %v", errs.ErrConfig, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(keysBucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("%w: create key bucket: %v", errs.ErrConfig, err)
	}
	if l != nil {
		l.Infow("key store opened", "path", dbPath)
	}
	return &Store{db: db, log: l}, nil
}

// Close releases the underlying bbolt handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveParams persists the deployment Params.
func (s *Store) SaveParams(p params.Params) error {
	b, err := params.Marshal(p)
	if err != nil {
		return err
	}
	return s.put(keyParams, b)
}

// LoadParams reads the persisted Params.
func (s *Store) LoadParams() (params.Params, error) {
	b, err := s.get(keyParams)
	if err != nil {
		return params.Params{}, err
	}
	return params.Unmarshal(b)
}

// SaveKeys persists the server's key material. Galois keys are stored one
// record per Galois element so a deployment can add rotation steps later
// without rewriting the whole bundle.
func (s *Store) SaveKeys(keys fhe.KeySet) error {
	b, err := fhe.MarshalPublicKey(keys.Public)
	if err != nil {
		return err
	}
	if err := s.put(keyPublic, b); err != nil {
		return err
	}

	rb, err := fhe.MarshalRelinKey(keys.Relin)
	if err != nil {
		return err
	}
	if err := s.put(keyRelin, rb); err != nil {
		return err
	}

	for i, gk := range keys.Galois {
		gb, err := fhe.MarshalGaloisKey(gk)
		if err != nil {
			return err
		}
		if err := s.put(fmt.Sprintf("%s%d", galoisKeyPrefix, i), gb); err != nil {
			return err
		}
	}
	return s.putSecret(keys)
}

// LoadKeys reads back a previously saved key bundle. Galois key records
// are read in index order starting at 0 until a lookup misses, so a
// store with no rotation keys returns a KeySet with a nil Galois slice.
func (s *Store) LoadKeys() (fhe.KeySet, error) {
	var ks fhe.KeySet

	pb, err := s.get(keyPublic)
	if err != nil {
		return fhe.KeySet{}, err
	}
	ks.Public, err = fhe.UnmarshalPublicKey(pb)
	if err != nil {
		return fhe.KeySet{}, err
	}

	rb, err := s.get(keyRelin)
	if err != nil {
		return fhe.KeySet{}, err
	}
	ks.Relin, err = fhe.UnmarshalRelinKey(rb)
	if err != nil {
		return fhe.KeySet{}, err
	}

	for i := 0; ; i++ {
		gb, err := s.get(fmt.Sprintf("%s%d", galoisKeyPrefix, i))
		if err != nil {
			break
		}
		gk, err := fhe.UnmarshalGaloisKey(gb)
		if err != nil {
			return fhe.KeySet{}, err
		}
		ks.Galois = append(ks.Galois, gk)
	}

	sb, err := s.get(keySecret)
	if err == nil {
		ks.Secret = new(rlwe.SecretKey)
		if err := ks.Secret.UnmarshalBinary(sb); err != nil {
			return fhe.KeySet{}, fmt.Errorf("%w: malformed secret key: %v", errs.ErrMalformed, err)
		}
	}

	return ks.WithEvaluationKeySet(), nil
}

// putSecret persists the secret key, a separate step so future key-export
// tooling can omit it without touching SaveKeys' public-material path.
func (s *Store) putSecret(keys fhe.KeySet) error {
	if keys.Secret == nil {
		return nil
	}
	b, err := keys.Secret.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal secret key: %w", err)
	}
	return s.put(keySecret, b)
}

func (s *Store) put(key string, val []byte) error {
	s.Lock()
	defer s.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(keysBucket).Put([]byte(key), val)
	})
}

func (s *Store) get(key string) ([]byte, error) {
	s.Lock()
	defer s.Unlock()
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(keysBucket).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%w: key %q not found", errs.ErrConfig, key)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
