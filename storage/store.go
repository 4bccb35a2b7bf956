// Package storage keeps the client's local state in an encrypted key/value store.
package storage

import (
	"crypto/rand"
	"encoding/json"
	"io"
	"sync"

	"github.com/bosagora/votera/core"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltKey     = "votera.salt"
	blobKey     = "votera.blob"
	valuePrefix = "votera.kv."

	nonceSize = 24
	keySize   = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var ErrBadPassphrase = errors.New("store passphrase does not match")

// KV is the raw byte store underneath. axiom-kit's leveldb storage satisfies it.
type KV interface {
	Get(key []byte) []byte
	Put(key, value []byte)
	Delete(key []byte)
}

// Blob is the structured part of local state. It is always replaced as a whole.
type Blob struct {
	Members   []core.User           `json:"members"`
	Bookmarks []string              `json:"bookmarks"`
	Drafts    map[string]core.Draft `json:"drafts"`
}

// Store serializes every read-modify-write of the blob, so concurrent writers never lose updates.
type Store struct {
	mu  sync.Mutex
	kv  KV
	key [keySize]byte
}

func Open(kv KV, passphrase string) (*Store, error) {
	salt := kv.Get([]byte(saltKey))
	if salt == nil {
		salt = make([]byte, 16)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, errors.Wrap(err, "generate salt")
		}
		kv.Put([]byte(saltKey), salt)
	}

	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, errors.Wrap(err, "derive store key")
	}

	s := &Store{kv: kv}
	copy(s.key[:], derived)

	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Load() (Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update runs fn on the current blob and persists the result atomically with respect to other
// Update calls. Nothing is written when fn returns an error.
func (s *Store) Update(fn func(*Blob) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&blob); err != nil {
		return err
	}

	raw, err := json.Marshal(&blob)
	if err != nil {
		return err
	}
	sealed, err := s.seal(raw)
	if err != nil {
		return err
	}
	s.kv.Put([]byte(blobKey), sealed)
	return nil
}

func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed := s.kv.Get([]byte(valuePrefix + key))
	if sealed == nil {
		return "", false, nil
	}
	raw, err := s.open(sealed)
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := s.seal([]byte(value))
	if err != nil {
		return err
	}
	s.kv.Put([]byte(valuePrefix+key), sealed)
	return nil
}

func (s *Store) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv.Delete([]byte(valuePrefix + key))
}

// ToggleBookmark flips the bookmark on a proposal and returns the new state.
func (s *Store) ToggleBookmark(proposalID string) (bool, error) {
	var marked bool
	err := s.Update(func(b *Blob) error {
		if lo.Contains(b.Bookmarks, proposalID) {
			b.Bookmarks = lo.Without(b.Bookmarks, proposalID)
			return nil
		}
		b.Bookmarks = append(b.Bookmarks, proposalID)
		marked = true
		return nil
	})
	return marked, err
}

func (s *Store) load() (Blob, error) {
	blob := Blob{Drafts: make(map[string]core.Draft)}

	sealed := s.kv.Get([]byte(blobKey))
	if sealed == nil {
		return blob, nil
	}
	raw, err := s.open(sealed)
	if err != nil {
		return blob, err
	}
	if err := json.Unmarshal(raw, &blob); err != nil {
		return blob, errors.Wrap(err, "decode store blob")
	}
	if blob.Drafts == nil {
		blob.Drafts = make(map[string]core.Draft)
	}
	return blob, nil
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrBadPassphrase
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrBadPassphrase
	}
	return plain, nil
}
