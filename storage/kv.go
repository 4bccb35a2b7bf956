package storage

import (
	"sync"

	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/pkg/errors"
)

var _ KV = (*MemoryKV)(nil)

// OpenDir opens an encrypted store on a leveldb directory. The returned func closes the database.
func OpenDir(dir, passphrase string) (*Store, func() error, error) {
	db, err := leveldb.New(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open leveldb at %s", dir)
	}

	s, err := Open(db, passphrase)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return s, db.Close, nil
}

// MemoryKV keeps everything in process memory. Guest sessions use it so nothing reaches disk.
type MemoryKV struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string][]byte)}
}

func (kv *MemoryKV) Get(key []byte) []byte {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.m[string(key)]
	if !ok {
		return nil
	}
	return append([]byte(nil), v...)
}

func (kv *MemoryKV) Put(key, value []byte) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[string(key)] = append([]byte(nil), value...)
}

func (kv *MemoryKV) Delete(key []byte) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.m, string(key))
}
