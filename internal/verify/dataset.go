package verify

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/replicacheck/internal/storage"
)

// ReplicaID identifies one cluster member: a port, host name or label.
type ReplicaID string

// Replica is a replica and the location of its state-machine store.
type Replica struct {
	ID   ReplicaID
	Path string
}

// Dataset is the full key-value content of one replica store.
//
// A Dataset is immutable once built; keys are unique.
type Dataset struct {
	records     map[string][]byte
	keys        []string
	fingerprint string
}

// NewDataset builds a dataset from records. A repeated key is an error.
func NewDataset(records []storage.Record) (*Dataset, error) {
	b := newDatasetBuilder()
	for _, rec := range records {
		if err := b.add(rec); err != nil {
			return nil, err
		}
	}
	return b.build(), nil
}

// Len returns the number of keys.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Get returns the value stored under key.
func (d *Dataset) Get(key []byte) ([]byte, bool) {
	v, ok := d.records[string(key)]
	return v, ok
}

// Keys returns every key in byte order.
func (d *Dataset) Keys() [][]byte {
	keys := make([][]byte, len(d.keys))
	for i, k := range d.keys {
		keys[i] = []byte(k)
	}
	return keys
}

// Records returns every record in key order.
func (d *Dataset) Records() []storage.Record {
	out := make([]storage.Record, len(d.keys))
	for i, k := range d.keys {
		out[i] = storage.Record{Key: []byte(k), Value: d.records[k]}
	}
	return out
}

// Fingerprint returns a murmur3 128-bit digest of the sorted records.
// Equal datasets have equal fingerprints. It is a diagnostic aid only; the
// comparator never relies on it.
func (d *Dataset) Fingerprint() string {
	return d.fingerprint
}

type datasetBuilder struct {
	records map[string][]byte
}

func newDatasetBuilder() *datasetBuilder {
	return &datasetBuilder{records: make(map[string][]byte)}
}

func (b *datasetBuilder) add(rec storage.Record) error {
	k := string(rec.Key)
	if _, dup := b.records[k]; dup {
		return fmt.Errorf("duplicate key %s", DisplayBytes(rec.Key))
	}
	b.records[k] = bytes.Clone(rec.Value)
	return nil
}

func (b *datasetBuilder) build() *Dataset {
	keys := slices.Sorted(maps.Keys(b.records))
	return &Dataset{
		records:     b.records,
		keys:        keys,
		fingerprint: fingerprint(keys, b.records),
	}
}

// fingerprint hashes length-prefixed keys and values so that record
// boundaries are unambiguous.
func fingerprint(keys []string, records map[string][]byte) string {
	h := murmur3.New128()
	var n [binary.MaxVarintLen64]byte

	for _, k := range keys {
		v := records[k]
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(k)))])
		h.Write([]byte(k))
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(v)))])
		h.Write(v)
	}

	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}

// DisplayBytes renders a key or value for humans: printable UTF-8 as is,
// anything else as 0x-prefixed hex.
func DisplayBytes(b []byte) string {
	if utf8.Valid(b) && isPrintable(b) {
		return string(b)
	}
	return "0x" + hex.EncodeToString(b)
}

func isPrintable(b []byte) bool {
	for _, r := range string(b) {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
