// Package sample implements DataSample: an owned writable buffer the
// caller fills before handing it to Node.SendOutputSample, backed either
// by a 128-byte-aligned heap allocation or a shared-memory region.
package sample

import (
	"reflect"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/shmpool"
)

const heapAlignment = 128

// backingKind discriminates Sample's two backings.
type backingKind int

const (
	backingHeap backingKind = iota
	backingShared
)

// Sample abstracts over a heap or shared-memory backed writable buffer.
// Once Finalize is called, the sample is consumed and must not be used
// again.
type Sample struct {
	kind     backingKind
	length   int
	heapFull []byte // over-allocated backing array, for the heap case
	heap     []byte // 128-byte-aligned view of heapFull, length bytes long
	region   *shmpool.Region
	used     bool
}

// NewHeap allocates a 128-byte-aligned heap sample of exactly n bytes,
// the Go substitute for the Rust implementation's
// aligned_vec::AVec<u8, ConstAlign<128>>: Go's allocator gives no
// alignment guarantee for a []byte, so the backing array is
// over-allocated and sliced at its first 128-byte-aligned offset.
func NewHeap(n int) *Sample {
	full := make([]byte, n+heapAlignment-1)
	addr := reflect.ValueOf(&full[0]).Pointer()
	pad := (heapAlignment - int(addr%heapAlignment)) % heapAlignment
	return &Sample{kind: backingHeap, length: n, heapFull: full, heap: full[pad : pad+n]}
}

// NewShared wraps a shared-memory region, exposing its first n bytes as
// the sample's writable slice.
func NewShared(region *shmpool.Region, n int) *Sample {
	return &Sample{kind: backingShared, length: n, region: region}
}

// Len returns the sample's length (<= capacity of its backing).
func (s *Sample) Len() int { return s.length }

// Bytes returns the writable slice the caller fills in.
func (s *Sample) Bytes() []byte {
	if s.kind == backingShared {
		return s.region.Bytes()[:s.length]
	}
	return s.heap
}

// Shared holds the region and drop token yielded when a shared-memory
// backed sample is finalized, for the node facade to register in its
// in-flight table.
type Shared struct {
	Region    *shmpool.Region
	DropToken protocol.DropToken
}

// Finalize consumes the sample, producing the DataMessage to put on the
// wire and, for shared-memory backed samples, the region/token pair the
// caller must track until the daemon reclaims it.
func (s *Sample) Finalize() (protocol.DataMessage, *Shared, error) {
	if s.used {
		return protocol.DataMessage{}, nil, errors.New("sample already finalized")
	}
	s.used = true

	switch s.kind {
	case backingHeap:
		return protocol.NewVecMessage(s.heap), nil, nil
	case backingShared:
		token := protocol.DropToken(uuid.NewString())
		msg := protocol.NewSharedMemoryMessage(s.region.ID(), s.length, token)
		return msg, &Shared{Region: s.region, DropToken: token}, nil
	default:
		return protocol.DataMessage{}, nil, errors.New("unknown sample backing")
	}
}
