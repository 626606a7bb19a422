// Package arrowdata rebuilds a columnar Arrow array from a flat payload
// buffer and an ArrowTypeInfo descriptor, and computes the
// inverse — flattening an Arrow array into a sample buffer plus the
// descriptor that locates it — for the send path. Grounded on github.com/apache/arrow/go/v12, the same
// major dependency family github.com/open-telemetry/otel-arrow pins in
// its collector exporter/receiver (see
// collector/receiver/otelarrowreceiver/internal/arrow/arrow.go in the
// retrieved corpus).
package arrowdata

import (
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/pkg/errors"

	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/shmpool"
)

// BufferOwner keeps the memory backing a reconstructed array's buffers
// alive for as long as the array (or any of its children) references it.
// A heap-backed buffer owner is a no-op on both ends (the Go garbage
// collector already keeps the backing array alive through any
// sub-slice); a shared-memory backed owner (*shmpool.Region, once
// attached) additionally owns a live mmap that must stay mapped until
// the caller is done with the array. Reconstruct calls Retain exactly
// once before building any buffers; the caller must call Release
// exactly once, only after it has finished with the returned array and
// everything derived from it — Reconstruct does not release on return.
type BufferOwner interface {
	Retain()
	Release()
}

// noopOwner is used when the caller has no additional lifecycle to
// track (e.g. the buffer is a plain Go byte slice already kept alive by
// the caller).
type noopOwner struct{}

func (noopOwner) Retain()  {}
func (noopOwner) Release() {}

// NoopOwner is the zero-cost BufferOwner for plain heap buffers.
var NoopOwner BufferOwner = noopOwner{}

// Resolve turns a wire-level DataMessage into a flat byte slice plus the
// BufferOwner that keeps it alive, dispatching on the message's kind:
// an inline Vec needs no extra lifetime management, while a
// SharedMemory reference is attached via shmpool.Attach, yielding a
// region whose Release must be called once the caller is done with
// whatever Reconstruct builds on top of it. This is the event stream's
// "map a SharedMemory reference to a locally-attached region" step,
// factored out so both EventStream.Resolve and tests can call it
// directly.
func Resolve(dm protocol.DataMessage) ([]byte, BufferOwner, error) {
	switch dm.Kind {
	case protocol.DataMessageVec:
		return dm.Vec, NoopOwner, nil
	case protocol.DataMessageSharedMemory:
		if dm.SharedMemory == nil {
			return nil, nil, errors.New("shared memory data message is missing its shared memory descriptor")
		}
		region, err := shmpool.Attach(dm.SharedMemory.ID, dm.SharedMemory.Len)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to attach shared memory region %q", dm.SharedMemory.ID)
		}
		return region.Bytes()[:dm.SharedMemory.Len], region, nil
	default:
		return nil, nil, errors.Errorf("unknown data message kind %q", dm.Kind)
	}
}

// Reconstruct rebuilds a columnar array sharing memory with buf,
// implementing steps 1-4. It retains owner once before touching buf and
// leaves it retained on return: the caller owns the matching Release,
// to be called only once it is finished with the returned array (and
// everything derived from it), since the array's buffers alias owner's
// memory directly rather than copying it.
func Reconstruct(buf []byte, owner BufferOwner, info protocol.ArrowTypeInfo) (arrow.Array, error) {
	owner.Retain()
	return reconstruct(buf, info)
}

func reconstruct(buf []byte, info protocol.ArrowTypeInfo) (arrow.Array, error) {
	dataType, err := DecodeDataType(info.DataTypeJSON)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve arrow data type")
	}

	if len(buf) == 0 {
		return array.MakeArrayOfNull(memory.DefaultAllocator, dataType, 0), nil
	}

	buffers := make([]*memory.Buffer, 0, len(info.BufferOffsets)+1)

	if len(info.ValidityBytes) > 0 {
		buffers = append(buffers, memory.NewBufferBytes(info.ValidityBytes))
	} else {
		buffers = append(buffers, nil)
	}

	for _, bo := range info.BufferOffsets {
		if bo.Offset < 0 || bo.Len < 0 || bo.Offset+bo.Len > int64(len(buf)) {
			return nil, errors.Errorf("buffer slice [%d:%d] out of bounds for payload of length %d", bo.Offset, bo.Offset+bo.Len, len(buf))
		}
		buffers = append(buffers, memory.NewBufferBytes(buf[bo.Offset:bo.Offset+bo.Len]))
	}

	children := make([]arrow.ArrayData, 0, len(info.ChildData))
	for _, childInfo := range info.ChildData {
		childArr, err := reconstruct(buf, childInfo)
		if err != nil {
			return nil, err
		}
		children = append(children, childArr.Data())
	}

	data := array.NewData(dataType, int(info.Len), buffers, children, 0, int(info.Offset))
	defer data.Release()

	return array.MakeFromData(data), nil
}

// RequiredSize computes the number of bytes a flat buffer must hold to
// back arr and all of its children, the Go equivalent of the Rust
// implementation's arrow_utils::required_data_size.
func RequiredSize(arr arrow.Array) int {
	total := 0
	dataBuffers := arr.Data().Buffers()
	if len(dataBuffers) > 0 {
		dataBuffers = dataBuffers[1:] // skip the null bitmap; CopyInto stores it separately
	}
	for _, buf := range dataBuffers {
		if buf != nil {
			total += buf.Len()
		}
	}
	for i := 0; i < arr.Data().NumChildren(); i++ {
		child := array.MakeFromData(arr.Data().Children()[i])
		total += RequiredSize(child)
		child.Release()
	}
	return total
}

// CopyInto copies arr's buffers (and its children's, recursively) into
// dst, returning the ArrowTypeInfo that locates each copied slice — the
// Go equivalent of arrow_utils::copy_array_into_sample.
func CopyInto(dst []byte, arr arrow.Array) (protocol.ArrowTypeInfo, error) {
	offset := 0
	return copyInto(dst, &offset, arr)
}

func copyInto(dst []byte, offset *int, arr arrow.Array) (protocol.ArrowTypeInfo, error) {
	dataTypeJSON, err := EncodeDataType(arr.DataType())
	if err != nil {
		return protocol.ArrowTypeInfo{}, err
	}

	info := protocol.ArrowTypeInfo{
		DataTypeJSON: dataTypeJSON,
		Len:          int64(arr.Len()),
		Offset:       int64(arr.Data().Offset()),
	}

	if validity := arr.NullBitmapBytes(); len(validity) > 0 {
		info.ValidityBytes = append([]byte(nil), validity...)
	}

	// Buffers()[0] is the null bitmap, already captured above in
	// info.ValidityBytes; only the data buffers that follow go into
	// BufferOffsets (mirrored by Reconstruct, which prepends the
	// validity buffer back on before these).
	dataBuffers := arr.Data().Buffers()
	if len(dataBuffers) > 0 {
		dataBuffers = dataBuffers[1:]
	}
	for _, buf := range dataBuffers {
		if buf == nil {
			continue
		}
		n := copy(dst[*offset:], buf.Bytes())
		info.BufferOffsets = append(info.BufferOffsets, protocol.BufferOffset{Offset: int64(*offset), Len: int64(n)})
		*offset += n
	}

	for i := 0; i < arr.Data().NumChildren(); i++ {
		child := array.MakeFromData(arr.Data().Children()[i])
		childInfo, err := copyInto(dst, offset, child)
		child.Release()
		if err != nil {
			return protocol.ArrowTypeInfo{}, err
		}
		info.ChildData = append(info.ChildData, childInfo)
	}

	return info, nil
}
