package sample

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/shmpool"
)

func TestNewHeapIsAlignedAndWritable(t *testing.T) {
	s := NewHeap(37)
	assert.Equal(t, 37, s.Len())

	buf := s.Bytes()
	require.Len(t, buf, 37)
	addr := reflect.ValueOf(&buf[0]).Pointer()
	assert.Zero(t, addr%heapAlignment)

	buf[0] = 0xAB
	assert.Equal(t, byte(0xAB), s.Bytes()[0])
}

func TestFinalizeHeapProducesVecMessage(t *testing.T) {
	s := NewHeap(8)
	copy(s.Bytes(), []byte("12345678"))

	msg, shared, err := s.Finalize()
	require.NoError(t, err)
	assert.Nil(t, shared)
	assert.Equal(t, protocol.DataMessageVec, msg.Kind)
	assert.Equal(t, []byte("12345678"), msg.Vec)
}

func TestFinalizeIsNotIdempotent(t *testing.T) {
	s := NewHeap(4)
	_, _, err := s.Finalize()
	require.NoError(t, err)

	_, _, err = s.Finalize()
	assert.Error(t, err)
}

func TestFinalizeSharedProducesTokenAndRegion(t *testing.T) {
	region, err := shmpool.Allocate(64)
	require.NoError(t, err)
	defer region.Free()

	s := NewShared(region, 16)
	msg, shared, err := s.Finalize()
	require.NoError(t, err)
	require.NotNil(t, shared)
	assert.Equal(t, protocol.DataMessageSharedMemory, msg.Kind)
	assert.Equal(t, region.ID(), msg.SharedMemory.ID)
	assert.Equal(t, 16, msg.SharedMemory.Len)
	assert.Equal(t, shared.DropToken, msg.SharedMemory.DropToken)
	assert.NotEmpty(t, string(shared.DropToken))
}
