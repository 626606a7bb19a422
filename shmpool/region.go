// Package shmpool implements the node's shared-memory region allocator:
// a bounded reuse cache plus fresh OS-backed allocation, used whenever a
// DataSample's payload crosses the zero-copy threshold.
// Regions are backed by github.com/edsrzf/mmap-go over a file created
// under the shared-memory-backed tmpfs mount, the Go equivalent of the
// Rust implementation's shared_memory_extended::ShmemConf.
package shmpool

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dora-rs/dora-node-go/logging"
)

// shmDir is where OS-backed regions are created. /dev/shm is the
// conventional POSIX shared-memory mount; it falls back to the regular
// temp directory on platforms that lack it, at the cost of losing the
// "shared memory" performance property but keeping identical semantics
// for single-host testing.
var shmDir = func() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}()

// Region is an OS-named, writable, fixed-capacity shared-memory segment.
// At any instant a Region is owned by exactly one of: the pool cache,
// the node's in-flight table, or a caller-held DataSample.
type Region struct {
	id       string
	file     *os.File
	mapping  mmap.MMap
	capacity int
}

// Allocate creates a fresh OS-backed region sized exactly capacity
// bytes.
func Allocate(capacity int) (*Region, error) {
	id := uuid.NewString()
	path := filepath.Join(shmDir, fmt.Sprintf("dora-%s", id))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create shared memory backing file")
	}
	if err := f.Truncate(int64(capacity)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, errors.Wrap(err, "failed to size shared memory region")
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, errors.Wrap(err, "failed to mmap shared memory region")
	}

	return &Region{id: id, file: f, mapping: m, capacity: capacity}, nil
}

// Attach maps an existing region created by another process (the
// daemon, or a producing node), identified by its OS id and declared
// byte length.
func Attach(id string, length int) (*Region, error) {
	path := filepath.Join(shmDir, fmt.Sprintf("dora-%s", id))
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open shared memory region %q", id)
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "failed to mmap shared memory region %q", id)
	}
	capacity := len(m)
	if length > capacity {
		m.Unmap()
		f.Close()
		return nil, errors.Errorf("shared memory region %q is shorter (%d) than declared length (%d)", id, capacity, length)
	}
	return &Region{id: id, file: f, mapping: m, capacity: capacity}, nil
}

// ID returns the OS-level identifier other processes use to attach to
// this region.
func (r *Region) ID() string { return r.id }

// Capacity returns the region's fixed byte capacity.
func (r *Region) Capacity() int { return r.capacity }

// Bytes returns the full writable backing slice.
func (r *Region) Bytes() []byte { return r.mapping }

// Retain satisfies arrowdata.BufferOwner. An attached region has no
// refcount of its own: the mapping is already live the moment Attach
// returns, so there is nothing to do here.
func (r *Region) Retain() {}

// Release satisfies arrowdata.BufferOwner for a region obtained via
// Attach: it unmaps and closes the region's local view once the caller
// is done reading from it, but does not remove the backing file, since
// an attached region never owned that file's lifecycle (the producer,
// via Free, does). The drop-token reported back over the control
// channel is what tells the producer it may reclaim or free the
// region; Release only tears down this process's local mapping.
func (r *Region) Release() {
	if err := r.mapping.Unmap(); err != nil {
		logging.L().Warn("failed to unmap shared memory region on release", "id", r.id, "error", err)
	}
	if err := r.file.Close(); err != nil {
		logging.L().Warn("failed to close shared memory region on release", "id", r.id, "error", err)
	}
}

// Free unmaps the region and removes its backing file. Only the party
// that currently owns the region (the pool, the in-flight table, or a
// caller holding a DataSample) should ever call this.
func (r *Region) Free() error {
	path := filepath.Join(shmDir, fmt.Sprintf("dora-%s", r.id))
	if err := r.mapping.Unmap(); err != nil {
		r.file.Close()
		return errors.Wrapf(err, "failed to unmap shared memory region %q", r.id)
	}
	if err := r.file.Close(); err != nil {
		return errors.Wrapf(err, "failed to close shared memory region %q", r.id)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to free shared memory region %q", r.id)
	}
	return nil
}
