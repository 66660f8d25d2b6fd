// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build cuda

package device

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"gorgonia.org/cu"
)

const cudaAvailable = true

type cudaBuffer struct {
	ptr  cu.DevicePtr
	size uint64
}

func (b *cudaBuffer) Size() uint64 { return b.size }

// cudaDevice drives device 0 of the process. The launcher restricts the
// worker to its partition, so device 0 is the partition.
type cudaDevice struct {
	id      string
	ctx     cu.CUContext
	live    map[*cudaBuffer]struct{}
	staging []byte
}

func probeCUDA() error {
	n, err := cu.NumDevices()
	if err != nil {
		return fmt.Errorf("CUDA driver not usable: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("CUDA driver reports no devices")
	}
	return nil
}

// openCUDA creates a context on the current OS thread. The caller must keep
// using the device from the goroutine that opened it.
func openCUDA(id string) (Device, error) {
	runtime.LockOSThread()

	n, err := cu.NumDevices()
	if err != nil || n == 0 {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("%w: partition %s not visible to CUDA (devices=%d): %v", ErrUnavailable, id, n, err)
	}

	ctx, err := cu.Device(0).MakeContext(cu.SchedAuto)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("%w: failed to create CUDA context on %s: %v", ErrUnavailable, id, err)
	}
	return &cudaDevice{id: id, ctx: ctx, live: make(map[*cudaBuffer]struct{})}, nil
}

func cudaErr(op string, err error) error {
	if errors.Is(err, cu.OutOfMemory) {
		return fmt.Errorf("%w: %s: %v", ErrOutOfMemory, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (d *cudaDevice) ID() string { return d.id }

func (d *cudaDevice) MemInfo() (MemInfo, error) {
	free, total, err := cu.MemInfo()
	if err != nil {
		return MemInfo{}, cudaErr("mem info", err)
	}
	return MemInfo{Free: uint64(free), Total: uint64(total)}, nil
}

func (d *cudaDevice) Alloc(size uint64) (Buffer, error) {
	ptr, err := cu.MemAlloc(int64(size))
	if err != nil {
		return nil, cudaErr("alloc", err)
	}
	if err := cu.MemsetD8(ptr, 0x5a, int64(size)); err != nil {
		_ = cu.MemFree(ptr)
		return nil, cudaErr("memset", err)
	}
	b := &cudaBuffer{ptr: ptr, size: size}
	d.live[b] = struct{}{}
	return b, nil
}

func (d *cudaDevice) lookup(b Buffer) (*cudaBuffer, error) {
	cb, ok := b.(*cudaBuffer)
	if !ok {
		return nil, fmt.Errorf("buffer %T does not belong to the CUDA backend", b)
	}
	if _, ok := d.live[cb]; !ok {
		return nil, fmt.Errorf("buffer already freed")
	}
	return cb, nil
}

func (d *cudaDevice) Free(b Buffer) error {
	cb, err := d.lookup(b)
	if err != nil {
		return err
	}
	delete(d.live, cb)
	if err := cu.MemFree(cb.ptr); err != nil {
		return cudaErr("free", err)
	}
	return nil
}

// Compute rewrites the buffer passes times, copying its first half over the
// second in between.
func (d *cudaDevice) Compute(b Buffer, passes int) error {
	cb, err := d.lookup(b)
	if err != nil {
		return err
	}
	half := int64(cb.size / 2)
	for p := 0; p < passes; p++ {
		if err := cu.MemsetD8(cb.ptr, byte(p), half); err != nil {
			return cudaErr("compute", err)
		}
		if half > 0 {
			if err := cu.MemcpyDtoD(cb.ptr+cu.DevicePtr(half), cb.ptr, half); err != nil {
				return cudaErr("compute", err)
			}
		}
	}
	return cu.Synchronize()
}

func (d *cudaDevice) Transfer(b Buffer) error {
	cb, err := d.lookup(b)
	if err != nil {
		return err
	}
	if uint64(len(d.staging)) < cb.size {
		d.staging = make([]byte, cb.size)
	}
	host := unsafe.Pointer(&d.staging[0])
	if err := cu.MemcpyDtoH(host, cb.ptr, int64(cb.size)); err != nil {
		return cudaErr("device to host", err)
	}
	if err := cu.MemcpyHtoD(cb.ptr, host, int64(cb.size)); err != nil {
		return cudaErr("host to device", err)
	}
	return nil
}

func (d *cudaDevice) Trim() error {
	d.staging = nil
	return cu.Synchronize()
}

func (d *cudaDevice) Close() error {
	defer runtime.UnlockOSThread()
	var errs []error
	for b := range d.live {
		delete(d.live, b)
		if err := cu.MemFree(b.ptr); err != nil {
			errs = append(errs, err)
		}
	}
	if err := cu.DestroyContext(&d.ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
