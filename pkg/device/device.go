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

package device

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOutOfMemory is returned by Alloc when the partition cannot satisfy
	// the request. Workers recover from it.
	ErrOutOfMemory = errors.New("device out of memory")

	// ErrUnavailable is returned by Open when the partition is not visible
	// to the runtime.
	ErrUnavailable = errors.New("device unavailable")
)

// Backend names a device implementation.
type Backend string

const (
	// BackendHost stresses host memory with a fixed capacity. It needs no GPU
	// and is used for dry runs and tests.
	BackendHost Backend = "host"

	// BackendCUDA drives the partition through the CUDA driver API.
	BackendCUDA Backend = "cuda"
)

// Backends returns the backends compiled into this binary.
func Backends() []Backend {
	if cudaAvailable {
		return []Backend{BackendHost, BackendCUDA}
	}
	return []Backend{BackendHost}
}

// ParseBackend parses a backend name.
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	switch b {
	case BackendHost, BackendCUDA:
		return b, nil
	default:
		return "", fmt.Errorf("unknown device backend %q", s)
	}
}

// MemInfo is a snapshot of partition memory in bytes.
type MemInfo struct {
	Free  uint64 `json:"free" yaml:"free"`
	Total uint64 `json:"total" yaml:"total"`
}

// Buffer is an allocation owned by a Device.
type Buffer interface {
	Size() uint64
}

// Device is an open partition. Implementations are not safe for concurrent
// use; a worker drives its device from a single goroutine.
type Device interface {
	// ID returns the partition identifier the device was opened with.
	ID() string

	MemInfo() (MemInfo, error)

	// Alloc reserves size bytes. It returns an error wrapping ErrOutOfMemory
	// when the partition is exhausted.
	Alloc(size uint64) (Buffer, error)

	Free(b Buffer) error

	// Compute runs passes of arithmetic over b.
	Compute(b Buffer, passes int) error

	// Transfer copies b to the host and back.
	Transfer(b Buffer) error

	// Trim releases memory cached by the runtime.
	Trim() error

	// Close frees every outstanding buffer and releases the device.
	Close() error
}

// Options configure Open.
type Options struct {
	Backend Backend

	// Partition is the identifier of the partition to open. It is passed
	// explicitly; backends never read it from the process environment.
	Partition string

	// HostMemory is the capacity of the host backend in bytes.
	HostMemory uint64
}

// DefaultHostMemory is the host backend capacity when none is configured.
const DefaultHostMemory = 512 << 20

// Open opens the partition named in opts.
func Open(opts Options) (Device, error) {
	if opts.Partition == "" {
		return nil, fmt.Errorf("%w: no partition identifier", ErrUnavailable)
	}
	switch opts.Backend {
	case BackendHost, "":
		capacity := opts.HostMemory
		if capacity == 0 {
			capacity = DefaultHostMemory
		}
		return newHost(opts.Partition, capacity), nil
	case BackendCUDA:
		return openCUDA(opts.Partition)
	default:
		return nil, fmt.Errorf("unknown device backend %q", opts.Backend)
	}
}

// Probe reports whether the backend's runtime is usable on this host.
func Probe(b Backend) error {
	switch b {
	case BackendHost, "":
		return nil
	case BackendCUDA:
		return probeCUDA()
	default:
		return fmt.Errorf("unknown device backend %q", b)
	}
}

// IsOutOfMemory reports whether err is a recoverable allocation failure.
func IsOutOfMemory(err error) bool {
	return errors.Is(err, ErrOutOfMemory)
}

// IsUnavailable reports whether err means the partition cannot be used.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
