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

import "fmt"

const pageSize = 4096

type hostBuffer struct {
	data []byte
	size uint64
}

// Size is the allocated size; it stays valid after Free.
func (b *hostBuffer) Size() uint64 { return b.size }

// host is a Device over Go heap memory with a fixed capacity.
type host struct {
	id       string
	capacity uint64
	used     uint64
	live     map[*hostBuffer]struct{}
	staging  []byte
}

func newHost(id string, capacity uint64) *host {
	return &host{
		id:       id,
		capacity: capacity,
		live:     make(map[*hostBuffer]struct{}),
	}
}

func (h *host) ID() string { return h.id }

func (h *host) MemInfo() (MemInfo, error) {
	return MemInfo{Free: h.capacity - h.used, Total: h.capacity}, nil
}

func (h *host) Alloc(size uint64) (Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("zero-size allocation")
	}
	if h.used+size > h.capacity {
		return nil, fmt.Errorf("%w: requested %d bytes, %d free", ErrOutOfMemory, size, h.capacity-h.used)
	}
	b := &hostBuffer{data: make([]byte, size), size: size}
	// fault every page in
	for i := 0; i < len(b.data); i += pageSize {
		b.data[i] = 1
	}
	h.used += size
	h.live[b] = struct{}{}
	return b, nil
}

func (h *host) lookup(b Buffer) (*hostBuffer, error) {
	hb, ok := b.(*hostBuffer)
	if !ok {
		return nil, fmt.Errorf("buffer %T does not belong to the host backend", b)
	}
	if _, ok := h.live[hb]; !ok {
		return nil, fmt.Errorf("buffer already freed")
	}
	return hb, nil
}

func (h *host) Free(b Buffer) error {
	hb, err := h.lookup(b)
	if err != nil {
		return err
	}
	delete(h.live, hb)
	h.used -= hb.Size()
	hb.data = nil
	return nil
}

// Compute walks one word per page, passes times.
func (h *host) Compute(b Buffer, passes int) error {
	hb, err := h.lookup(b)
	if err != nil {
		return err
	}
	for p := 0; p < passes; p++ {
		for i := 0; i < len(hb.data); i += pageSize {
			hb.data[i] = hb.data[i]*31 + byte(p)
		}
	}
	return nil
}

func (h *host) Transfer(b Buffer) error {
	hb, err := h.lookup(b)
	if err != nil {
		return err
	}
	if len(h.staging) < len(hb.data) {
		h.staging = make([]byte, len(hb.data))
	}
	copy(h.staging, hb.data)
	copy(hb.data, h.staging[:len(hb.data)])
	return nil
}

func (h *host) Trim() error {
	h.staging = nil
	return nil
}

func (h *host) Close() error {
	for b := range h.live {
		delete(h.live, b)
		b.data = nil
	}
	h.used = 0
	h.staging = nil
	return nil
}
