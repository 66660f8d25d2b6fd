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

//go:build !cuda

package device

import "fmt"

const cudaAvailable = false

func probeCUDA() error {
	return fmt.Errorf("CUDA backend not compiled in (build with -tags cuda)")
}

func openCUDA(id string) (Device, error) {
	return nil, fmt.Errorf("%w: CUDA backend not compiled in, cannot open %s", ErrUnavailable, id)
}
