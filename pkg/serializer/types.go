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

package serializer

import (
	"context"
	"io"
)

// Serializer writes a value to its destination.
type Serializer interface {
	Serialize(ctx context.Context, v any) error
}

// Closer releases the destination of a Serializer.
type Closer interface {
	Close() error
}

// TableWriter is implemented by values with their own table rendering.
type TableWriter interface {
	WriteTable(w io.Writer) error
}

// ConfigMapURIScheme prefixes ConfigMap destinations: cm://namespace/name.
const ConfigMapURIScheme = "cm://"
