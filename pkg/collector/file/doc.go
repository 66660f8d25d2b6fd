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

// Package file reads line-oriented text files incrementally.
//
// A caller records the file size before an operation and later reads only
// the lines appended since:
//
//	p := file.NewParser()
//	mark, _ := file.Size("/var/log/kern.log")
//	// ... run a round ...
//	lines, next, err := p.GetLinesFrom("/var/log/kern.log", mark)
//
// A file that shrank below the offset (rotation, truncation) is read from
// the start. At most the configured maximum size is read per call.
package file
