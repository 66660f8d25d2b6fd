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

package oci

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"

	"github.com/NVIDIA/mig-stress/pkg/errors"
)

// URIScheme prefixes registry push targets on the command line.
const URIScheme = "oci://"

// Reference is a parsed oci://registry/repository[:tag] target.
type Reference struct {
	Registry   string
	Repository string
	Tag        string
}

// IsReference reports whether s uses the oci:// scheme.
func IsReference(s string) bool {
	return strings.HasPrefix(s, URIScheme)
}

// ParseReference parses an oci:// target. The tag is optional; callers fill
// it in with WithTag before pushing.
func ParseReference(s string) (Reference, error) {
	if !IsReference(s) {
		return Reference{}, errors.New(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("registry target %q must start with %s", s, URIScheme))
	}

	raw := strings.TrimPrefix(s, URIScheme)
	named, err := reference.ParseNormalizedNamed(raw)
	if err != nil {
		return Reference{}, errors.Wrap(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid registry target %q", s), err)
	}
	if _, ok := named.(reference.Digested); ok {
		return Reference{}, errors.New(errors.ErrCodeInvalidRequest,
			"registry target must not pin a digest")
	}

	ref := Reference{
		Registry:   reference.Domain(named),
		Repository: reference.Path(named),
	}
	if tagged, ok := named.(reference.Tagged); ok {
		ref.Tag = tagged.Tag()
	}
	return ref, nil
}

// WithTag returns a copy of r with the tag set, unless r already has one.
func (r Reference) WithTag(tag string) Reference {
	if r.Tag == "" {
		r.Tag = tag
	}
	return r
}

// Repo returns registry/repository without a tag.
func (r Reference) Repo() string {
	return r.Registry + "/" + r.Repository
}

// String returns registry/repository[:tag].
func (r Reference) String() string {
	if r.Tag == "" {
		return r.Repo()
	}
	return r.Repo() + ":" + r.Tag
}

// Validate checks that the reference is complete enough to push.
func (r Reference) Validate() error {
	if r.Registry == "" || r.Repository == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "registry and repository are required")
	}
	if r.Tag == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "tag is required to push logs")
	}
	if _, err := reference.ParseNormalizedNamed(r.String()); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, fmt.Sprintf("invalid image reference %q", r.String()), err)
	}
	return nil
}
