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

//go:build sdjournal

package kernel

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/sdjournal"
)

const maxJournalLines = 10000

// Journal reads kernel messages from the systemd journal. The cursor is a
// journal cursor string.
type Journal struct{}

// NewJournal returns a journal source.
func NewJournal() (Source, error) {
	return Journal{}, nil
}

// Name implements Source.
func (Journal) Name() string { return "journal" }

func openKernelJournal() (*sdjournal.Journal, error) {
	j, err := sdjournal.NewJournal()
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := j.AddMatch(sdjournal.SD_JOURNAL_FIELD_TRANSPORT + "=kernel"); err != nil {
		j.Close()
		return nil, fmt.Errorf("failed to filter journal: %w", err)
	}
	return j, nil
}

// Mark implements Source.
func (Journal) Mark(context.Context) (Cursor, error) {
	j, err := openKernelJournal()
	if err != nil {
		return "", err
	}
	defer j.Close()

	if err := j.SeekTail(); err != nil {
		return "", fmt.Errorf("failed to seek journal tail: %w", err)
	}
	n, err := j.Previous()
	if err != nil {
		return "", fmt.Errorf("failed to read journal: %w", err)
	}
	if n == 0 {
		// empty journal
		return "", nil
	}
	c, err := j.GetCursor()
	if err != nil {
		return "", fmt.Errorf("failed to get journal cursor: %w", err)
	}
	return Cursor(c), nil
}

// Since implements Source.
func (Journal) Since(ctx context.Context, c Cursor) ([]string, error) {
	j, err := openKernelJournal()
	if err != nil {
		return nil, err
	}
	defer j.Close()

	if c == "" {
		err = j.SeekHead()
	} else {
		err = j.SeekCursor(string(c))
		if err == nil {
			// step onto the marked entry so the loop starts after it
			_, err = j.Next()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to seek journal: %w", err)
	}

	var lines []string
	for len(lines) < maxJournalLines {
		if err := ctx.Err(); err != nil {
			return lines, err
		}
		n, err := j.Next()
		if err != nil {
			return lines, fmt.Errorf("failed to read journal: %w", err)
		}
		if n == 0 {
			break
		}
		msg, err := j.GetDataValue(sdjournal.SD_JOURNAL_FIELD_MESSAGE)
		if err != nil {
			continue
		}
		lines = append(lines, msg)
	}
	return lines, nil
}
