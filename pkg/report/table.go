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

package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var title = cases.Title(language.English)

// DisplayKind renders a kind name for humans, e.g. "Intense Thrashing".
func DisplayKind(kind string) string {
	return title.String(strings.ReplaceAll(kind, "-", " "))
}

// WriteTable renders the pass/fail matrix.
func (r *Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tRESULT\tWORKERS\tSUCCEEDED\tFAILED\tANOMALIES\tDURATION\tNOTE")
	for _, rr := range r.Rounds {
		note := rr.Reason
		if note == "" && rr.LogPath != "" {
			note = rr.LogPath
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			DisplayKind(string(rr.Kind)),
			strings.ToUpper(string(rr.Status())),
			rr.Total, rr.Succeeded, rr.Failed, len(rr.Anomalies),
			rr.Duration.Round(time.Second), note)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}

	verdict := "PASSED"
	if !r.Summary.Success {
		verdict = "FAILED"
	}
	_, err := fmt.Fprintf(w, "\n%s: %d/%d kinds passed, %d failed (%d skipped), %d workers\n",
		verdict, r.Summary.Passed, r.Summary.Kinds, r.Summary.Failed, r.Summary.Skipped, r.Summary.Workers)
	return err
}
