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

package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/mig-stress/pkg/report"
	"github.com/NVIDIA/mig-stress/pkg/serializer"
)

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Work with saved run reports",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print a saved report",
				ArgsUsage: "<path | cm://namespace/name>",
				Description: `Read a report written by run or suite (JSON or YAML file, or ConfigMap)
and print it in another format. Exits 1 when the report has failed kinds.

# Examples

  migstress report show /var/log/migstress/20250101-120000-1a2b3c4d/report.json
  migstress report show cm://gpu-operator/migstress-report --format json`,
				Flags: []cli.Flag{
					outputFlag(),
					formatFlag(),
					kubeconfigFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("expected a report path")
					}
					format, err := parseOutputFormat(cmd)
					if err != nil {
						return err
					}

					rep, err := serializer.FromFile[report.Report](ctx, cmd.Args().First(), cmd.String("kubeconfig"))
					if err != nil {
						return err
					}

					out := serializer.NewFileWriterOrStdout(format, cmd.String("output"))
					if c, ok := out.(serializer.Closer); ok {
						defer c.Close()
					}
					if err := out.Serialize(ctx, rep); err != nil {
						return err
					}
					if code := rep.ExitCode(); code != 0 {
						return cli.Exit("", code)
					}
					return nil
				},
			},
		},
	}
}
