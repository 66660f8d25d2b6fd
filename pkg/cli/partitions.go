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
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/mig-stress/pkg/header"
	"github.com/NVIDIA/mig-stress/pkg/partition"
	"github.com/NVIDIA/mig-stress/pkg/serializer"
	"github.com/NVIDIA/mig-stress/pkg/smi"
)

func partitionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "partitions",
		Usage: "List, create and destroy MIG partitions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the MIG partitions visible on this host",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "discovery",
						Usage: "partition discovery method (smi, nvml)",
						Value: "smi",
					},
					outputFlag(),
					formatFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					format, err := parseOutputFormat(cmd)
					if err != nil {
						return err
					}
					d, err := newDiscoverer(nil, cmd.String("discovery"))
					if err != nil {
						return err
					}
					parts, err := d.Discover(ctx)
					if err != nil {
						return err
					}
					out := serializer.NewFileWriterOrStdout(format, cmd.String("output"))
					if c, ok := out.(serializer.Closer); ok {
						defer c.Close()
					}
					return out.Serialize(ctx, newPartitionList(parts))
				},
			},
			{
				Name:  "setup",
				Usage: "Enable MIG mode and create partitions from profiles",
				Description: `Enable MIG mode on every given GPU, destroy its existing instances and
create one GPU instance, with its default compute instance, per profile.

# Examples

  migstress partitions setup --gpu 0 --profile 3g.20gb --profile 3g.20gb
  migstress partitions setup --gpu 0 --gpu 1 --profile 1g.10gb,1g.10gb,2g.20gb`,
				Flags: []cli.Flag{
					&cli.IntSliceFlag{Name: "gpu", Usage: "GPU index (repeatable)", Required: true},
					&cli.StringSliceFlag{Name: "profile", Usage: "MIG profile to create (repeatable)", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return partition.NewManager(smi.Default()).Setup(ctx, *layoutFromFlags(cmd, "gpu", "profile"))
				},
			},
			{
				Name:  "teardown",
				Usage: "Destroy every MIG partition on the given GPUs",
				Flags: []cli.Flag{
					&cli.IntSliceFlag{Name: "gpu", Usage: "GPU index (repeatable)", Required: true},
					&cli.BoolFlag{Name: "disable-mig", Usage: "also turn MIG mode off"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return partition.NewManager(smi.Default()).Teardown(ctx, cmd.IntSlice("gpu"), cmd.Bool("disable-mig"))
				},
			},
		},
	}
}

func layoutFromFlags(cmd *cli.Command, gpuFlag, profileFlag string) *partition.Layout {
	return &partition.Layout{
		GPUs:     cmd.IntSlice(gpuFlag),
		Profiles: cmd.StringSlice(profileFlag),
	}
}

// partitionList renders as a table in addition to JSON and YAML.
type partitionList struct {
	header.Header `json:",inline" yaml:",inline"`

	Partitions []partition.Partition `json:"partitions" yaml:"partitions"`
}

func newPartitionList(parts []partition.Partition) *partitionList {
	l := &partitionList{Partitions: parts}
	l.Init(header.KindPartitionList, version)
	return l
}

func (l *partitionList) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GPU\tINDEX\tPROFILE\tID")
	for _, p := range l.Partitions {
		gpu := "-"
		if p.GPUIndex >= 0 {
			gpu = strconv.Itoa(p.GPUIndex)
		}
		profile := p.Profile
		if profile == "" {
			profile = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", gpu, p.Index, profile, p.ID)
	}
	return tw.Flush()
}
