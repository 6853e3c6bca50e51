// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"strings"

	"github.com/quanzhian/incubator-seatunnel/engine/pkg/cmd/util"
	"github.com/spf13/cobra"
)

// newCmdPrintMessage creates the `cli print-message` command, which asks
// the master to log and echo a message.
func newCmdPrintMessage() *cobra.Command {
	o := newJobGeneralOptions()

	command := &cobra.Command{
		Use:   "print-message <message>",
		Short: "Print a message in the master log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := util.GetDefaultContext()
			if err := o.validate(ctx); err != nil {
				return err
			}
			defer o.close()
			echo, err := o.client.PrintMessageToMaster(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			cmd.Println(echo)
			return nil
		},
	}

	o.addFlags(command)

	return command
}
