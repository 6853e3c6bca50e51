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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/cmd/util"
	"github.com/spf13/cobra"
)

const (
	shellPrompt      = "\033[36mseatunnel»\033[0m "
	shellHistoryName = "seatunnel-cli.history"
)

// options defines flags for the `cli` command.
type options struct {
	interact bool
	// stopSignals releases the signal handler installed for one invocation.
	stopSignals func()
}

// NewCmdCli creates the `cli` command.
func NewCmdCli() *cobra.Command {
	o := &options{}

	cmds := &cobra.Command{
		Use:   "cli",
		Short: "Manage jobs of a seatunnel engine cluster",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			o.stopSignals = util.InitCmd(cmd)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if o.stopSignals != nil {
				o.stopSignals()
			}
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !o.interact {
				return cmd.Help()
			}
			sh, err := newShell(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sh.close()
			return sh.loop()
		},
	}
	cmds.PersistentFlags().BoolVarP(&o.interact, "interact", "i", false, "Run seatunnel engine cli with readline")

	cmds.AddCommand(newCmdJob())
	cmds.AddCommand(newCmdPrintMessage())

	return cmds
}

// shell runs `cli` subcommands read line by line from a terminal.
type shell struct {
	rl       *readline.Instance
	out, err io.Writer
}

func newShell(out, errOut io.Writer) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            shellPrompt,
		HistoryFile:       filepath.Join(os.TempDir(), shellHistoryName),
		InterruptPrompt:   "^C",
		EOFPrompt:         "^D",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, err
	}
	return &shell{rl: rl, out: out, err: errOut}, nil
}

func (s *shell) close() {
	_ = s.rl.Close()
}

// loop returns on exit, ^C or ^D.
func (s *shell) loop() error {
	for {
		line, err := s.rl.Readline()
		switch {
		case err == readline.ErrInterrupt || err == io.EOF:
			return nil
		case err != nil:
			continue
		}
		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			return nil
		}
		s.exec(line)
	}
}

func (s *shell) exec(line string) {
	args, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintf(s.err, "parse command err: %v\n", err)
		return
	}
	if len(args) == 0 {
		return
	}
	command := NewCmdCli()
	command.SetArgs(args)
	command.SetOut(s.out)
	command.SetErr(s.err)
	if err := command.Execute(); err != nil {
		fmt.Fprintln(s.err, err)
	}
}
