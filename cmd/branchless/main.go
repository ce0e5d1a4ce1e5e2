// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/antgroup/branchless/modules/env"
	"github.com/antgroup/branchless/pkg/command"
	"github.com/antgroup/branchless/pkg/version"
)

// App is the branchless CLI surface: the adapter commands (init, hook) and
// the user-facing commands that build and execute rebase plans against the
// event log (move, restack, reword, hide/unhide, smartlog-data).
type App struct {
	command.Globals
	Init         command.Init         `cmd:"init" help:"Install the hook shims that keep the event log in sync"`
	Hook         command.Hook         `cmd:"hook" help:"Run a single hook invoked by the host VCS"`
	Move         command.Move         `cmd:"move" help:"Move a commit (and its descendants) onto another commit"`
	Restack      command.Restack      `cmd:"restack" help:"Reattach commits abandoned by a prior rewrite"`
	Reword       command.Reword       `cmd:"reword" help:"Change a commit's message"`
	Hide         command.Hide         `cmd:"hide" help:"Hide a commit from the smartlog"`
	Unhide       command.Unhide       `cmd:"unhide" help:"Unhide a previously hidden commit"`
	SmartlogData command.SmartlogData `cmd:"smartlog-data" help:"Dump the current snapshot's commit sets as JSON"`
}

func main() {
	_ = env.DelayInitializeEnv()
	var app App
	parser := kong.Must(&app,
		kong.Name("branchless"),
		kong.Description("Overlay event log and rewrite planner for a host VCS"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": version.GetVersionString(),
		},
	)
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = ctx.Run(&app.Globals)
	parser.FatalIfErrorf(err)
}
