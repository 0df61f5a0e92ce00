package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Config string `short:"c" default:"quiztour.hcl" type:"path" help:"HCL configuration file"`
	Debug  bool   `help:"Enable debug logging"`
}

type CLI struct {
	Globals

	Version     kong.VersionFlag `short:"v" help:"Show version"`
	Serve       ServeCmd         `cmd:"" help:"Run the quiz bot chat gateway"`
	Results     ResultsCmd       `cmd:"" help:"List archived game results"`
	CheckConfig CheckConfigCmd   `cmd:"check-config" help:"Validate configuration and question banks"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("quiztour"),
		kong.Description("Elimination trivia tournaments for group chats"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
