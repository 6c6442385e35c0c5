package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/civir-gex/sgextools/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Cert    commands.CertCmd  `cmd:"" help:"Inspect SAT certificates and sign or verify with them"`
		Token   commands.TokenCmd `cmd:"" help:"Generate and decode session tokens"`
		Debug   bool              `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
