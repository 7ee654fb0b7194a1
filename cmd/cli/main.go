package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/mediakeeper/internal/buildinfo"
	"github.com/dmitrijs2005/mediakeeper/internal/client/cli"
	"github.com/dmitrijs2005/mediakeeper/internal/config"
	"golang.org/x/term"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	app, err := cli.NewApp(ctx, cfg, os.Stdin, os.Stdout, interactive)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() { _ = app.Close() }()

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
