package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/mediakeeper/internal/buildinfo"
	"github.com/dmitrijs2005/mediakeeper/internal/config"
	"github.com/dmitrijs2005/mediakeeper/internal/server"
	"github.com/dmitrijs2005/mediakeeper/internal/server/auth"
)

func main() {

	args := os.Args[1:]

	// "token <client>" mints a bearer token for the HTTP API and exits.
	if len(args) > 0 && args[0] == "token" {
		if len(args) < 2 {
			log.Fatal("usage: server token <client> [flags]")
		}
		cfg, err := config.LoadConfig(args[2:])
		if err != nil {
			log.Fatalf("%v", err)
		}
		token, err := auth.GenerateToken(args[1], []byte(cfg.SecretKey), cfg.TokenValidity)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(token)
		return
	}

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg, err := config.LoadConfig(args)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}
