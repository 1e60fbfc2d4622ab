// Command recipes runs the recipe HTTP service.
//
// Configuration comes from the environment (optionally seeded from a .env
// file). Subcommands:
//
//	recipes serve     start the HTTP API (default)
//	recipes migrate   create or update the database schema and exit
//	recipes version   print the build version
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// overridden during build with ldflags
var version = "dev"

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("recipes exited with error")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
