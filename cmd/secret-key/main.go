// Package main generates a root secret for the game service.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/hanabi.space/internal/platform/config"
	"github.com/louisbranch/hanabi.space/internal/tools/secretkey"
)

func main() {
	cfg, err := secretkey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := secretkey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate secret: %v", err)
	}
}
