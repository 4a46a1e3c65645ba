package main

import (
	"context"
	"os"

	"coffeeshop/internal/transports/cli"
	"coffeeshop/pkg/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	root := cli.New(buildVersion())
	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.New(os.Stderr, "error", "json").Error("command failed", "err", err)
		os.Exit(1)
	}
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}
