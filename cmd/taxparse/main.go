package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/subcommands"

	"github.com/rumor-ml/commons.systems/taxparse/internal/config"
	"github.com/rumor-ml/commons.systems/taxparse/internal/ui"
)

const (
	version = "0.1.0"
)

var versionFlag = flag.Bool("version", false, "Show version")

func main() {
	cfg, err := config.Load()
	if err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}

	commander := subcommands.NewCommander(flag.CommandLine, "taxparse")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commander.Register(&reportCmd{cfg: cfg}, "")
	commander.Register(&classifyCmd{cfg: cfg}, "")
	commander.Register(&lotsCmd{cfg: cfg}, "")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("taxparse version %s\n", version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
