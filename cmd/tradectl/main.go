package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path"

	"github.com/Tonic56/stock-trading-simulator/internal/app"
	"github.com/Tonic56/stock-trading-simulator/internal/config"
	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	env := &environment{out: os.Stdout, errOut: os.Stderr, open: openServices}
	register(commander, env)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func register(commander *subcommands.Commander, env *environment) {
	commander.Register(&quoteCmd{env: env}, "market")

	commander.Register(&registerCmd{env: env}, "accounts")
	commander.Register(&portfolioCmd{env: env}, "accounts")
	commander.Register(&historyCmd{env: env}, "accounts")
	commander.Register(&depositCmd{env: env}, "accounts")

	commander.Register(&tradeCmd{env: env, side: sideBuy}, "trading")
	commander.Register(&tradeCmd{env: env, side: sideSell}, "trading")
}

func openServices(ctx context.Context) (*app.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return app.NewServices(ctx, log, cfg)
}
