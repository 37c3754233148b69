package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/upsun/udfhost/internal/config"
	"github.com/upsun/udfhost/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what the subcommands share once flags and configuration are parsed.
type app struct {
	v          *viper.Viper
	configPath string
	cnf        *config.Config
	logger     *zap.Logger
}

func rootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}
	cmd := &cobra.Command{
		Use:   "udfhost",
		Short: "Register user-defined functions and call them from CEL expressions",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a YAML configuration file")
	pf.String("log-level", "", "Log level: debug, info, warn or error (default warn)")
	pf.String("log-format", "", "Log format: console or json (default console)")
	pf.StringSlice("functions", nil,
		"Directories or Git URLs of function manifests to load, in addition to the defaults")
	pf.Bool("strict", false, "Fail when any function is rejected")
	for key, flag := range map[string]string{
		"log.level":        "log-level",
		"log.format":       "log-format",
		"functions.dirs":   "functions",
		"functions.strict": "strict",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	cmd.AddCommand(listCmd(a), validateCmd(a), evalCmd(a), docsCmd(a))
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cnf, err := config.LoadWith(a.v, a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cnf.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cnf = cnf
	a.logger = logger
	return nil
}
