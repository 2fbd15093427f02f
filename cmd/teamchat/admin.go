package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fathima-sithara/teamchat/internal/config"
	"github.com/fathima-sithara/teamchat/internal/repository"
	"github.com/spf13/cobra"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the MongoDB indexes and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI)
		if err != nil {
			return err
		}
		defer func() { _ = mc.Disconnect(context.Background()) }()
		if err := repository.EnsureIndexes(ctx, mc.Database(cfg.Mongo.Database)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "indexes ensured")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		out, err := cfg.Dump()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}
