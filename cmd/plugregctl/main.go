package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"plugreg/internal/config"
	"plugreg/internal/db"
	"plugreg/internal/registry"
	"plugreg/pkg/bus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "plugregctl",
		Short:         "Manage plugin records in the registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newModifyCommand())
	cmd.AddCommand(newRemoveCommand())
	cmd.AddCommand(newListCommand())
	return cmd
}

// newManager loads config, connects the store and the optional event bus,
// and returns a wired Manager with a cleanup function.
func newManager(ctx context.Context) (*registry.Manager, func(), error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.Migrate(ctx, database); err != nil {
		_ = db.Close(database)
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	var eventBus *bus.Bus
	if cfg.NATSURL != "" {
		eventBus, err = bus.New(cfg.NATSURL)
		if err != nil {
			_ = db.Close(database)
			return nil, nil, fmt.Errorf("connect event bus: %w", err)
		}
	}

	cleanup := func() {
		eventBus.Close()
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}
	return registry.NewManager(database, eventBus, log.Logger), cleanup, nil
}

func newAddCommand() *cobra.Command {
	var (
		descriptorFile   string
		descriptorString string
	)

	cmd := &cobra.Command{
		Use:   "add <name> <owner> <publicrepo> <dockerimage>",
		Short: "Register a new plugin",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, cleanup, err := newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			plugin, err := mgr.Add(ctx, registry.AddParams{
				Name:           args[0],
				Owner:          args[1],
				PublicRepo:     args[2],
				DockerImage:    args[3],
				DescriptorFile: descriptorFile,
				DescriptorJSON: descriptorString,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added plugin %s version %s (id %s)\n",
				plugin.Name, plugin.Version, plugin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&descriptorFile, "descriptorfile", "", "Path to a json descriptor file with the plugin representation")
	cmd.Flags().StringVar(&descriptorString, "descriptorstring", "", "A json string with the plugin representation")
	cmd.MarkFlagsMutuallyExclusive("descriptorfile", "descriptorstring")
	cmd.MarkFlagsOneRequired("descriptorfile", "descriptorstring")
	return cmd
}

func newModifyCommand() *cobra.Command {
	var newOwner string

	cmd := &cobra.Command{
		Use:   "modify <id> <publicrepo> <dockerimage>",
		Short: "Modify an existing plugin",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid plugin id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			mgr, cleanup, err := newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			plugin, err := mgr.Modify(ctx, id, args[1], args[2], newOwner)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "modified plugin %s (id %s)\n", plugin.Name, plugin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&newOwner, "newowner", "", "Username to append to the plugin's owners")
	return cmd
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an existing plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid plugin id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			mgr, cleanup, err := newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := mgr.Remove(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed plugin %s\n", id)
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, cleanup, err := newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			plugins, err := mgr.List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVERSION\tIMAGE\tOWNERS")
			for _, p := range plugins {
				owners := make([]string, 0, len(p.Owners))
				for _, o := range p.Owners {
					owners = append(owners, o.Username)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					p.ID, p.Name, p.Version, p.DockerImage, strings.Join(owners, ","))
			}
			return w.Flush()
		},
	}
}
