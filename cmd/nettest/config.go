package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jroosing/nettest/internal/cli"
	"github.com/jroosing/nettest/internal/config"
	"github.com/jroosing/nettest/internal/database"
)

var errNoProfile = errors.New("no profile database: pass --db or set NETTEST_DB")

func newConfigCommand(gs *cli.GlobalState) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration or edit the stored profile",
		// A broken profile must not lock the user out of fixing it.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadHarnessConfig(gs, cmd, false)
		},
	}

	c.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "List every config key",
		Args:  cli.UsageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, key := range config.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Short: "Print the effective value of a key",
		Args:  cli.UsageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := gs.Config.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	var stored bool
	list := &cobra.Command{
		Use:   "list",
		Short: "Print every effective key=value, or only the stored ones",
		Args:  cli.UsageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !stored {
				for _, key := range config.Keys() {
					v, _ := gs.Config.Get(key)
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, v)
				}
				return nil
			}
			return withProfile(gs, func(db *database.DB) error {
				values, err := db.GetAllConfig()
				if err != nil {
					return err
				}
				for _, key := range config.Keys() {
					if v, ok := values[key]; ok {
						fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, v)
					}
				}
				return nil
			})
		},
	}
	list.Flags().BoolVar(&stored, "stored", false, "only keys stored in the profile")
	c.AddCommand(list)

	c.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a value in the profile",
		Args:  cli.UsageArgs(cobra.ExactArgs(2)),
		RunE: func(_ *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			scratch := *gs.Config
			if err := scratch.Set(key, value); err != nil {
				return err
			}
			if err := scratch.Validate(); err != nil {
				return fmt.Errorf("%s=%s: %w", key, value, err)
			}
			return withProfile(gs, func(db *database.DB) error {
				return db.SetConfig(key, value)
			})
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a key from the profile",
		Args:  cli.UsageArgs(cobra.ExactArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			return withProfile(gs, func(db *database.DB) error {
				return db.DeleteConfig(args[0])
			})
		},
	})

	return c
}

func withProfile(gs *cli.GlobalState, fn func(*database.DB) error) error {
	path := gs.DBPath()
	if path == "" {
		return errNoProfile
	}
	db, err := database.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
