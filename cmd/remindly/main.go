package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/theme"
)

var Version = "dev"

// configPath is bound to the persistent --config flag.
var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, theme.ResultStyle(false).Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "remindly",
		Short:         "Offline-first task lists that sync when you are online",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "Path to the config file")

	rootCmd.AddCommand(signUpCmd())
	rootCmd.AddCommand(signInCmd())
	rootCmd.AddCommand(signOutCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(listsCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(subtaskCmd())
	rootCmd.AddCommand(calendarCmd())

	return rootCmd
}
