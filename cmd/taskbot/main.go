package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskbot/internal/config"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "taskbot",
		Short:   "Task manager with Discord reminder delivery",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to the configuration file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(registerCmd(&configPath))
	rootCmd.AddCommand(credentialCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
