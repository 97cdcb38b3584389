package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskbot/internal/config"
	"taskbot/internal/credential"
	"taskbot/internal/discord"
)

func registerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "register-commands",
		Short: "Register the /task slash commands with Discord",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Discord.ApplicationID == "" {
				return fmt.Errorf("discord.application_id is not configured")
			}

			token, err := credential.Get(credential.KeyBotToken)
			if err != nil {
				return fmt.Errorf("reading bot token (set it with `taskbot credential set %s`): %w",
					credential.KeyBotToken, err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client := discord.NewRegisterClient()
			if err := client.RegisterCommands(ctx, cfg.Discord.ApplicationID, token); err != nil {
				return err
			}

			fmt.Println("Slash commands registered.")
			return nil
		},
	}
}
