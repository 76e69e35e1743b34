package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	waLog "go.mau.fi/whatsmeow/util/log"
	"golang.org/x/term"

	"github.com/idokatz/vaultbot/internal/bot"
	"github.com/idokatz/vaultbot/internal/config"
	"github.com/idokatz/vaultbot/internal/group"
	"github.com/idokatz/vaultbot/internal/identity"
	"github.com/idokatz/vaultbot/internal/registry"
	"github.com/idokatz/vaultbot/internal/session"
	"github.com/idokatz/vaultbot/internal/vault"
	"github.com/idokatz/vaultbot/internal/wa"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "vaultbot",
		Short: "WhatsApp assistant with per-user file storage and managed groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (optional).")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ansi := term.IsTerminal(int(os.Stdout.Fd()))
	log := waLog.Stdout("Bot", "INFO", ansi)

	store, err := registry.Open(cfg.RegistryDBPath)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer store.Close()

	resolver := identity.NewResolver(store, log.Sub("Identity"))
	if err := resolver.Seed(cfg.SeedMap()); err != nil {
		return fmt.Errorf("seed mappings: %w", err)
	}
	if mappings, err := store.AllMappings(); err != nil {
		return fmt.Errorf("load mappings: %w", err)
	} else if len(mappings) > 0 {
		log.Infof("Carrying %d learned identity mappings", len(mappings))
	}

	client, err := wa.Connect(ctx, wa.Config{
		SessionDBPath:      cfg.SessionDBPath,
		MaxConnAttempts:    cfg.MaxConnAttempts,
		ReconnectBaseDelay: cfg.ReconnectBaseDelay,
	}, waLog.Stdout("Client", "INFO", ansi))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	groups := group.New(store, client, log.Sub("Groups"), group.Config{
		OperatorJID:        cfg.OperatorJID,
		HardenInitialDelay: cfg.HardenInitialDelay,
		HardenStepDelay:    cfg.HardenStepDelay,
		Texts: group.Texts{
			AlreadyActive: bot.TextAlreadyActive,
			Created:       bot.TextGroupCreated,
			Welcome:       bot.TextGroupWelcome,
			Ready:         bot.TextGroupReady,
			Menu:          bot.PrivateMenu,
		},
	})

	dispatcher := bot.NewDispatcher(client, resolver, session.NewStore(),
		vault.New(cfg.VaultDir, log.Sub("Vault")), groups, log, cfg.RepoURL)

	client.Subscribe(dispatcher)
	log.Infof("vaultbot is up")
	client.Run()
	return nil
}
