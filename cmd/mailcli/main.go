package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/ai-mail-assistant/cmd/mainconfig"
	"github.com/wolfman30/ai-mail-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/ai-mail-assistant/internal/config"
	"github.com/wolfman30/ai-mail-assistant/internal/conversation"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "mailcli [recipient]",
		Short: "Draft an email with the assistant and send the version you pick",
		Long: "Asks what the email should say, shows three generated drafts and sends the one you choose.\n" +
			"The recipient defaults to the configured sender address.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			cfg := appconfig.Load()

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger := logging.NewWithWriter(level, "text", os.Stderr)

			recipient := cfg.MailFromAddress
			if len(args) == 1 {
				recipient = args[0]
			}
			if strings.TrimSpace(recipient) == "" {
				return errors.New("no recipient given and MAIL_FROM_ADDRESS is not set")
			}

			err := run(cmd.Context(), cfg, logger, recipient)
			if err != nil {
				fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+err.Error()))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log provider and transport activity to stderr")
	return cmd
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, recipient string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	client, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer closeLLM()
	dispatcher, err := bootstrap.BuildDispatcher(cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	engine, err := bootstrap.BuildEngine(cfg, conversation.NewMemoryStore(), client, dispatcher, nil, logger)
	if err != nil {
		return err
	}

	s := &session{
		engine: engine,
		id:     cliIdentifier(),
		prompt: huhPrompter{},
		out:    os.Stdout,
	}
	return s.run(ctx, recipient)
}

func cliIdentifier() string {
	name := "local"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	return "cli:" + name
}
