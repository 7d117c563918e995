package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appconfig "github.com/wolfman30/ai-mail-assistant/internal/config"
	"github.com/wolfman30/ai-mail-assistant/internal/drafts"
	"github.com/wolfman30/ai-mail-assistant/internal/llm"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		intent    string
		recipient string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:          "llmcheck",
		Short:        "List Gemini models usable for drafting and optionally generate a sample draft set",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg := appconfig.Load()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			models, err := client.ListModels(ctx)
			if err != nil {
				return err
			}
			printModels(out, models)

			if strings.TrimSpace(intent) == "" {
				return nil
			}
			logger := logging.NewWithWriter("warn", "text", cmd.ErrOrStderr())
			return printDrafts(ctx, out, drafts.NewGenerator(client, logger), recipient, intent)
		},
	}
	cmd.Flags().StringVar(&intent, "draft", "", "generate a draft set for this intent with the configured model")
	cmd.Flags().StringVar(&recipient, "to", "someone@example.com", "recipient used in the draft prompt")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "overall deadline")
	return cmd
}

func printModels(w io.Writer, models []llm.ModelInfo) {
	if len(models) == 0 {
		fmt.Fprintln(w, "no models support generateContent for this key")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tNAME\tINPUT\tOUTPUT")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", m.ID, m.DisplayName, m.InputLimit, m.OutputLimit)
	}
	_ = tw.Flush()
}

type draftGenerator interface {
	Generate(ctx context.Context, recipient, intent string) ([]drafts.Draft, error)
}

func printDrafts(ctx context.Context, w io.Writer, gen draftGenerator, recipient, intent string) error {
	start := time.Now()
	list, err := gen.Generate(ctx, recipient, intent)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d drafts in %s\n", len(list), time.Since(start).Round(time.Millisecond))
	for _, d := range list {
		fmt.Fprintf(w, "\n[%d] %s\nSubject: %s\n%s\n", d.Index, d.Style, d.Subject, d.Body)
	}
	return nil
}
