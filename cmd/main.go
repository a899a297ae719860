package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"textsummarize/internal/config"
	"textsummarize/internal/document"
	"textsummarize/internal/domain"
	"textsummarize/internal/logging"
	"textsummarize/internal/poll"
	"textsummarize/internal/summarizer"
	"textsummarize/internal/textanalytics"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type flags struct {
	envFile   string
	file      string
	url       string
	feed      string
	text      string
	provider  string
	stripURLs bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "textsummarize",
		Short: "Extract summary sentences from a document",
		Long: `textsummarize submits one document to Azure AI Language (or OpenAI)
for extractive summarization, waits for the job to finish and prints
the extracted sentences.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "Optional .env file with configuration")
	cmd.Flags().StringVar(&f.file, "file", "", "Summarize the text of a local file")
	cmd.Flags().StringVar(&f.url, "url", "", "Summarize the text of a web page")
	cmd.Flags().StringVar(&f.feed, "feed", "", "Summarize the newest item of an RSS/Atom feed")
	cmd.Flags().StringVar(&f.text, "text", "", "Summarize the given text (default: built-in sample)")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Summarization provider: language or openai (overrides PROVIDER)")
	cmd.Flags().BoolVar(&f.stripURLs, "strip-urls", false, "Remove links from the document before submission")
	cmd.MarkFlagsMutuallyExclusive("file", "url", "feed", "text")

	return cmd
}

func run(ctx context.Context, f flags, stdout io.Writer, stderr io.Writer) error {
	start := time.Now()

	cfg, err := config.Load(f.envFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return err
	}
	if f.provider != "" {
		cfg.Provider = f.provider
		if err = cfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return err
		}
	}

	log, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return err
	}

	service, err := newService(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize summarization service",
			"error", err,
			"provider", cfg.Provider)

		return err
	}

	src := sourceFromFlags(f)
	text, err := document.NewLoader(nil, log).Load(ctx, src)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load document",
			"error", err,
			"sourceKind", src.Kind,
			"source", src.Value)

		return err
	}
	text = document.Normalize(text, f.stripURLs)

	orchestrator := summarizer.New(service, summarizer.Options{
		Language: cfg.Language,
		Action: domain.ExtractSummaryAction{
			MaxSentenceCount: cfg.SentenceCount,
			OrderBy:          domain.SortOrder(cfg.SortBy),
		},
	}, log)

	summary, err := orchestrator.Summarize(ctx, text)
	if err != nil {
		log.ErrorContext(ctx, "Failed to summarize document",
			"error", err,
			"provider", cfg.Provider,
			"elapsedSeconds", time.Since(start).Seconds())

		return err
	}

	if _, err = fmt.Fprint(stdout, summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	log.InfoContext(ctx, "Exiting...",
		"provider", cfg.Provider,
		"elapsedSeconds", time.Since(start).Seconds())

	return nil
}

func newService(
	ctx context.Context,
	cfg config.Config,
	log *slog.Logger,
) (summarizer.Service, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		s, err := summarizer.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, log)
		if err != nil {
			return nil, fmt.Errorf("create OpenAI service: %w", err)
		}

		log.InfoContext(ctx, "OpenAI summarizer is initialized",
			"provider", config.ProviderOpenAI)

		return s, nil
	case config.ProviderLanguage:
		if cfg.UsesPlaceholder() {
			log.WarnContext(ctx, "AI_URL or AI_SECRET is missing so placeholder will be used",
				"placeholder", config.Placeholder)
		}

		client, err := textanalytics.New(textanalytics.Config{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			PollStrategy: poll.Throttle(
				poll.Exponential{
					Initial: cfg.PollInitialInterval,
					Max:     cfg.PollMaxInterval,
					Factor:  poll.DefaultFactor,
				},
				rate.NewLimiter(rate.Every(poll.DefaultMinCheckGap), 1),
			),
		}, log)
		if err != nil {
			return nil, fmt.Errorf("create text analytics client: %w", err)
		}

		log.InfoContext(ctx, "Text analytics client is initialized",
			"provider", config.ProviderLanguage,
			"endpoint", cfg.Endpoint)

		return summarizer.NewLanguageService(client), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func sourceFromFlags(f flags) document.Source {
	switch {
	case f.file != "":
		return document.Source{Kind: document.SourceFile, Value: f.file}
	case f.url != "":
		return document.Source{Kind: document.SourceURL, Value: f.url}
	case f.feed != "":
		return document.Source{Kind: document.SourceFeed, Value: f.feed}
	default:
		return document.Source{Kind: document.SourceInline, Value: f.text}
	}
}
