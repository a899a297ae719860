package summarizer

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"textsummarize/internal/domain"
)

const DefaultLanguage = "en"

// Service starts extract-summary jobs on a summarization backend.
type Service interface {
	StartExtractSummary(
		ctx context.Context,
		batch domain.Batch,
		actions domain.ActionSet,
	) (Operation, error)
}

// Operation is the handle of a job started by a Service.
type Operation interface {
	// Wait blocks until the job reaches a terminal status.
	Wait(ctx context.Context) error
	Info() domain.OperationInfo
	// Pages yields result pages once, in service order.
	Pages(ctx context.Context) iter.Seq2[domain.ResultPage, error]
}

type Options struct {
	// Language is attached to the submitted document. Empty means DefaultLanguage.
	Language string
	// Action configures the single extract-summary action.
	Action domain.ExtractSummaryAction
}

type Orchestrator struct {
	service Service
	opts    Options
	log     *slog.Logger
}

func New(service Service, opts Options, log *slog.Logger) *Orchestrator {
	if strings.TrimSpace(opts.Language) == "" {
		opts.Language = DefaultLanguage
	}
	if log == nil {
		log = slog.Default()
	}

	return &Orchestrator{
		service: service,
		opts:    opts,
		log:     log,
	}
}

// Summarize submits document as a one-item batch and renders the extracted
// sentences. Failed actions and documents are logged and skipped; only
// submission, wait and page transport failures are returned.
func (o *Orchestrator) Summarize(ctx context.Context, document string) (string, error) {
	batch := domain.NewBatch(o.opts.Language, document)
	actions := domain.ActionSet{
		ExtractSummary: []domain.ExtractSummaryAction{o.opts.Action},
	}

	op, err := o.service.StartExtractSummary(ctx, batch, actions)
	if err != nil {
		return "", fmt.Errorf("start operation: %w", err)
	}

	if err = op.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for operation: %w", err)
	}

	var b strings.Builder
	writeHeader(&b, op.Info())

	for page, pageErr := range op.Pages(ctx) {
		if pageErr != nil {
			return "", fmt.Errorf("read result page: %w", pageErr)
		}

		for _, f := range writePage(&b, page) {
			o.logFailure(ctx, f)
		}
		o.logWarnings(ctx, page)
	}

	text := b.String()
	o.log.InfoContext(ctx, "Returning summarized text",
		"operationID", op.Info().ID,
		"text", text)

	return text, nil
}

func (o *Orchestrator) logFailure(ctx context.Context, f Failure) {
	if f.DocumentID == "" {
		o.log.ErrorContext(ctx, "Summary action failed",
			"action", f.Action,
			"code", f.Err.Code,
			"message", f.Err.Message)

		return
	}

	o.log.ErrorContext(ctx, "Summary document failed",
		"action", f.Action,
		"documentID", f.DocumentID,
		"code", f.Err.Code,
		"message", f.Err.Message)
}

func (o *Orchestrator) logWarnings(ctx context.Context, page domain.ResultPage) {
	for _, action := range page.ExtractSummaryResults {
		for _, doc := range action.Documents {
			for _, w := range doc.Warnings {
				o.log.WarnContext(ctx, "Summary document has warning",
					"action", action.Name,
					"documentID", doc.ID,
					"code", w.Code,
					"message", w.Message)
			}
		}
	}
}
