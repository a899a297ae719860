package summarizer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"textsummarize/internal/domain"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 2048

	defaultSentenceCount = 3

	codeInvalidDocument = "InvalidDocument"
	codeInvalidResponse = "InvalidResponse"

	systemPrompt = `Select the %d most important sentences of the document.

Rules:
- Copy each sentence verbatim, character for character.
- Never rephrase, merge or shorten sentences.
- Output one sentence per line, most important first.
- Output nothing else.`
)

var errInvalidResponse = errors.New("invalid response")

// OpenAIService extracts summary sentences with OpenAI's Responses API.
// Operations it returns are already complete.
type OpenAIService struct {
	generate func(ctx context.Context, instructions, text string) (string, error)
	now      func() time.Time
	log      *slog.Logger
}

func NewOpenAIService(apiKey, model string, log *slog.Logger) (*OpenAIService, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	chatModel := openai.ChatModelGPT5Mini2025_08_07
	if model = strings.TrimSpace(model); model != "" {
		chatModel = openai.ChatModel(model)
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return newOpenAIService(func(ctx context.Context, instructions, text string) (string, error) {
		return generateResponse(ctx, client, chatModel, instructions, text)
	}, log), nil
}

func newOpenAIService(
	generate func(ctx context.Context, instructions, text string) (string, error),
	log *slog.Logger,
) *OpenAIService {
	if log == nil {
		log = slog.Default()
	}

	return &OpenAIService{
		generate: generate,
		now:      time.Now,
		log:      log,
	}
}

func (s *OpenAIService) StartExtractSummary(
	ctx context.Context,
	batch domain.Batch,
	actions domain.ActionSet,
) (Operation, error) {
	info := domain.OperationInfo{
		ID:          uuid.NewString(),
		DisplayName: "openai",
		Status:      domain.StatusSucceeded,
		CreatedOn:   s.now().UTC(),
	}

	page := domain.ResultPage{
		ExtractSummaryResults: make([]domain.ActionResult, 0, len(actions.ExtractSummary)),
	}

	for i, action := range actions.ExtractSummary {
		name := strings.TrimSpace(action.Name)
		if name == "" {
			name = fmt.Sprintf("ExtractiveSummarization_%d", i)
		}

		result := domain.ActionResult{
			Name:      name,
			Documents: make([]domain.DocumentResult, 0, len(batch)),
		}

		for _, doc := range batch {
			docResult, err := s.summarizeDocument(ctx, action, doc)
			if err != nil {
				return nil, fmt.Errorf("summarize document %q: %w", doc.ID, err)
			}

			if docResult.Failed() {
				info.Status = domain.StatusPartiallyCompleted
			}

			result.Documents = append(result.Documents, docResult)
		}

		page.ExtractSummaryResults = append(page.ExtractSummaryResults, result)
	}

	info.LastModified = s.now().UTC()

	return newCompletedOperation(info, page), nil
}

func (s *OpenAIService) summarizeDocument(
	ctx context.Context,
	action domain.ExtractSummaryAction,
	doc domain.Document,
) (domain.DocumentResult, error) {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return domain.DocumentResult{
			ID: doc.ID,
			Err: &domain.ServiceError{
				Code:    codeInvalidDocument,
				Message: "Document text is empty.",
			},
		}, nil
	}

	count := action.MaxSentenceCount
	if count <= 0 {
		count = defaultSentenceCount
	}

	output, err := s.generate(ctx, fmt.Sprintf(systemPrompt, count), text)
	if errors.Is(err, errInvalidResponse) {
		return domain.DocumentResult{
			ID: doc.ID,
			Err: &domain.ServiceError{
				Code:    codeInvalidResponse,
				Message: err.Error(),
			},
		}, nil
	}
	if err != nil {
		return domain.DocumentResult{}, err
	}

	sentences, dropped := extractSentences(text, output, count, action.OrderBy)
	if dropped > 0 {
		s.log.WarnContext(ctx, "Dropped model lines that are not in the document",
			"documentID", doc.ID,
			"droppedCount", dropped)
	}

	if len(sentences) == 0 {
		return domain.DocumentResult{
			ID: doc.ID,
			Err: &domain.ServiceError{
				Code:    codeInvalidResponse,
				Message: "No sentence of the output occurs in the document.",
			},
		}, nil
	}

	return domain.DocumentResult{ID: doc.ID, Sentences: sentences}, nil
}

// extractSentences keeps the output lines that occur verbatim in document,
// up to limit, and reports how many were dropped. Offsets and lengths are
// byte positions in document with runs of whitespace collapsed to one space.
func extractSentences(
	document string,
	output string,
	limit int,
	orderBy domain.SortOrder,
) ([]domain.Sentence, int) {
	haystack := collapseSpaces(document)

	var (
		sentences []domain.Sentence
		dropped   int
		seen      = make(map[string]struct{})
	)

	for line := range strings.Lines(output) {
		candidate := collapseSpaces(line)
		if candidate == "" {
			continue
		}

		offset := strings.Index(haystack, candidate)
		if offset < 0 {
			dropped++
			continue
		}

		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		if len(sentences) == limit {
			continue
		}

		sentences = append(sentences, domain.Sentence{
			Text:   candidate,
			Offset: offset,
			Length: len(candidate),
		})
	}

	for i := range sentences {
		sentences[i].RankScore = 1 - float64(i)/float64(len(sentences))
	}

	if orderBy != domain.SortByRank {
		slices.SortStableFunc(sentences, func(a, b domain.Sentence) int {
			return cmp.Compare(a.Offset, b.Offset)
		})
	}

	return sentences, dropped
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func generateResponse(
	ctx context.Context,
	client openai.Client,
	model openai.ChatModel,
	instructions string,
	text string,
) (string, error) {
	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           model,
			ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(instructions),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(text),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"%w: response is incomplete (reason = %s, maxOutputTokens = %d)",
				errInvalidResponse,
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		output := strings.TrimSpace(resp.OutputText())
		if output == "" {
			return "", fmt.Errorf("%w: output text is missing (status = %s)", errInvalidResponse, resp.Status)
		}
		return output, nil
	}
}
