package summarizer

import (
	"context"

	"textsummarize/internal/domain"
	"textsummarize/internal/textanalytics"
)

// LanguageService runs jobs on Azure AI Language.
type LanguageService struct {
	client *textanalytics.Client
}

func NewLanguageService(client *textanalytics.Client) *LanguageService {
	return &LanguageService{client: client}
}

func (s *LanguageService) StartExtractSummary(
	ctx context.Context,
	batch domain.Batch,
	actions domain.ActionSet,
) (Operation, error) {
	op, err := s.client.StartExtractSummary(ctx, batch, actions)
	if err != nil {
		return nil, err
	}

	return op, nil
}
