package summarizer

import (
	"context"
	"errors"
	"iter"
	"sync"

	"textsummarize/internal/domain"
)

var ErrPagesConsumed = errors.New("result pages are already consumed")

// completedOperation is an Operation whose results are known up front.
type completedOperation struct {
	info  domain.OperationInfo
	pages []domain.ResultPage

	mu       sync.Mutex
	consumed bool
}

func newCompletedOperation(info domain.OperationInfo, pages ...domain.ResultPage) *completedOperation {
	return &completedOperation{info: info, pages: pages}
}

func (o *completedOperation) Wait(ctx context.Context) error {
	return ctx.Err()
}

func (o *completedOperation) Info() domain.OperationInfo {
	return o.info
}

func (o *completedOperation) Pages(_ context.Context) iter.Seq2[domain.ResultPage, error] {
	return func(yield func(domain.ResultPage, error) bool) {
		o.mu.Lock()
		consumed := o.consumed
		o.consumed = true
		o.mu.Unlock()

		if consumed {
			yield(domain.ResultPage{}, ErrPagesConsumed)
			return
		}

		for _, page := range o.pages {
			if !yield(page, nil) {
				return
			}
		}
	}
}
