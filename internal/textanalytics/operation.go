package textanalytics

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"path"
	"sync"
	"time"

	"textsummarize/internal/domain"
	"textsummarize/internal/poll"
)

var (
	ErrNotCompleted = errors.New("operation has not completed")
	ErrConsumed     = errors.New("result pages are already consumed")
)

// Operation is the handle of a submitted analyze job.
type Operation struct {
	client   *Client
	location string
	batch    domain.Batch

	mu       sync.Mutex
	state    *jobState
	consumed bool
}

func newOperation(c *Client, location string, batch domain.Batch) *Operation {
	return &Operation{
		client:   c,
		location: location,
		batch:    batch,
	}
}

// Wait polls the job with the client's strategy until it reaches a terminal
// status. It returns at once when a terminal status was already observed.
func (o *Operation) Wait(ctx context.Context) error {
	if o.Done() {
		return nil
	}

	attempt := 0

	return poll.Until(ctx, o.client.strategy, func(ctx context.Context) (bool, time.Duration, error) {
		attempt++

		state, retryAfter, err := o.client.getJob(ctx, o.location)
		if err != nil {
			return false, 0, fmt.Errorf("get job: %w", err)
		}

		o.mu.Lock()
		o.state = state
		o.mu.Unlock()

		status := domain.OperationStatus(state.Status)
		o.client.log.DebugContext(ctx, "Analyze job is polled",
			"jobID", state.JobID,
			"status", status,
			"attempt", attempt,
			"retryAfter", retryAfter)

		if !status.Terminal() {
			return false, retryAfter, nil
		}

		o.client.log.InfoContext(ctx, "Analyze job is completed",
			"jobID", state.JobID,
			"status", status,
			"tasksCompleted", state.Tasks.Completed,
			"tasksFailed", state.Tasks.Failed)

		return true, 0, nil
	})
}

// Done reports whether the last observed status is terminal.
func (o *Operation) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state != nil && domain.OperationStatus(o.state.Status).Terminal()
}

func (o *Operation) Info() domain.OperationInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == nil {
		return domain.OperationInfo{
			ID:     jobIDFromLocation(o.location),
			Status: domain.StatusNotStarted,
		}
	}

	return o.state.info()
}

// Pages yields the result pages of a completed job, following nextLink
// lazily. The sequence can be consumed once.
func (o *Operation) Pages(ctx context.Context) iter.Seq2[domain.ResultPage, error] {
	return func(yield func(domain.ResultPage, error) bool) {
		o.mu.Lock()
		state := o.state
		consumed := o.consumed
		o.consumed = true
		o.mu.Unlock()

		if consumed {
			yield(domain.ResultPage{}, ErrConsumed)
			return
		}
		if state == nil || !domain.OperationStatus(state.Status).Terminal() {
			yield(domain.ResultPage{}, ErrNotCompleted)
			return
		}

		for {
			if !yield(state.page(o.batch), nil) {
				return
			}

			if state.NextLink == "" {
				return
			}

			next, _, err := o.client.getJob(ctx, state.NextLink)
			if err != nil {
				yield(domain.ResultPage{}, fmt.Errorf("get next page: %w", err))
				return
			}
			state = next
		}
	}
}

func jobIDFromLocation(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}

	id := path.Base(u.Path)
	if id == "." || id == "/" {
		return ""
	}

	return id
}
