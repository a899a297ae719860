package textanalytics_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"textsummarize/internal/domain"
	"textsummarize/internal/poll"
	"textsummarize/internal/textanalytics"
)

const testAPIKey = "test-key"

type fakeService struct {
	t *testing.T

	mu         sync.Mutex
	submitted  map[string]any
	apiKeys    []string
	polls      int
	runningFor int
	pages      []string
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /language/analyze-text/jobs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.apiKeys = append(f.apiKeys, r.Header.Get("Ocp-Apim-Subscription-Key"))

		if r.URL.Query().Get("api-version") != textanalytics.DefaultAPIVersion {
			f.t.Errorf("unexpected api-version: %q", r.URL.Query().Get("api-version"))
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			f.t.Errorf("read body: %v", err)
		}
		if err = json.Unmarshal(body, &f.submitted); err != nil {
			f.t.Errorf("unmarshal body: %v", err)
		}

		w.Header().Set("Operation-Location", "/language/analyze-text/jobs/job-1?api-version=2023-04-01")
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("GET /language/analyze-text/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.apiKeys = append(f.apiKeys, r.Header.Get("Ocp-Apim-Subscription-Key"))

		if page := r.URL.Query().Get("page"); page != "" {
			idx := int(page[0] - '0')
			_, _ = io.WriteString(w, f.pages[idx])
			return
		}

		f.polls++
		if f.polls <= f.runningFor {
			w.Header().Set("Retry-After", "1")
			_, _ = io.WriteString(w, `{"jobId":"job-1","status":"running","tasks":{"total":1,"inProgress":1}}`)
			return
		}

		_, _ = io.WriteString(w, f.pages[0])
	})

	return mux
}

func newTestClient(t *testing.T, f *fakeService) *textanalytics.Client {
	t.Helper()

	f.t = t
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c, err := textanalytics.New(textanalytics.Config{
		Endpoint:     srv.URL,
		APIKey:       testAPIKey,
		HTTPClient:   srv.Client(),
		PollStrategy: poll.Immediate{},
		RetryDelay:   time.Millisecond,
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return c
}

const succeededPage = `{
  "jobId": "job-1",
  "displayName": "textsummarize",
  "createdDateTime": "2026-10-14T10:00:00Z",
  "expirationDateTime": "2026-10-15T10:00:00Z",
  "lastUpdatedDateTime": "2026-10-14T10:00:05Z",
  "status": "succeeded",
  "errors": [],
  "tasks": {
    "completed": 1, "failed": 0, "inProgress": 0, "total": 1,
    "items": [{
      "kind": "ExtractiveSummarizationLROResults",
      "taskName": "summary",
      "status": "succeeded",
      "results": {
        "documents": [{
          "id": "0",
          "sentences": [
            {"text": "First sentence.", "rankScore": 0.9, "offset": 0, "length": 15},
            {"text": "Second sentence.", "rankScore": 0.5, "offset": 16, "length": 16}
          ],
          "warnings": []
        }],
        "errors": [],
        "modelVersion": "2022-10-01"
      }
    }]
  }
}`

func TestStartExtractSummarySendsJob(t *testing.T) {
	f := &fakeService{pages: []string{succeededPage}}
	c := newTestClient(t, f)

	batch := domain.NewBatch("en", "Some text.")
	actions := domain.ActionSet{ExtractSummary: []domain.ExtractSummaryAction{{
		Name:             "summary",
		MaxSentenceCount: 2,
		OrderBy:          domain.SortByRank,
	}}}

	op, err := c.StartExtractSummary(context.Background(), batch, actions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := op.Info().ID; got != "job-1" {
		t.Fatalf("expected job ID from operation location, got %q", got)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	raw, _ := json.Marshal(f.submitted)
	body := string(raw)
	for _, want := range []string{
		`"kind":"ExtractiveSummarization"`,
		`"sentenceCount":2`,
		`"sortBy":"Rank"`,
		`"taskName":"summary"`,
		`"text":"Some text."`,
		`"language":"en"`,
		`"id":"0"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected request body to contain %s, got %s", want, body)
		}
	}

	if len(f.apiKeys) != 1 || f.apiKeys[0] != testAPIKey {
		t.Fatalf("unexpected api keys: %v", f.apiKeys)
	}
}

func TestOperationWaitPollsUntilTerminal(t *testing.T) {
	f := &fakeService{pages: []string{succeededPage}, runningFor: 2}
	c := newTestClient(t, f)

	op, err := c.StartExtractSummary(context.Background(), domain.NewBatch("en", "text"), domain.ActionSet{
		ExtractSummary: []domain.ExtractSummaryAction{{}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, pageErr := range op.Pages(context.Background()) {
		if !errors.Is(pageErr, textanalytics.ErrNotCompleted) {
			t.Fatalf("expected ErrNotCompleted before wait, got %v", pageErr)
		}
	}

	op, err = c.StartExtractSummary(context.Background(), domain.NewBatch("en", "text"), domain.ActionSet{
		ExtractSummary: []domain.ExtractSummaryAction{{}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err = op.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}

	if !op.Done() {
		t.Fatalf("expected operation to be done")
	}

	if err = op.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected second wait error: %v", err)
	}

	f.mu.Lock()
	polls := f.polls
	f.mu.Unlock()
	if polls != 3 {
		t.Fatalf("expected 3 polls and none after completion, got %d", polls)
	}

	info := op.Info()
	if info.Status != domain.StatusSucceeded {
		t.Fatalf("unexpected status: %q", info.Status)
	}
	if !info.CreatedOn.Equal(time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created on: %v", info.CreatedOn)
	}
	if !info.ExpiresOn.Equal(time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expires on: %v", info.ExpiresOn)
	}

	var pages []domain.ResultPage
	for page, pageErr := range op.Pages(context.Background()) {
		if pageErr != nil {
			t.Fatalf("unexpected page error: %v", pageErr)
		}
		pages = append(pages, page)
	}

	if len(pages) != 1 || len(pages[0].ExtractSummaryResults) != 1 {
		t.Fatalf("unexpected pages: %+v", pages)
	}

	docs := pages[0].ExtractSummaryResults[0].Documents
	if len(docs) != 1 || len(docs[0].Sentences) != 2 {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if docs[0].Sentences[1].Text != "Second sentence." {
		t.Fatalf("unexpected sentence: %q", docs[0].Sentences[1].Text)
	}

	for _, pageErr := range op.Pages(context.Background()) {
		if !errors.Is(pageErr, textanalytics.ErrConsumed) {
			t.Fatalf("expected ErrConsumed on second pass, got %v", pageErr)
		}
	}
}

func TestOperationPagesFollowsNextLink(t *testing.T) {
	first := strings.Replace(succeededPage,
		`"status": "succeeded",
  "errors": [],`,
		`"status": "succeeded",
  "nextLink": "/language/analyze-text/jobs/job-1?api-version=2023-04-01&page=1",
  "errors": [],`, 1)
	second := strings.Replace(succeededPage, "First sentence.", "Third sentence.", 1)

	f := &fakeService{pages: []string{first, second}}
	c := newTestClient(t, f)

	op, err := c.StartExtractSummary(context.Background(), domain.NewBatch("en", "text"), domain.ActionSet{
		ExtractSummary: []domain.ExtractSummaryAction{{}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err = op.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}

	var firstSentences []string
	for page, pageErr := range op.Pages(context.Background()) {
		if pageErr != nil {
			t.Fatalf("unexpected page error: %v", pageErr)
		}
		firstSentences = append(firstSentences, page.ExtractSummaryResults[0].Documents[0].Sentences[0].Text)
	}

	if len(firstSentences) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(firstSentences))
	}
	if firstSentences[0] != "First sentence." || firstSentences[1] != "Third sentence." {
		t.Fatalf("unexpected page order: %v", firstSentences)
	}
}

func TestNewRejectsRelativeEndpoint(t *testing.T) {
	_, err := textanalytics.New(textanalytics.Config{
		Endpoint: "SETCONFIG!",
		APIKey:   "SETCONFIG!",
	}, slog.New(slog.DiscardHandler))
	if err == nil {
		t.Fatalf("expected error for placeholder endpoint")
	}
}

func TestStartExtractSummaryUnauthorized(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()

		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"code":"401","message":"Access denied due to invalid subscription key."}}`)
	}))
	t.Cleanup(srv.Close)

	c, err := textanalytics.New(textanalytics.Config{
		Endpoint:   srv.URL,
		APIKey:     "bad",
		HTTPClient: srv.Client(),
		RetryDelay: time.Millisecond,
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	op, err := c.StartExtractSummary(context.Background(), domain.NewBatch("en", "text"), domain.ActionSet{})
	if err == nil {
		t.Fatalf("expected error, got operation %v", op)
	}

	var apiErr *textanalytics.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "401" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected unauthorized not to be retried, got %d calls", calls)
	}
}

func TestStartExtractSummaryRetriesServiceUnavailable(t *testing.T) {
	var (
		calls      int
		requestIDs []string
		mu         sync.Mutex
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		requestIDs = append(requestIDs, r.Header.Get("x-ms-client-request-id"))
		mu.Unlock()

		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Operation-Location", "/language/analyze-text/jobs/job-9")
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	c, err := textanalytics.New(textanalytics.Config{
		Endpoint:   srv.URL,
		APIKey:     testAPIKey,
		HTTPClient: srv.Client(),
		RetryDelay: time.Millisecond,
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	op, err := c.StartExtractSummary(context.Background(), domain.NewBatch("en", "text"), domain.ActionSet{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Info().ID != "job-9" {
		t.Fatalf("unexpected job ID: %q", op.Info().ID)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	if requestIDs[0] == "" {
		t.Fatalf("expected client request ID to be set")
	}
	for i, id := range requestIDs {
		if id != requestIDs[0] {
			t.Fatalf("attempt %d: client request ID %q differs from %q", i, id, requestIDs[0])
		}
	}
}

func TestStartExtractSummaryMissingOperationLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	c, err := textanalytics.New(textanalytics.Config{
		Endpoint:   srv.URL,
		APIKey:     testAPIKey,
		HTTPClient: srv.Client(),
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err = c.StartExtractSummary(context.Background(), domain.NewBatch("en", "text"), domain.ActionSet{}); err == nil {
		t.Fatalf("expected error for missing operation location")
	}
}
