package textanalytics

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"textsummarize/internal/domain"
)

const (
	extractiveSummarizationKind        = "ExtractiveSummarization"
	extractiveSummarizationResultsKind = "ExtractiveSummarizationLROResults"

	taskStatusFailed = "failed"
)

type jobRequest struct {
	DisplayName   string        `json:"displayName,omitempty"`
	AnalysisInput analysisInput `json:"analysisInput"`
	Tasks         []jobTask     `json:"tasks"`
}

type analysisInput struct {
	Documents []inputDocument `json:"documents"`
}

type inputDocument struct {
	ID       string `json:"id"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text"`
}

type jobTask struct {
	Kind       string         `json:"kind"`
	TaskName   string         `json:"taskName,omitempty"`
	Parameters taskParameters `json:"parameters"`
}

type taskParameters struct {
	SentenceCount int    `json:"sentenceCount,omitempty"`
	SortBy        string `json:"sortBy,omitempty"`
	ModelVersion  string `json:"modelVersion,omitempty"`
}

type jobState struct {
	JobID               string      `json:"jobId"`
	DisplayName         string      `json:"displayName,omitempty"`
	CreatedDateTime     time.Time   `json:"createdDateTime"`
	ExpirationDateTime  *time.Time  `json:"expirationDateTime,omitempty"`
	LastUpdatedDateTime time.Time   `json:"lastUpdatedDateTime"`
	Status              string      `json:"status"`
	Errors              []wireError `json:"errors,omitempty"`
	Tasks               jobTasks    `json:"tasks"`
	NextLink            string      `json:"nextLink,omitempty"`
}

type jobTasks struct {
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	InProgress int        `json:"inProgress"`
	Total      int        `json:"total"`
	Items      []taskItem `json:"items,omitempty"`
}

type taskItem struct {
	Kind               string       `json:"kind"`
	TaskName           string       `json:"taskName,omitempty"`
	Status             string       `json:"status"`
	LastUpdateDateTime time.Time    `json:"lastUpdateDateTime"`
	Results            *taskResults `json:"results,omitempty"`
}

type taskResults struct {
	Documents    []documentSummary `json:"documents"`
	Errors       []documentError   `json:"errors"`
	ModelVersion string            `json:"modelVersion,omitempty"`
}

type documentSummary struct {
	ID        string         `json:"id"`
	Sentences []wireSentence `json:"sentences"`
	Warnings  []wireWarning  `json:"warnings,omitempty"`
}

type wireSentence struct {
	Text      string  `json:"text"`
	RankScore float64 `json:"rankScore"`
	Offset    int     `json:"offset"`
	Length    int     `json:"length"`
}

type wireWarning struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	TargetRef string `json:"targetRef,omitempty"`
}

type documentError struct {
	ID    string    `json:"id"`
	Error wireError `json:"error"`
}

type wireError struct {
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	Target     string     `json:"target,omitempty"`
	InnerError *wireError `json:"innererror,omitempty"`
}

// resolve prefers the innermost code and message, which are the specific ones.
func (e wireError) resolve() (string, string) {
	code, message := e.Code, e.Message
	for inner := e.InnerError; inner != nil; inner = inner.InnerError {
		if inner.Code != "" {
			code = inner.Code
		}
		if inner.Message != "" {
			message = inner.Message
		}
	}

	return code, message
}

func (e wireError) toDomain() *domain.ServiceError {
	code, message := e.resolve()

	return &domain.ServiceError{
		Code:    code,
		Message: message,
		Target:  e.Target,
	}
}

func newJobRequest(
	displayName string,
	batch domain.Batch,
	actions domain.ActionSet,
) jobRequest {
	req := jobRequest{
		DisplayName: displayName,
		AnalysisInput: analysisInput{
			Documents: make([]inputDocument, 0, len(batch)),
		},
		Tasks: make([]jobTask, 0, len(actions.ExtractSummary)),
	}

	for _, doc := range batch {
		req.AnalysisInput.Documents = append(req.AnalysisInput.Documents, inputDocument{
			ID:       doc.ID,
			Language: doc.Language,
			Text:     doc.Text,
		})
	}

	for i, action := range actions.ExtractSummary {
		name := strings.TrimSpace(action.Name)
		if name == "" {
			name = fmt.Sprintf("%s_%d", extractiveSummarizationKind, i)
		}

		req.Tasks = append(req.Tasks, jobTask{
			Kind:     extractiveSummarizationKind,
			TaskName: name,
			Parameters: taskParameters{
				SentenceCount: action.MaxSentenceCount,
				SortBy:        string(action.OrderBy),
				ModelVersion:  action.ModelVersion,
			},
		})
	}

	return req
}

func (s *jobState) info() domain.OperationInfo {
	info := domain.OperationInfo{
		ID:           s.JobID,
		DisplayName:  s.DisplayName,
		Status:       domain.OperationStatus(s.Status),
		CreatedOn:    s.CreatedDateTime,
		LastModified: s.LastUpdatedDateTime,
	}
	if s.ExpirationDateTime != nil {
		info.ExpiresOn = *s.ExpirationDateTime
	}

	return info
}

func (s *jobState) page(batch domain.Batch) domain.ResultPage {
	var page domain.ResultPage

	for i, item := range s.Tasks.Items {
		if item.Kind != extractiveSummarizationResultsKind {
			continue
		}

		result := domain.ActionResult{Name: item.TaskName}

		if item.Status == taskStatusFailed || item.Results == nil {
			result.Err = s.taskError(i)
			page.ExtractSummaryResults = append(page.ExtractSummaryResults, result)

			continue
		}

		result.Documents = documentResults(item.Results, batch)
		page.ExtractSummaryResults = append(page.ExtractSummaryResults, result)
	}

	if len(page.ExtractSummaryResults) == 0 && s.Status == taskStatusFailed {
		page.ExtractSummaryResults = s.jobFailures()
	}

	return page
}

// jobFailures reports the errors of a job that failed before producing any
// task item, one failed action per job error.
func (s *jobState) jobFailures() []domain.ActionResult {
	if len(s.Errors) == 0 {
		return []domain.ActionResult{{Err: s.taskError(0)}}
	}

	out := make([]domain.ActionResult, 0, len(s.Errors))
	for _, e := range s.Errors {
		out = append(out, domain.ActionResult{Err: e.toDomain()})
	}

	return out
}

// taskError finds the job error addressed to the task at index i.
func (s *jobState) taskError(i int) *domain.ServiceError {
	target := fmt.Sprintf("#/tasks/items/%d", i)
	for _, e := range s.Errors {
		if strings.EqualFold(e.Target, target) {
			return e.toDomain()
		}
	}

	if len(s.Errors) > 0 {
		return s.Errors[0].toDomain()
	}

	return &domain.ServiceError{
		Code:    "InternalServerError",
		Message: "task failed without error details",
		Target:  target,
	}
}

// documentResults merges successes and errors back into input order.
func documentResults(results *taskResults, batch domain.Batch) []domain.DocumentResult {
	out := make([]domain.DocumentResult, 0, len(results.Documents)+len(results.Errors))

	for _, doc := range results.Documents {
		r := domain.DocumentResult{
			ID:        doc.ID,
			Sentences: make([]domain.Sentence, 0, len(doc.Sentences)),
		}
		for _, s := range doc.Sentences {
			r.Sentences = append(r.Sentences, domain.Sentence{
				Text:      s.Text,
				RankScore: s.RankScore,
				Offset:    s.Offset,
				Length:    s.Length,
			})
		}
		for _, w := range doc.Warnings {
			r.Warnings = append(r.Warnings, domain.ServiceError{
				Code:    w.Code,
				Message: w.Message,
				Target:  w.TargetRef,
			})
		}

		out = append(out, r)
	}

	for _, docErr := range results.Errors {
		out = append(out, domain.DocumentResult{
			ID:  docErr.ID,
			Err: docErr.Error.toDomain(),
		})
	}

	slices.SortStableFunc(out, func(a, b domain.DocumentResult) int {
		return cmp.Compare(batchPosition(batch, a.ID), batchPosition(batch, b.ID))
	})

	return out
}

// batchPosition sorts unknown IDs after known ones.
func batchPosition(batch domain.Batch, id string) int {
	if i := batch.IndexOf(id); i >= 0 {
		return i
	}

	return len(batch)
}
