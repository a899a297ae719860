package domain

import (
	"strconv"
	"time"
)

type Document struct {
	ID       string
	Text     string
	Language string
}

// Batch is the ordered set of documents submitted in one call.
type Batch []Document

// NewBatch assigns positional IDs ("0", "1", ...) to texts.
func NewBatch(language string, texts ...string) Batch {
	batch := make(Batch, 0, len(texts))
	for i, text := range texts {
		batch = append(batch, Document{
			ID:       strconv.Itoa(i),
			Text:     text,
			Language: language,
		})
	}

	return batch
}

// IndexOf returns the position of the document with the given ID or -1.
func (b Batch) IndexOf(id string) int {
	for i, doc := range b {
		if doc.ID == id {
			return i
		}
	}

	return -1
}

type SortOrder string

const (
	SortByOffset SortOrder = "Offset"
	SortByRank   SortOrder = "Rank"
)

// ExtractSummaryAction requests extractive summarization. Zero values leave
// the choice to the service.
type ExtractSummaryAction struct {
	Name             string
	MaxSentenceCount int
	OrderBy          SortOrder
	ModelVersion     string
}

type ActionSet struct {
	ExtractSummary []ExtractSummaryAction
}

type OperationStatus string

const (
	StatusNotStarted         OperationStatus = "notStarted"
	StatusRunning            OperationStatus = "running"
	StatusCancelling         OperationStatus = "cancelling"
	StatusSucceeded          OperationStatus = "succeeded"
	StatusFailed             OperationStatus = "failed"
	StatusCancelled          OperationStatus = "cancelled"
	StatusPartiallyCompleted OperationStatus = "partiallyCompleted"
)

func (s OperationStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusPartiallyCompleted:
		return true
	default:
		return false
	}
}

type OperationInfo struct {
	ID           string
	DisplayName  string
	Status       OperationStatus
	CreatedOn    time.Time
	ExpiresOn    time.Time
	LastModified time.Time
}

// ServiceError is an error reported by the service for an action or a
// document, as opposed to a transport failure.
type ServiceError struct {
	Code    string
	Message string
	Target  string
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return e.Message
	}

	return e.Code + ": " + e.Message
}

type Sentence struct {
	Text      string
	RankScore float64
	Offset    int
	Length    int
}

// DocumentResult is either Err or Sentences.
type DocumentResult struct {
	ID        string
	Err       *ServiceError
	Sentences []Sentence
	Warnings  []ServiceError
}

func (r DocumentResult) Failed() bool {
	return r.Err != nil
}

// ActionResult is either Err (the action failed for the whole batch) or
// Documents.
type ActionResult struct {
	Name      string
	Err       *ServiceError
	Documents []DocumentResult
}

func (r ActionResult) Failed() bool {
	return r.Err != nil
}

type ResultPage struct {
	ExtractSummaryResults []ActionResult
}
