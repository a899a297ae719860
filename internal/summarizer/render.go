package summarizer

import (
	"fmt"
	"strings"
	"time"

	"textsummarize/internal/domain"
)

const notAvailable = "n/a"

// Failure is an action (DocumentID is empty) or document the service
// reported as failed.
type Failure struct {
	Action     string
	DocumentID string
	Err        *domain.ServiceError
}

// Render builds the summary text for info and pages without any I/O.
func Render(info domain.OperationInfo, pages []domain.ResultPage) (string, []Failure) {
	var (
		b        strings.Builder
		failures []Failure
	)

	writeHeader(&b, info)
	for _, page := range pages {
		failures = append(failures, writePage(&b, page)...)
	}

	return b.String(), failures
}

func writeHeader(b *strings.Builder, info domain.OperationInfo) {
	b.WriteString("AnalyzeActions operation has completed\n")
	fmt.Fprintf(b, "Created On   : %s\n", formatTime(info.CreatedOn))
	fmt.Fprintf(b, "Expires On   : %s\n", formatTime(info.ExpiresOn))
	fmt.Fprintf(b, "Id           : %s\n", info.ID)
	fmt.Fprintf(b, "Status       : %s\n", info.Status)
}

func writePage(b *strings.Builder, page domain.ResultPage) []Failure {
	var failures []Failure

	for _, action := range page.ExtractSummaryResults {
		if action.Failed() {
			failures = append(failures, Failure{Action: action.Name, Err: action.Err})
			continue
		}

		for _, doc := range action.Documents {
			if doc.Failed() {
				failures = append(failures, Failure{
					Action:     action.Name,
					DocumentID: doc.ID,
					Err:        doc.Err,
				})

				continue
			}

			fmt.Fprintf(b, "  Extracted %d sentence(s):\n", len(doc.Sentences))
			for _, s := range doc.Sentences {
				fmt.Fprintf(b, "  Sentence: %s\n", s.Text)
			}
		}
	}

	return failures
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return notAvailable
	}

	return t.Format(time.RFC3339)
}
