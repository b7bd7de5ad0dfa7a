// Package intent classifies incoming user messages.
package intent

import "strings"

// Kind is the routing decision for a user message.
type Kind string

const (
	// ReportRequest asks the assistant to generate a P&L statement.
	ReportRequest Kind = "report_request"
	// Question is a general question for the retrieval pipeline.
	Question Kind = "question"
	// Unknown is the fail-closed default for messages that classify as
	// neither; routed like a Question.
	Unknown Kind = "unknown"
)

// Intent is the tagged classification result.
type Intent struct {
	Kind    Kind
	Message string
}

// reportPhrases mirror the phrasings users employ when asking for a P&L
// statement. Matching is case-insensitive substring containment.
var reportPhrases = []string{
	"generate p&l",
	"create p&l",
	"generate pnl",
	"create pnl",
	"p&l statement",
	"pnl statement",
	"profit and loss",
	"generate my p&l",
	"create my p&l",
}

// Detect classifies a message. Deterministic and idempotent: the same input
// always yields the same route.
func Detect(message string) Intent {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return Intent{Kind: Unknown, Message: message}
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range reportPhrases {
		if strings.Contains(lower, phrase) {
			return Intent{Kind: ReportRequest, Message: message}
		}
	}

	return Intent{Kind: Question, Message: message}
}
