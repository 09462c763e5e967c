// internal/workers/classification/fetch-bump-questions/models.go
package fetchbumpquestions

import (
	"rulebook-classifier/internal/classifier"
	"rulebook-classifier/internal/rulebook"
)

type Input struct {
	Organization string             `json:"organization"`
	ClassName    string             `json:"className,omitempty"`
	Answers      classifier.Answers `json:"answers,omitempty"`
}

// ClassQuestions is one class as an interactive form renders it.
type ClassQuestions struct {
	Class      string                  `json:"class"`
	Subclasses []rulebook.Subclass     `json:"subclasses"`
	Questions  []rulebook.BumpQuestion `json:"questions"`
}

type Output struct {
	Organization string                       `json:"organization"`
	ClassName    string                       `json:"className,omitempty"`
	Questions    []ClassQuestions             `json:"questions"`
	Pending      []classifier.PendingQuestion `json:"pending"`
	NextQuestion *classifier.PendingQuestion  `json:"nextQuestion,omitempty"`
	Complete     bool                         `json:"complete"`
}
