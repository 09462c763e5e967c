// internal/workers/classification/classify-entrant/models.go
package classifyentrant

import "rulebook-classifier/internal/classifier"

type Input struct {
	Organization string             `json:"organization"`
	EntrantID    string             `json:"entrantId,omitempty"`
	Answers      classifier.Answers `json:"answers"`
}

type Output struct {
	ClassificationID string            `json:"classificationId"`
	Organization     string            `json:"organization"`
	EntrantID        string            `json:"entrantId,omitempty"`
	Report           classifier.Report `json:"report"`
	EligibleClasses  []string          `json:"eligibleClasses"`
	HasWarnings      bool              `json:"hasWarnings"`
}
