// Package classifier decides which classes of a rulebook an entrant may
// enter, given their answers to the bump questions.
//
// Classify is a pure function:
//   - it never mutates the rulebook or the answers
//   - it performs no I/O
//   - identical inputs always produce identical reports
//
// so any number of classifications may run concurrently over one rulebook.
package classifier

import (
	"sort"

	"rulebook-classifier/internal/rulebook"
)

// Classify evaluates every class of rb independently and returns one verdict
// per class in rulebook order.
//
// Per class: any "no" answer bumps the entrant and every bumped question ID is
// reported; otherwise any missing answer leaves the class incomplete;
// otherwise the entrant is eligible for all of the class's subclasses.
// Answers naming unknown classes or questions are ignored and surface as
// warnings.
func Classify(rb *rulebook.Rulebook, answers Answers) Report {
	classes := rb.Classes()
	report := Report{
		Organization: rb.Organization(),
		Verdicts:     make([]Verdict, 0, len(classes)),
		Warnings:     Check(rb, answers),
	}

	for _, class := range classes {
		report.Verdicts = append(report.Verdicts, classifyClass(class, answers))
	}

	return report
}

func classifyClass(class *rulebook.Class, answers Answers) Verdict {
	var bumped, unanswered []string

	for _, q := range class.Questions() {
		answer, ok := answers.Lookup(class.Name(), q.ID)
		switch {
		case !ok:
			unanswered = append(unanswered, q.ID)
		case !answer:
			bumped = append(bumped, q.ID)
		}
	}

	switch {
	case len(bumped) > 0:
		return Verdict{Class: class.Name(), Status: StatusBumped, Reasons: bumped}
	case len(unanswered) > 0:
		return Verdict{Class: class.Name(), Status: StatusIncomplete, Unanswered: unanswered}
	default:
		return Verdict{Class: class.Name(), Status: StatusEligible, Subclasses: class.Subclasses()}
	}
}

// Check reports answer entries that do not resolve against rb, sorted by
// class then question.
func Check(rb *rulebook.Rulebook, answers Answers) []Warning {
	var warnings []Warning

	for className, byQuestion := range answers {
		class, ok := rb.Class(className)
		if !ok {
			warnings = append(warnings, Warning{Kind: rulebook.KindUnknownClass, Class: className})
			continue
		}
		for questionID := range byQuestion {
			if !class.HasQuestion(questionID) {
				warnings = append(warnings, Warning{
					Kind:     rulebook.KindUnknownQuestion,
					Class:    className,
					Question: questionID,
				})
			}
		}
	}

	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].Class != warnings[j].Class {
			return warnings[i].Class < warnings[j].Class
		}
		return warnings[i].Question < warnings[j].Question
	})

	return warnings
}

// Pending lists, in rulebook order, the questions an interactive UI still
// needs to ask: the unanswered questions of every class that is not already
// bumped.
func Pending(rb *rulebook.Rulebook, report Report) []PendingQuestion {
	var pending []PendingQuestion
	for _, v := range report.Incomplete() {
		class, ok := rb.Class(v.Class)
		if !ok {
			continue
		}
		for _, id := range v.Unanswered {
			q, _ := class.Question(id)
			pending = append(pending, PendingQuestion{Class: v.Class, Question: q})
		}
	}
	return pending
}

// PendingQuestion pairs a question with the class it belongs to.
type PendingQuestion struct {
	Class    string                `json:"class" yaml:"class"`
	Question rulebook.BumpQuestion `json:"question" yaml:"question"`
}
