package classifier

import "rulebook-classifier/internal/rulebook"

// Status is the outcome for one class.
type Status string

const (
	StatusEligible   Status = "eligible"
	StatusBumped     Status = "bumped"
	StatusIncomplete Status = "incomplete"
)

// Verdict is the decision for a single class. Exactly one of Subclasses,
// Reasons or Unanswered is populated, matching Status. ID lists follow the
// rulebook's question order.
type Verdict struct {
	Class      string              `json:"class" yaml:"class"`
	Status     Status              `json:"status" yaml:"status"`
	Subclasses []rulebook.Subclass `json:"subclasses,omitempty" yaml:"subclasses,omitempty"`
	Reasons    []string            `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	Unanswered []string            `json:"unanswered,omitempty" yaml:"unanswered,omitempty"`
}

// Warning flags an answer entry that names something the rulebook does not
// contain. Such entries never influence a verdict.
type Warning struct {
	Kind     rulebook.Kind `json:"kind" yaml:"kind"`
	Class    string        `json:"class" yaml:"class"`
	Question string        `json:"question,omitempty" yaml:"question,omitempty"`
}

func (w Warning) String() string {
	if w.Kind == rulebook.KindUnknownClass {
		return "unknown class " + w.Class
	}
	return "unknown question " + w.Class + "." + w.Question
}

// Report is the eligibility report for one entrant against one rulebook.
type Report struct {
	Organization string    `json:"organization" yaml:"organization"`
	Verdicts     []Verdict `json:"verdicts" yaml:"verdicts"`
	Warnings     []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func (r *Report) Verdict(class string) (Verdict, bool) {
	for _, v := range r.Verdicts {
		if v.Class == class {
			return v, true
		}
	}
	return Verdict{}, false
}

// Eligible returns the eligible verdicts in rulebook order.
func (r *Report) Eligible() []Verdict {
	return r.withStatus(StatusEligible)
}

func (r *Report) Bumped() []Verdict {
	return r.withStatus(StatusBumped)
}

func (r *Report) Incomplete() []Verdict {
	return r.withStatus(StatusIncomplete)
}

// EligibleClasses lists the names of the classes the entrant may enter.
func (r *Report) EligibleClasses() []string {
	names := []string{}
	for _, v := range r.Eligible() {
		names = append(names, v.Class)
	}
	return names
}

// Counts tallies verdicts per status.
func (r *Report) Counts() map[Status]int {
	counts := map[Status]int{
		StatusEligible:   0,
		StatusBumped:     0,
		StatusIncomplete: 0,
	}
	for _, v := range r.Verdicts {
		counts[v.Status]++
	}
	return counts
}

func (r *Report) withStatus(status Status) []Verdict {
	var out []Verdict
	for _, v := range r.Verdicts {
		if v.Status == status {
			out = append(out, v)
		}
	}
	return out
}
