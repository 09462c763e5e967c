// Package rulebook models a sanctioning body's competition rulebook: an
// organization publishes classes, each class holds subclasses and the yes/no
// bump questions that disqualify an entrant when answered "no".
//
// Rulebook values are only produced by Builder.Build and are immutable
// afterwards; every accessor hands out copies so callers can share a single
// *Rulebook across goroutines without coordination.
package rulebook

// Subclass is a finer division within a class, e.g. {"AS", "A Street"}.
type Subclass struct {
	Code        string `json:"code" yaml:"code"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// BumpQuestion is a yes/no question keyed by a stable ID. A "no" answer bumps
// the entrant out of the enclosing class.
type BumpQuestion struct {
	ID     string `json:"id" yaml:"id"`
	Prompt string `json:"prompt" yaml:"prompt"`
	Body   string `json:"body,omitempty" yaml:"body,omitempty"`
}

// Class is a top-level competition category within an organization.
type Class struct {
	name       string
	subclasses []Subclass
	questions  []BumpQuestion

	subclassIndex map[string]int
	questionIndex map[string]int
}

func (c *Class) Name() string {
	return c.name
}

// Subclasses returns the class's subclasses in declaration order.
func (c *Class) Subclasses() []Subclass {
	out := make([]Subclass, len(c.subclasses))
	copy(out, c.subclasses)
	return out
}

// Questions returns the bump questions in the order a UI should ask them.
func (c *Class) Questions() []BumpQuestion {
	out := make([]BumpQuestion, len(c.questions))
	copy(out, c.questions)
	return out
}

func (c *Class) Subclass(code string) (Subclass, bool) {
	i, ok := c.subclassIndex[code]
	if !ok {
		return Subclass{}, false
	}
	return c.subclasses[i], true
}

func (c *Class) Question(id string) (BumpQuestion, bool) {
	i, ok := c.questionIndex[id]
	if !ok {
		return BumpQuestion{}, false
	}
	return c.questions[i], true
}

func (c *Class) HasQuestion(id string) bool {
	_, ok := c.questionIndex[id]
	return ok
}

func (c *Class) QuestionCount() int {
	return len(c.questions)
}

// Rulebook is the immutable set of classes published by one organization.
type Rulebook struct {
	organization string
	classes      []*Class
	classIndex   map[string]int
}

func (r *Rulebook) Organization() string {
	return r.organization
}

// Classes returns the classes in rulebook order. The returned slice is a copy;
// the *Class values themselves are immutable.
func (r *Rulebook) Classes() []*Class {
	out := make([]*Class, len(r.classes))
	copy(out, r.classes)
	return out
}

func (r *Rulebook) Class(name string) (*Class, bool) {
	i, ok := r.classIndex[name]
	if !ok {
		return nil, false
	}
	return r.classes[i], true
}

func (r *Rulebook) Len() int {
	return len(r.classes)
}

// ClassNames lists class names in rulebook order.
func (r *Rulebook) ClassNames() []string {
	names := make([]string, len(r.classes))
	for i, c := range r.classes {
		names[i] = c.name
	}
	return names
}
