package rulebook

import (
	"errors"
	"fmt"
	"strings"
)

// Builder assembles a Rulebook. Violations are collected as classes,
// subclasses and questions are added and reported together by Build.
//
//	b := rulebook.NewBuilder("SCCA")
//	b.Class("Street").
//		Subclass("AS", "A Street").
//		Subclass("BS", "B Street").
//		Question("fenders", "Are your fenders unmodified?", "")
//	rb, err := b.Build()
type Builder struct {
	organization string
	classes      []*ClassBuilder
}

// ClassBuilder collects the subclasses and questions of a single class.
type ClassBuilder struct {
	parent     *Builder
	name       string
	subclasses []Subclass
	questions  []BumpQuestion
}

func NewBuilder(organization string) *Builder {
	return &Builder{organization: organization}
}

// Class starts a new class. Adding the same name twice is reported by Build.
func (b *Builder) Class(name string) *ClassBuilder {
	cb := &ClassBuilder{parent: b, name: name}
	b.classes = append(b.classes, cb)
	return cb
}

func (cb *ClassBuilder) Subclass(code, displayName string) *ClassBuilder {
	cb.subclasses = append(cb.subclasses, Subclass{Code: code, DisplayName: displayName})
	return cb
}

func (cb *ClassBuilder) Question(id, prompt, body string) *ClassBuilder {
	cb.questions = append(cb.questions, BumpQuestion{ID: id, Prompt: prompt, Body: body})
	return cb
}

// Class returns to the parent builder to start the next class.
func (cb *ClassBuilder) Class(name string) *ClassBuilder {
	return cb.parent.Class(name)
}

// Build validates everything added so far and returns the immutable
// Rulebook. The returned error joins every violation found; each one is a
// *ValidationError matchable with errors.Is against the Err* sentinels.
func (b *Builder) Build() (*Rulebook, error) {
	var errs []error

	if isBlank(b.organization) {
		errs = append(errs, &ValidationError{Kind: KindMissingIdentifier, Scope: "rulebook", Name: "organization"})
	}

	rb := &Rulebook{
		organization: b.organization,
		classes:      make([]*Class, 0, len(b.classes)),
		classIndex:   make(map[string]int, len(b.classes)),
	}

	for _, cb := range b.classes {
		if isBlank(cb.name) {
			errs = append(errs, &ValidationError{Kind: KindMissingIdentifier, Scope: "rulebook", Name: "class name"})
			continue
		}
		if _, dup := rb.classIndex[cb.name]; dup {
			errs = append(errs, &ValidationError{Kind: KindDuplicateName, Scope: "rulebook", Name: cb.name})
			continue
		}

		class, classErrs := cb.build()
		errs = append(errs, classErrs...)

		rb.classIndex[cb.name] = len(rb.classes)
		rb.classes = append(rb.classes, class)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rb, nil
}

func (cb *ClassBuilder) build() (*Class, []error) {
	var errs []error
	scope := fmt.Sprintf("class %s", cb.name)

	class := &Class{
		name:          cb.name,
		subclasses:    make([]Subclass, 0, len(cb.subclasses)),
		questions:     make([]BumpQuestion, 0, len(cb.questions)),
		subclassIndex: make(map[string]int, len(cb.subclasses)),
		questionIndex: make(map[string]int, len(cb.questions)),
	}

	if len(cb.subclasses) == 0 {
		errs = append(errs, &ValidationError{Kind: KindEmptyClass, Scope: scope, Name: cb.name})
	}

	for _, sc := range cb.subclasses {
		switch {
		case isBlank(sc.Code):
			errs = append(errs, &ValidationError{Kind: KindMissingIdentifier, Scope: scope, Name: "subclass code"})
		case hasKey(class.subclassIndex, sc.Code):
			errs = append(errs, &ValidationError{Kind: KindDuplicateName, Scope: scope, Name: sc.Code})
		default:
			class.subclassIndex[sc.Code] = len(class.subclasses)
			class.subclasses = append(class.subclasses, sc)
		}
	}

	for _, q := range cb.questions {
		switch {
		case isBlank(q.ID):
			errs = append(errs, &ValidationError{Kind: KindMissingIdentifier, Scope: scope, Name: "question id"})
		case hasKey(class.questionIndex, q.ID):
			errs = append(errs, &ValidationError{Kind: KindDuplicateName, Scope: scope, Name: q.ID})
		default:
			class.questionIndex[q.ID] = len(class.questions)
			class.questions = append(class.questions, q)
		}
	}

	return class, errs
}

func hasKey(m map[string]int, k string) bool {
	_, ok := m[k]
	return ok
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
