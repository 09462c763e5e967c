// Package render writes classification reports for people (text) and for
// machines (JSON, YAML).
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"rulebook-classifier/internal/classifier"
	"rulebook-classifier/internal/rulebook"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown output format")

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Write renders report in the requested format. rb is only consulted by the
// text renderer, to resolve question prompts.
func Write(w io.Writer, format Format, rb *rulebook.Rulebook, report classifier.Report) error {
	switch format {
	case FormatText:
		return Text(w, rb, report)
	case FormatJSON:
		return JSON(w, report)
	case FormatYAML:
		return YAML(w, report)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

func JSON(w io.Writer, report classifier.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func YAML(w io.Writer, report classifier.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

// Text writes one block per class. Bumped and incomplete classes list the
// questions involved with their prompts; bodies are printed only when set.
func Text(w io.Writer, rb *rulebook.Rulebook, report classifier.Report) error {
	tw := &textWriter{w: w}

	tw.printf("%s classification\n", report.Organization)
	for _, v := range report.Verdicts {
		tw.printf("\n%s: %s\n", v.Class, strings.ToUpper(string(v.Status)))

		switch v.Status {
		case classifier.StatusEligible:
			for _, s := range v.Subclasses {
				tw.printf("  %-6s %s\n", s.Code, s.DisplayName)
			}
		case classifier.StatusBumped:
			tw.printf("  bumped by:\n")
			tw.questions(rb, v.Class, v.Reasons)
		case classifier.StatusIncomplete:
			tw.printf("  still to answer:\n")
			tw.questions(rb, v.Class, v.Unanswered)
		}
	}

	if len(report.Warnings) > 0 {
		tw.printf("\nwarnings:\n")
		for _, warning := range report.Warnings {
			tw.printf("  %s\n", warning)
		}
	}

	return tw.err
}

type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) questions(rb *rulebook.Rulebook, className string, ids []string) {
	var class *rulebook.Class
	if rb != nil {
		class, _ = rb.Class(className)
	}

	for _, id := range ids {
		if class == nil {
			t.printf("  - %s\n", id)
			continue
		}
		q, ok := class.Question(id)
		if !ok {
			t.printf("  - %s\n", id)
			continue
		}
		t.printf("  - %s: %s\n", q.ID, q.Prompt)
		if q.Body != "" {
			t.printf("      %s\n", q.Body)
		}
	}
}
