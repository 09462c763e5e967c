// Package loader reads rulebook and answer documents in JSON, YAML or TOML,
// checks them against the embedded schemas and turns them into domain values.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"rulebook-classifier/internal/classifier"
	"rulebook-classifier/internal/common/validation"
	"rulebook-classifier/internal/rulebook"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Document is the serialized form of a rulebook.
type Document struct {
	Organization string          `json:"organization" yaml:"organization" toml:"organization"`
	Classes      []ClassDocument `json:"classes" yaml:"classes" toml:"classes"`
}

type ClassDocument struct {
	Name          string             `json:"name" yaml:"name" toml:"name"`
	Subclasses    []SubclassDocument `json:"subclasses" yaml:"subclasses" toml:"subclasses"`
	BumpQuestions []QuestionDocument `json:"bump_questions,omitempty" yaml:"bump_questions,omitempty" toml:"bump_questions,omitempty"`
}

type SubclassDocument struct {
	Code        string `json:"code" yaml:"code" toml:"code"`
	DisplayName string `json:"display_name" yaml:"display_name" toml:"display_name"`
}

type QuestionDocument struct {
	ID     string `json:"id" yaml:"id" toml:"id"`
	Prompt string `json:"prompt" yaml:"prompt" toml:"prompt"`
	Body   string `json:"body,omitempty" yaml:"body,omitempty" toml:"body,omitempty"`
}

// Build validates the document's structure and returns the rulebook it
// describes. Errors are rulebook.ValidationErrors joined together.
func (d *Document) Build() (*rulebook.Rulebook, error) {
	b := rulebook.NewBuilder(d.Organization)
	for _, c := range d.Classes {
		cb := b.Class(c.Name)
		for _, s := range c.Subclasses {
			cb.Subclass(s.Code, s.DisplayName)
		}
		for _, q := range c.BumpQuestions {
			cb.Question(q.ID, q.Prompt, q.Body)
		}
	}
	return b.Build()
}

// FromRulebook converts a rulebook back into its document form.
func FromRulebook(rb *rulebook.Rulebook) Document {
	doc := Document{Organization: rb.Organization()}
	for _, class := range rb.Classes() {
		cd := ClassDocument{Name: class.Name()}
		for _, s := range class.Subclasses() {
			cd.Subclasses = append(cd.Subclasses, SubclassDocument{Code: s.Code, DisplayName: s.DisplayName})
		}
		for _, q := range class.Questions() {
			cd.BumpQuestions = append(cd.BumpQuestions, QuestionDocument{ID: q.ID, Prompt: q.Prompt, Body: q.Body})
		}
		doc.Classes = append(doc.Classes, cd)
	}
	return doc
}

// DecodeDocument reads a rulebook document without building it. source names
// the input in error messages.
func DecodeDocument(r io.Reader, format Format, source string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Source: source, Format: format, Err: err}
	}
	if err := checkSchema(validation.SchemaRulebook, format, data, source); err != nil {
		return nil, err
	}

	var doc Document
	if err := unmarshal(format, data, &doc); err != nil {
		return nil, &ParseError{Source: source, Format: format, Err: err}
	}
	return &doc, nil
}

// DecodeRulebook reads and builds a rulebook. A malformed document yields a
// *ParseError; a well-formed one with structural violations yields the
// builder's validation errors.
func DecodeRulebook(r io.Reader, format Format, source string) (*rulebook.Rulebook, error) {
	doc, err := DecodeDocument(r, format, source)
	if err != nil {
		return nil, err
	}
	return doc.Build()
}

// DecodeAnswers reads an answer document of the form
// {class_name: {question_id: bool}}. An empty or null document is an empty
// answer set.
func DecodeAnswers(r io.Reader, format Format, source string) (classifier.Answers, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Source: source, Format: format, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return classifier.Answers{}, nil
	}

	generic, err := decodeGeneric(format, data)
	if err != nil {
		return nil, &ParseError{Source: source, Format: format, Err: err}
	}
	if generic == nil {
		return classifier.Answers{}, nil
	}
	if err := validateGeneric(validation.SchemaAnswers, format, generic, source); err != nil {
		return nil, err
	}

	answers := classifier.Answers{}
	if err := unmarshal(format, data, &answers); err != nil {
		return nil, &ParseError{Source: source, Format: format, Err: err}
	}
	return answers, nil
}

func checkSchema(schema string, format Format, data []byte, source string) error {
	generic, err := decodeGeneric(format, data)
	if err != nil {
		return &ParseError{Source: source, Format: format, Err: err}
	}
	return validateGeneric(schema, format, generic, source)
}

func validateGeneric(schema string, format Format, generic interface{}, source string) error {
	result, err := validation.Validate(schema, generic)
	if err != nil {
		return &ParseError{Source: source, Format: format, Err: err}
	}
	if !result.Valid {
		return &ParseError{Source: source, Format: format, Details: result.GetErrorMessages()}
	}
	return nil
}

// LoadRulebookFile reads a rulebook from disk, choosing the format by extension.
func LoadRulebookFile(path string) (*rulebook.Rulebook, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeRulebook(f, format, path)
}

// LoadAnswersFile reads an answer document from disk.
func LoadAnswersFile(path string) (classifier.Answers, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeAnswers(f, format, path)
}

// Encode writes rb as a document in the given format.
func Encode(w io.Writer, format Format, rb *rulebook.Rulebook) error {
	doc := FromRulebook(rb)

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
}

// Marshal is Encode into a byte slice.
func Marshal(format Format, rb *rulebook.Rulebook) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, format, rb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
