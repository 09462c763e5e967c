// Command bumpcheck classifies an entrant against a rulebook file and manages
// the rulebooks the worker service publishes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rulebook-classifier/internal/chapters"
	"rulebook-classifier/internal/classifier"
	"rulebook-classifier/internal/common/config"
	"rulebook-classifier/internal/common/logger"
	"rulebook-classifier/internal/loader"
	"rulebook-classifier/internal/render"
	"rulebook-classifier/internal/rulebook"
	"rulebook-classifier/internal/store"
)

var version = "0.1.0"

// openBackend connects publish to the configured rulebook store.
var openBackend = store.Open

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code: 0 when the
// command succeeded (an ineligible entrant is still a success), 1 otherwise.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "bumpcheck",
		Short: "Motorsport rulebook classifier",
		Long: `bumpcheck decides which classes of a sanctioning body's rulebook an
entrant may enter, from their yes/no answers to each class's bump questions.

Rulebooks and answers may be YAML, JSON or TOML; the format follows the
file extension.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for diagnostics on stderr (debug, info, warn, error)")

	newLogger := func() logger.Logger {
		return logger.NewZapAdapter(logger.NewConsole(logLevel, stderr))
	}

	rootCmd.AddCommand(classifyCmd(newLogger))
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(questionsCmd())
	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(chaptersCmd())
	rootCmd.AddCommand(publishCmd(newLogger))

	return rootCmd
}

func classifyCmd(newLogger func() logger.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <rulebook-file> <answers-file>",
		Short: "Classify an entrant against a rulebook",
		Long: `Classify an entrant and print one verdict per class: eligible (with
its subclasses), bumped (with the questions answered "no") or incomplete
(with the questions still unanswered).

Answers naming a class or question the rulebook does not contain are
reported as warnings and otherwise ignored.

Example:
  bumpcheck classify scca.yaml answers.yaml
  bumpcheck classify scca.yaml answers.json --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			strict, _ := cmd.Flags().GetBool("strict")

			format, err := render.ParseFormat(output)
			if err != nil {
				return err
			}

			rb, err := loader.LoadRulebookFile(args[0])
			if err != nil {
				return err
			}
			answers, err := loader.LoadAnswersFile(args[1])
			if err != nil {
				return err
			}

			report := classifier.Classify(rb, answers)

			log := newLogger()
			for _, w := range report.Warnings {
				log.Warn(w.String(), map[string]interface{}{"file": args[1]})
			}

			if err := render.Write(cmd.OutOrStdout(), format, rb, report); err != nil {
				return err
			}

			if strict && len(report.Warnings) > 0 {
				return fmt.Errorf("%d answer(s) do not match the rulebook", len(report.Warnings))
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().Bool("strict", false, "fail when answers reference unknown classes or questions")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rulebook-file>",
		Short: "Check a rulebook for structural errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rb, err := loader.LoadRulebookFile(args[0])
			if err != nil {
				return err
			}

			questions := 0
			for _, class := range rb.Classes() {
				questions += class.QuestionCount()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d classes, %d bump questions)\n", rb.Organization(), rb.Len(), questions)
			return nil
		},
	}
}

func questionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions <rulebook-file>",
		Short: "List bump questions, optionally only those still to answer",
		Long: `List the bump questions of a rulebook in rulebook order.

With --answers only the questions still to be asked are listed: unanswered
questions of classes the entrant has not already been bumped from.

Example:
  bumpcheck questions scca.yaml --class "Street Touring"
  bumpcheck questions scca.yaml --answers partial.yaml --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			className, _ := cmd.Flags().GetString("class")
			answersPath, _ := cmd.Flags().GetString("answers")
			output, _ := cmd.Flags().GetString("output")

			format, err := render.ParseFormat(output)
			if err != nil {
				return err
			}

			rb, err := loader.LoadRulebookFile(args[0])
			if err != nil {
				return err
			}
			if className != "" {
				if _, ok := rb.Class(className); !ok {
					return &rulebook.ValidationError{Kind: rulebook.KindUnknownClass, Scope: "rulebook " + rb.Organization(), Name: className}
				}
			}

			var questions []classifier.PendingQuestion
			if answersPath != "" {
				answers, err := loader.LoadAnswersFile(answersPath)
				if err != nil {
					return err
				}
				questions = classifier.Pending(rb, classifier.Classify(rb, answers))
			} else {
				for _, class := range rb.Classes() {
					for _, q := range class.Questions() {
						questions = append(questions, classifier.PendingQuestion{Class: class.Name(), Question: q})
					}
				}
			}

			if className != "" {
				filtered := questions[:0]
				for _, q := range questions {
					if q.Class == className {
						filtered = append(filtered, q)
					}
				}
				questions = filtered
			}

			return writeQuestions(cmd.OutOrStdout(), format, questions)
		},
	}

	cmd.Flags().String("class", "", "only list questions of this class")
	cmd.Flags().String("answers", "", "answers file; list only questions still to answer")
	cmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")

	return cmd
}

func writeQuestions(w io.Writer, format render.Format, questions []classifier.PendingQuestion) error {
	if questions == nil {
		questions = []classifier.PendingQuestion{}
	}
	if format != render.FormatText {
		return writeDocument(w, format, questions)
	}

	if len(questions) == 0 {
		_, err := fmt.Fprintln(w, "no questions")
		return err
	}

	current := ""
	for _, q := range questions {
		if q.Class != current {
			if current != "" {
				fmt.Fprintln(w)
			}
			current = q.Class
			fmt.Fprintf(w, "%s\n", current)
		}
		fmt.Fprintf(w, "  - %s: %s\n", q.Question.ID, q.Question.Prompt)
		if q.Question.Body != "" {
			fmt.Fprintf(w, "      %s\n", q.Question.Body)
		}
	}
	return nil
}

// writeDocument encodes v as indented JSON or YAML.
func writeDocument(w io.Writer, format render.Format, v interface{}) error {
	if format == render.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func chaptersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapters <rules-text-file>",
		Short: "Split the SCCA Solo rules text into class chapters and sections",
		Long: `Read the plain-text export of the SCCA National Solo rules (as produced
by pdftotext) and list the class chapters it contains with their numbered
sections. Section bodies are the official wording, ready to quote as bump
question bodies.

Example:
  pdftotext -layout solo-rules.pdf rules.txt
  bumpcheck chapters rules.txt
  bumpcheck chapters rules.txt --chapter "Street Touring" --body
  bumpcheck chapters rules.txt --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("chapter")
			withBody, _ := cmd.Flags().GetBool("body")
			output, _ := cmd.Flags().GetString("output")

			format, err := render.ParseFormat(output)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			found, err := chapters.Read(f, chapters.SCCASolo)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if name != "" {
				var selected []chapters.Chapter
				for _, c := range found {
					if strings.EqualFold(c.Name, name) {
						selected = append(selected, c)
					}
				}
				if len(selected) == 0 {
					return fmt.Errorf("%s: no chapter named %q", args[0], name)
				}
				found = selected
			}

			if format != render.FormatText {
				return writeDocument(cmd.OutOrStdout(), format, found)
			}
			writeChapters(cmd.OutOrStdout(), found, withBody)
			return nil
		},
	}

	cmd.Flags().String("chapter", "", "only show this chapter (class name)")
	cmd.Flags().Bool("body", false, "include section text in text output")
	cmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")

	return cmd
}

func writeChapters(w io.Writer, found []chapters.Chapter, withBody bool) {
	for i, c := range found {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if c.Number != "" {
			fmt.Fprintf(w, "%s %s\n", c.Number, c.Name)
		} else {
			fmt.Fprintf(w, "%s\n", c.Name)
		}

		if len(c.Sections) == 0 && withBody {
			writeIndented(w, "    ", c.Text)
		}
		for _, s := range c.Sections {
			fmt.Fprintf(w, "  %s %s\n", s.Number, s.Title)
			if withBody {
				writeIndented(w, "      ", s.Body)
			}
		}
	}
}

func writeIndented(w io.Writer, indent, text string) {
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			fmt.Fprintln(w)
			continue
		}
		fmt.Fprintf(w, "%s%s\n", indent, line)
	}
}

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <rulebook-file>",
		Short: "Re-encode a rulebook as YAML, JSON or TOML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetString("to")

			format, err := loader.ParseFormat(to)
			if err != nil {
				return err
			}

			rb, err := loader.LoadRulebookFile(args[0])
			if err != nil {
				return err
			}
			return loader.Encode(cmd.OutOrStdout(), format, rb)
		},
	}

	cmd.Flags().String("to", "yaml", "target format: yaml, json or toml")

	return cmd
}

func publishCmd(newLogger func() logger.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <rulebook-file>",
		Short: "Store a rulebook in PostgreSQL for the worker service",
		Long: `Validate a rulebook and store it in the PostgreSQL rulebooks table,
replacing the organization's previous version. When Redis is enabled the
cached copy is invalidated so workers pick up the new version on their next
reload.

Connection settings come from the worker service configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			rb, err := loader.LoadRulebookFile(args[0])
			if err != nil {
				return err
			}

			var cfg *config.Config
			if configPath != "" {
				cfg, err = config.LoadFromFile(configPath)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.Rulebooks.Source = config.SourcePostgres

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			log := newLogger()
			backend, err := openBackend(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer backend.Close()

			version, err := backend.Postgres.Put(ctx, rb)
			if err != nil {
				return err
			}
			if backend.Cache != nil {
				if err := backend.Cache.Invalidate(ctx, rb.Organization()); err != nil {
					log.Warn("cache invalidation failed", map[string]interface{}{
						"organization": rb.Organization(),
						"error":        err.Error(),
					})
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published %s version %d (%s)\n",
				rb.Organization(), version, strings.Join(rb.ClassNames(), ", "))
			return nil
		},
	}

	cmd.Flags().String("config", "", "configuration file (default: configs/config.yaml)")

	return cmd
}
