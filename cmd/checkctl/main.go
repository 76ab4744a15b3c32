// Package main provides checkctl, an offline tool for checklist templates.
// It validates template files, prints their conditional structure and
// replays answer files to compute progress, without a server.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fieldcheck/internal/checklist"
	"fieldcheck/internal/model"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	Version = "0.1.0"
	appName = "checkctl"
)

// errInvalid signals a failed check whose details were already printed
var errInvalid = errors.New("template is invalid")

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Validate and inspect checklist templates offline",
		Long: `checkctl works on template files (YAML or JSON) without a server.

It can:
- validate a template and list every broken rule
- print the conditional question tree in display order
- replay an answers file and report completion and compliance`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			switch strings.ToLower(logLevel) {
			case "debug":
				level = slog.LevelDebug
			case "info":
				level = slog.LevelInfo
			case "error":
				level = slog.LevelError
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(validateCmd(), graphCmd(), progressCmd())

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func validateCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "validate <template-file>",
		Short: "Check a template against every structural rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTemplate(args[0])
			if err != nil {
				return err
			}
			rules, err := checklist.NewRuleEvaluator()
			if err != nil {
				return err
			}
			res := checklist.Validate(t, checklist.WithRules(rules))
			out := cmd.OutOrStdout()

			if outputJSON {
				violations := res.Violations
				if violations == nil {
					violations = []checklist.Violation{}
				}
				if err := writeJSON(out, map[string]interface{}{"valid": res.Valid(), "violations": violations}); err != nil {
					return err
				}
			} else if res.Valid() {
				fp, err := checklist.Fingerprint(t)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: valid (%d questions, %s)\n", t.ID, len(t.Questions), fp)
			} else {
				fmt.Fprintf(out, "%s: %d violations\n", t.ID, len(res.Violations))
				for _, v := range res.Violations {
					fmt.Fprintf(out, "  %s\n", v)
				}
			}

			if !res.Valid() {
				return errInvalid
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
	return cmd
}

func graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <template-file>",
		Short: "Print questions in display order with their activation conditions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTemplate(args[0])
			if err != nil {
				return err
			}
			g, err := checklist.Build(t)
			if err != nil {
				return err
			}
			printGraph(cmd.OutOrStdout(), g)
			return nil
		},
	}
}

func printGraph(out io.Writer, g *checklist.Graph) {
	fmt.Fprintf(out, "%s %s\n", g.TemplateID(), g.Fingerprint())

	group := ""
	for _, id := range g.Order() {
		q := g.Question(id)
		if q.GroupID != group {
			group = q.GroupID
			fmt.Fprintf(out, "[%s]\n", g.GroupTitle(group))
		}

		depth := 0
		for cur := id; ; depth++ {
			parent, _, ok := g.Parent(cur)
			if !ok {
				break
			}
			cur = parent
		}

		var flags []string
		flags = append(flags, string(q.ResponseType))
		if q.IsRequired {
			flags = append(flags, "required")
		}
		if q.HasSubChecklist {
			flags = append(flags, "sub-checklist "+q.SubChecklistID)
		}
		line := fmt.Sprintf("%s%s (%s)", strings.Repeat("  ", depth+1), id, strings.Join(flags, ", "))
		if parent, cond, ok := g.Parent(id); ok {
			line += fmt.Sprintf(" when %s = %s", parent, cond)
		}
		fmt.Fprintln(out, line)
	}
}

// AnswersFile is a recorded sequence of submissions
type AnswersFile struct {
	Answers []AnswerEntry `yaml:"answers" json:"answers"`
}

// AnswerEntry is one recorded submission
type AnswerEntry struct {
	QuestionID string   `yaml:"questionId" json:"questionId"`
	Value      any      `yaml:"value" json:"value"`
	MediaRefs  []string `yaml:"mediaRefs,omitempty" json:"mediaRefs,omitempty"`
}

func progressCmd() *cobra.Command {
	var (
		outputJSON bool
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "progress <template-file> <answers-file>",
		Short: "Replay answers against a template and report progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTemplate(args[0])
			if err != nil {
				return err
			}
			var answers AnswersFile
			if err := decodeFile(args[1], &answers); err != nil {
				return err
			}

			g, err := checklist.Build(t)
			if err != nil {
				return err
			}
			st, err := checklist.NewExecution("local", t, g, time.Now().UTC())
			if err != nil {
				return err
			}

			rejected := 0
			for _, a := range answers.Answers {
				next, _, err := checklist.Submit(t, g, st, checklist.Submission{
					QuestionID: a.QuestionID,
					Value:      a.Value,
					MediaRefs:  a.MediaRefs,
				}, time.Now().UTC())
				if err != nil {
					rejected++
					slog.Warn("Answer rejected", slog.String("question_id", a.QuestionID), slog.Any("error", err))
					fmt.Fprintf(cmd.ErrOrStderr(), "rejected: %v\n", err)
					continue
				}
				st = next
			}

			rules, err := checklist.NewRuleEvaluator()
			if err != nil {
				return err
			}
			p := checklist.ComputeProgress(g, st, checklist.WithRuleEvaluator(rules))

			out := cmd.OutOrStdout()
			if outputJSON {
				if err := writeJSON(out, p); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "completion: %.1f%% (%d/%d active answered)\n", p.CompletionPct, p.Answered, p.Active)
				fmt.Fprintf(out, "compliance: %.1f%% (weight %.2f/%.2f)\n", p.CompliancePct, p.WeightEarned, p.WeightPossible)
				if len(p.Pending) > 0 {
					fmt.Fprintf(out, "pending: %s\n", strings.Join(p.Pending, ", "))
				}
			}

			if strict && rejected > 0 {
				return fmt.Errorf("%d answers rejected", rejected)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output progress as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any answer is rejected")
	return cmd
}

func loadTemplate(path string) (*model.Template, error) {
	var t model.Template
	if err := decodeFile(path, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// decodeFile reads JSON for .json files and YAML otherwise
func decodeFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
