// Package diagnostic turns scan warnings and load failures into positioned
// diagnostics that the command line prints.
package diagnostic

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/multierr"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/pkg/position"
	"github.com/walteh/tmscope/pkg/scanner"
)

// Diagnostics groups diagnostics by severity, each group in report order.
type Diagnostics struct {
	Errors   []Diagnostic
	Warnings []Diagnostic
}

// Diagnostic represents a single diagnostic message
type Diagnostic struct {
	Message string
	// Source is the file the diagnostic refers to
	Source string
	Range  position.Range
	// Code names the warning kind, empty for load failures
	Code     string
	Severity DiagnosticSeverity
}

// DiagnosticSeverity represents the severity level of a diagnostic
type DiagnosticSeverity string

const (
	Error   DiagnosticSeverity = "error"
	Warning DiagnosticSeverity = "warning"
)

// Add records d in the group of its severity.
func (d *Diagnostics) Add(diag Diagnostic) {
	switch diag.Severity {
	case Error:
		d.Errors = append(d.Errors, diag)
	default:
		diag.Severity = Warning
		d.Warnings = append(d.Warnings, diag)
	}
}

// Merge appends every diagnostic of other.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil {
		return
	}
	d.Errors = append(d.Errors, other.Errors...)
	d.Warnings = append(d.Warnings, other.Warnings...)
}

func (d *Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}

func (d *Diagnostics) Len() int {
	return len(d.Errors) + len(d.Warnings)
}

// FromWarnings positions scanner warnings within text.
func FromWarnings(source, text string, warnings []scanner.Warning) *Diagnostics {
	out := &Diagnostics{}
	if len(warnings) == 0 {
		return out
	}
	idx := position.NewIndex(text)
	for _, w := range warnings {
		out.Add(Diagnostic{
			Message:  w.Error(),
			Source:   source,
			Range:    idx.Range(w.Offset, w.Offset),
			Code:     w.Kind.String(),
			Severity: Warning,
		})
	}
	return out
}

// FromError splits an aggregated load error into one diagnostic per problem.
// Errors collected across files and the problems of a single definition are
// both flattened.
func FromError(source string, err error) *Diagnostics {
	out := &Diagnostics{}
	if err == nil {
		return out
	}
	for _, e := range multierr.Errors(err) {
		var merr *multierror.Error
		if errors.As(e, &merr) && len(merr.Errors) > 0 {
			prefix := strings.TrimSuffix(e.Error(), merr.Error())
			for _, inner := range merr.Errors {
				out.Add(Diagnostic{Message: prefix + inner.Error(), Source: source, Severity: Error})
			}
			continue
		}
		out.Add(Diagnostic{Message: e.Error(), Source: source, Severity: Error})
	}
	return out
}

// Formatter formats diagnostics into different output formats
type Formatter interface {
	Format(w io.Writer, diagnostics *Diagnostics) error
}

// TextFormatter prints one line per diagnostic, compiler style.
type TextFormatter struct {
	Color bool
}

func (f *TextFormatter) Format(w io.Writer, diagnostics *Diagnostics) error {
	if diagnostics == nil {
		return errors.Errorf("diagnostics is nil")
	}

	sev := map[DiagnosticSeverity]*color.Color{
		Error:   color.New(color.FgRed, color.Bold),
		Warning: color.New(color.FgYellow, color.Bold),
	}

	for _, group := range [][]Diagnostic{diagnostics.Errors, diagnostics.Warnings} {
		for _, d := range group {
			label := string(d.Severity)
			loc := d.Source
			if d.Range != (position.Range{}) || d.Code != "" {
				loc = fmt.Sprintf("%s:%s", d.Source, d.Range.Start)
			}
			if f.Color {
				label = sev[d.Severity].Sprint(label)
				loc = color.New(color.Bold).Sprint(loc)
			}
			if d.Code != "" {
				label = fmt.Sprintf("%s[%s]", label, d.Code)
			}
			if _, err := fmt.Fprintf(w, "%s: %s: %s\n", loc, label, d.Message); err != nil {
				return errors.Errorf("writing diagnostic: %w", err)
			}
		}
	}
	return nil
}

// JSONFormatter writes diagnostics in the shape editors expect:
// zero-based ranges and numeric severities (1 error, 2 warning).
type JSONFormatter struct{}

type jsonPlace struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type jsonRange struct {
	Start jsonPlace `json:"start"`
	End   jsonPlace `json:"end"`
}

type jsonDiagnostic struct {
	Source   string    `json:"source"`
	Severity int       `json:"severity"`
	Code     string    `json:"code,omitempty"`
	Message  string    `json:"message"`
	Range    jsonRange `json:"range"`
}

func (f *JSONFormatter) Format(w io.Writer, diagnostics *Diagnostics) error {
	if diagnostics == nil {
		return errors.Errorf("diagnostics is nil")
	}

	result := make([]jsonDiagnostic, 0, diagnostics.Len())
	conv := func(d Diagnostic, severity int) jsonDiagnostic {
		return jsonDiagnostic{
			Source:   d.Source,
			Severity: severity,
			Code:     d.Code,
			Message:  d.Message,
			Range: jsonRange{
				Start: jsonPlace{Line: d.Range.Start.Line, Character: d.Range.Start.Character},
				End:   jsonPlace{Line: d.Range.End.Line, Character: d.Range.End.Character},
			},
		}
	}
	for _, d := range diagnostics.Errors {
		result = append(result, conv(d, 1))
	}
	for _, d := range diagnostics.Warnings {
		result = append(result, conv(d, 2))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return errors.Errorf("encoding diagnostics: %w", err)
	}
	return nil
}
