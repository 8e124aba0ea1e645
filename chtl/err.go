package chtl

import (
	"fmt"
	"io/fs"
	"strings"
)

// DiagnosticKind classifies which pipeline stage raised a diagnostic.
type DiagnosticKind int

const (
	Lexical DiagnosticKind = iota
	Syntax
	Semantic
	Generation
)

func (k DiagnosticKind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Syntax:
		return "syntax"
	case Semantic:
		return "semantic"
	case Generation:
		return "generation"
	}
	return "unknown"
}

// Diagnostic is a position-bearing record: it carries a span and wraps the
// underlying error, but never a captured goroutine stack trace. Diagnostics
// are user-facing compiler output, not host-side panics, so there is
// nothing to replay.
type Diagnostic struct {
	Kind       DiagnosticKind
	Source     Source
	Message    string
	Suggestion string
	err        error
}

func (d *Diagnostic) Error() string {
	loc := ""
	if d.Source.File != "" {
		loc = fmt.Sprintf("%s:%d:%d: ", d.Source.File, d.Source.Span.Line, d.Source.Span.Column)
	} else if d.Source.Span.Line > 0 {
		loc = fmt.Sprintf("%d:%d: ", d.Source.Span.Line, d.Source.Span.Column)
	}
	msg := d.Message
	if msg == "" && d.err != nil {
		msg = d.err.Error()
	}
	if d.Suggestion != "" {
		return fmt.Sprintf("%s%s: %s (%s)", loc, d.Kind, msg, d.Suggestion)
	}
	return fmt.Sprintf("%s%s: %s", loc, d.Kind, msg)
}

func (d *Diagnostic) Unwrap() error { return d.err }

func newDiag(kind DiagnosticKind, src Source, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Source: src, Message: fmt.Sprintf(format, args...)}
}

func newDiagNode(kind DiagnosticKind, n *Node, format string, args ...any) *Diagnostic {
	var src Source
	if n != nil {
		src = n.Source
	}
	return newDiag(kind, src, format, args...)
}

// Diagnostics accumulates the shared list every stage appends to. A stage
// never aborts on the first error unless continuation would require
// inventing structure.
type Diagnostics struct {
	list []*Diagnostic
}

func (d *Diagnostics) Add(diag *Diagnostic) {
	if diag != nil {
		d.list = append(d.list, diag)
	}
}

func (d *Diagnostics) Addf(kind DiagnosticKind, src Source, format string, args ...any) {
	d.Add(newDiag(kind, src, format, args...))
}

func (d *Diagnostics) HasErrors() bool { return len(d.list) > 0 }

func (d *Diagnostics) List() []*Diagnostic { return d.list }

func (d *Diagnostics) Append(other *Diagnostics) {
	if other == nil {
		return
	}
	d.list = append(d.list, other.list...)
}

func (d *Diagnostics) Error() string {
	msgs := make([]string, len(d.list))
	for i, diag := range d.list {
		msgs[i] = diag.Error()
	}
	return strings.Join(msgs, "\n")
}

// SourceContext is a caret-annotated window of source lines around a
// diagnostic, read through an fs.FS since CHTL documents may span several
// imported files.
type SourceContext struct {
	Lines       []SourceLine
	ErrorLine   int
	ErrorColumn int
}

type SourceLine struct {
	Number  int
	Text    string
	IsError bool
}

// Context reads contextLines lines of source around d from fsys, returning
// nil if the file can't be read or the diagnostic carries no location.
func (d *Diagnostic) Context(fsys fs.FS, contextLines int) *SourceContext {
	if d.Source.Span.Line <= 0 || d.Source.File == "" {
		return nil
	}
	content, err := fs.ReadFile(fsys, d.Source.File)
	if err != nil {
		return nil
	}
	lines := strings.Split(string(content), "\n")
	start := d.Source.Span.Line - contextLines
	if start < 1 {
		start = 1
	}
	end := d.Source.Span.Line + contextLines
	if end > len(lines) {
		end = len(lines)
	}
	var out []SourceLine
	for i := start; i <= end; i++ {
		text := ""
		if i-1 < len(lines) {
			text = lines[i-1]
		}
		out = append(out, SourceLine{Number: i, Text: text, IsError: i == d.Source.Span.Line})
	}
	return &SourceContext{Lines: out, ErrorLine: d.Source.Span.Line, ErrorColumn: d.Source.Span.Column}
}
