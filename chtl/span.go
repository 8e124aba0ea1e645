package chtl

// Span represents a source location within a single file.
type Span struct {
	Offset int // Byte offset in the file
	Line   int // 1-based line number
	Column int // 1-based column number (in runes, not bytes)
	Length int // Length in bytes
}

// Source pairs a Span with the file it came from. File is the entry file's
// name for the top-level document being compiled and the imported file's
// path for anything pulled in through an Import.
type Source struct {
	File string
	Span Span
}

// IsZero reports whether the span was never set.
func (s Span) IsZero() bool {
	return s.Offset == 0 && s.Line == 0 && s.Column == 0 && s.Length == 0
}

// End returns the byte offset immediately after the span.
func (s Span) End() int {
	return s.Offset + s.Length
}

// Synthetic describes why a node without its own source text exists: either
// it was written by the user (Reason is empty) or it was produced by
// expanding a template/custom at the position recorded in From.
type Synthetic struct {
	// Reason is empty for ordinary parsed nodes, or names the construct that
	// produced this node ("template usage: Name", "custom insert",
	// "unresolved template usage").
	Reason string
	// From is the source position of the usage that caused the synthesis,
	// so diagnostics on synthesized nodes can still point somewhere useful.
	From Source
}

// IsZero reports whether this node is not synthesized.
func (s Synthetic) IsZero() bool {
	return s.Reason == ""
}
