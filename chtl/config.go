package chtl

import (
	"strings"

	exprparser "github.com/expr-lang/expr/parser"
)

// scanLeadingConfigOverrides performs a cheap, tokenizer-free pre-scan for a
// leading "[Configuration] { [Name] { CanonicalKeyword = "user-word" ; ... } }"
// block: the keyword table the real tokenizer uses must already reflect any
// renames before the real lex pass starts, so this runs once over raw bytes
// first. The returned map is
// canonical-keyword -> user-chosen word, matching the source's own key/value
// order; callers that need to recognize the user's word while lexing invert
// it themselves (see tokenizerKeywordOverrides).
func scanLeadingConfigOverrides(src []byte) map[string]string {
	s := string(src)
	i := skipLeadingTrivia(s, 0)
	if !strings.HasPrefix(s[i:], "[Configuration]") {
		return nil
	}
	i += len("[Configuration]")
	i = skipLeadingTrivia(s, i)
	body, ok := extractBracedBlock(s, i)
	if !ok {
		return nil
	}
	ni := strings.Index(body, "[Name]")
	if ni < 0 {
		return nil
	}
	j := skipLeadingTrivia(body, ni+len("[Name]"))
	nameBlock, ok := extractBracedBlock(body, j)
	if !ok {
		return nil
	}
	return parseKeyValuePairs(nameBlock)
}

// tokenizerKeywordOverrides inverts a canonical-keyword -> user-word map (as
// returned by scanLeadingConfigOverrides) into the user-word -> canonical
// direction the tokenizer's canonicalWord lookup needs: lexing sees the word
// the author actually wrote and must resolve it back to the fixed keyword
// table.
func tokenizerKeywordOverrides(canonicalToUser map[string]string) map[string]string {
	if len(canonicalToUser) == 0 {
		return nil
	}
	userToCanonical := make(map[string]string, len(canonicalToUser))
	for canonical, user := range canonicalToUser {
		userToCanonical[user] = canonical
	}
	return userToCanonical
}

// skipLeadingTrivia advances past whitespace and // and /* */ comments.
func skipLeadingTrivia(s string, i int) int {
	for i < len(s) {
		switch {
		case s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r':
			i++
		case strings.HasPrefix(s[i:], "//"):
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return len(s)
			}
			i = i + 2 + end + 2
		default:
			return i
		}
	}
	return i
}

// extractBracedBlock expects s[i] == '{' and returns the text strictly
// between the matching braces, tracking nesting depth.
func extractBracedBlock(s string, i int) (string, bool) {
	if i >= len(s) || s[i] != '{' {
		return "", false
	}
	depth := 0
	start := i + 1
	for ; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start:i], true
			}
		}
	}
	return "", false
}

// parseKeyValuePairs parses a flat "ident = ident_or_string ;" sequence.
func parseKeyValuePairs(body string) map[string]string {
	out := map[string]string{}
	for _, stmt := range strings.Split(body, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		eq := strings.Index(stmt, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(stmt[:eq])
		val := strings.TrimSpace(stmt[eq+1:])
		val = strings.Trim(val, `"`)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	return out
}

// validateCondExpr parses (never evaluates) a conditional attribute/style
// value's condition text with expr-lang, purely to surface malformed
// expressions as diagnostics; evaluation is deferred to the target
// platform.
func validateCondExpr(cond string) bool {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return false
	}
	_, err := exprparser.Parse(cond)
	return err == nil
}

// documentConfiguration returns the document's leading [Configuration] node,
// if any (parseTopLevel already diagnoses any non-leading occurrence).
// Leading comments don't occupy the first-statement slot.
func documentConfiguration(doc *Node) *Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		switch c.Kind {
		case KindComment:
			continue
		case KindConfiguration:
			return c
		default:
			return nil
		}
	}
	return nil
}

// configBool reads a recognized boolean configuration key (HTML5_DOCTYPE,
// DEBUG_MODE), defaulting to def when the key is absent or not a recognized
// boolean literal.
func configBool(doc *Node, key string, def bool) bool {
	cfg := documentConfiguration(doc)
	if cfg == nil {
		return def
	}
	v, ok := cfg.ConfigValues[key]
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return def
}

// voidElements is the HTML5 void-element set, consulted by the generator so
// e.g. "img { src: ... }" never emits a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

const doctypeHTML5 = "<!DOCTYPE html>"
