package chtl

import (
	"strings"

	"github.com/andybalholm/cascadia"
)

// contextSelector is the anchor a bare '&' stands for inside a nested
// ruleset, chosen by a fixed priority order; whichever rule wins also
// becomes the element's class/id attribute if it didn't already have
// one.
type contextSelector struct {
	selector  string
	attrName  string // "class" or "id", set only if the generator must add it
	attrValue string
}

// computeContextSelector picks the context selector for el's own style
// block, in priority order: an explicit class attribute, else the first
// class-rooted selector declared in the block, else an explicit id
// attribute, else the first id-rooted selector in the block. With none of
// the four available the result is empty and the generator leaves '&'
// selectors unrewritten with a warning.
func computeContextSelector(el *Node, sb *Node) contextSelector {
	if av, ok := el.Attrs["class"]; ok && av.Kind == StyleLiteral && av.Literal != "" {
		first := strings.Fields(av.Literal)[0]
		return contextSelector{selector: "." + first}
	}
	for _, rs := range sb.Rulesets {
		if strings.HasPrefix(rs.Selector, ".") {
			name := firstSelectorToken(rs.Selector[1:])
			return contextSelector{selector: "." + name, attrName: "class", attrValue: name}
		}
	}
	if av, ok := el.Attrs["id"]; ok && av.Kind == StyleLiteral && av.Literal != "" {
		return contextSelector{selector: "#" + av.Literal}
	}
	for _, rs := range sb.Rulesets {
		if strings.HasPrefix(rs.Selector, "#") {
			name := firstSelectorToken(rs.Selector[1:])
			return contextSelector{selector: "#" + name, attrName: "id", attrValue: name}
		}
	}
	return contextSelector{}
}

func firstSelectorToken(s string) string {
	for i, r := range s {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return s[:i]
		}
	}
	return s
}

// rewriteSelector replaces the leading '&' in sel with ctx: "& .child" ->
// ".card .child", "&:hover" -> ".card:hover". Only the first occurrence is
// replaced; a selector with no '&' hoists to the stylesheet verbatim.
func rewriteSelector(sel, ctx string) string {
	if !strings.Contains(sel, "&") {
		return sel
	}
	return strings.Replace(sel, "&", ctx, 1)
}

// validateSelector parses sel with cascadia purely for its syntax check —
// the generator never queries a live DOM with it, it only wants to know
// whether the selector text is well-formed CSS before hoisting it into the
// document-level stylesheet.
func validateSelector(sel string, diags *Diagnostics, src Source) bool {
	if _, err := cascadia.ParseGroup(sel); err != nil {
		diags.Add(newDiag(Generation, src, "invalid selector %q: %v", sel, err))
		return false
	}
	return true
}
