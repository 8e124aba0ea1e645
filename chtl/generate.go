package chtl

import (
	"fmt"
	"html"
	"strings"
)

// CSSRule is one hoisted "selector { properties }" rule destined for the
// document-level stylesheet.
type CSSRule struct {
	Selector string
	Body     string
}

// GenResult is the generator's output before assembly: an HTML body, the
// hoisted stylesheet in declaration order, and the script bundle (already
// HDL-JS-lowered where applicable).
type GenResult struct {
	HTML    string
	CSS     []CSSRule
	Scripts []string
}

type generator struct {
	diags   *Diagnostics
	css     []CSSRule
	scripts []string
	debug   bool // DEBUG_MODE
}

// generate walks the expanded tree and produces HTML text plus the hoisted
// stylesheet and script bundle — one recursive dispatcher switched on the
// tagged variant instead of a Render() method per type.
func generate(doc *Node, diags *Diagnostics) *GenResult {
	g := &generator{diags: diags, debug: configBool(doc, "DEBUG_MODE", false)}
	var b strings.Builder
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		g.renderTopLevel(&b, c)
	}
	return &GenResult{HTML: b.String(), CSS: g.css, Scripts: g.scripts}
}

func (g *generator) renderTopLevel(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindTemplateDef, KindCustomDef, KindConfiguration, KindConstraint:
		// Declarations only; nothing renders.
	case KindImport:
		g.renderVerbatimImport(b, n)
	case KindNamespace:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			g.renderTopLevel(b, c)
		}
	case KindOrigin:
		g.renderOrigin(b, n)
	case KindComment:
		g.renderComment(b, n)
	case KindElement:
		g.renderElement(b, n)
	case KindText:
		b.WriteString(html.EscapeString(n.Text))
	case KindStyleBlock:
		// A top-level style block has no host element: its rulesets hoist
		// verbatim, and bare properties have nowhere to fold.
		for _, rs := range n.Rulesets {
			validateSelector(rs.Selector, g.diags, rs.Source)
			g.css = append(g.css, CSSRule{Selector: rs.Selector, Body: renderProperties(rs.Properties)})
		}
		if len(n.Properties) > 0 {
			g.diags.Add(newDiagNode(Generation, n, "style properties outside an element have no host to apply to"))
		}
	case KindScriptBlock:
		body := n.ScriptRaw
		if n.IsHDLJS {
			body = lowerHDLJS(body)
		}
		g.scripts = append(g.scripts, body)
	default:
		g.diags.Add(newDiagNode(Generation, n, "unexpected top-level node kind"))
	}
}

// renderComment forwards a generator comment ("-- ...") into the HTML
// output as an HTML comment, in debug mode only. Synthesized markers (an
// unresolved template usage) always render, debug or not, since they stand
// in for output the document asked for. Line and block comments are
// dropped.
func (g *generator) renderComment(b *strings.Builder, n *Node) {
	if n.CommentKind != TokGeneratorComment {
		return
	}
	if !g.debug && n.Synth.IsZero() {
		return
	}
	b.WriteString("<!--")
	b.WriteString(n.CommentText)
	b.WriteString("-->")
}

func (g *generator) renderOrigin(b *strings.Builder, n *Node) {
	switch n.OriginK {
	case OriginHtml:
		b.WriteString(n.OriginVerbatim)
	case OriginStyle:
		g.css = append(g.css, CSSRule{Selector: "", Body: n.OriginVerbatim})
	case OriginJavaScript:
		g.scripts = append(g.scripts, n.OriginVerbatim)
	case OriginCustom:
		// An origin declared under a custom tag behaves like raw HTML
		// using that tag as a wrapper.
		fmt.Fprintf(b, "<%s>%s</%s>", n.OriginTag, n.OriginVerbatim, n.OriginTag)
	}
}

// renderVerbatimImport emits a resolved .html/.css/.js import's contents
// into the matching bucket, in document order alongside everything else.
// @Chtl/@CJmod/@Config imports are pure declarations already folded into
// the scope at parse time, so they render nothing here.
func (g *generator) renderVerbatimImport(b *strings.Builder, n *Node) {
	switch n.ImpKind {
	case ImportHtml:
		b.WriteString(n.ImpVerbatim)
	case ImportStyle:
		if n.ImpVerbatim != "" {
			g.css = append(g.css, CSSRule{Selector: "", Body: n.ImpVerbatim})
		}
	case ImportJavaScript:
		if n.ImpVerbatim != "" {
			g.scripts = append(g.scripts, n.ImpVerbatim)
		}
	}
}

func (g *generator) renderElement(b *strings.Builder, n *Node) {
	sb := n.StyleBlockChild()
	if sb != nil {
		g.hoistStyleBlock(n, sb)
	}
	if script := n.ScriptBlockChild(); script != nil {
		body := script.ScriptRaw
		if script.IsHDLJS {
			body = lowerHDLJS(body)
		}
		g.scripts = append(g.scripts, body)
	}

	b.WriteByte('<')
	b.WriteString(n.TagName)
	g.renderAttrs(b, n)
	b.WriteByte('>')

	if voidElements[n.TagName] {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Kind {
			case KindElement, KindText, KindOrigin:
				g.diags.Add(newDiagNode(Generation, c, "void element <%s> cannot have children", n.TagName))
				return
			}
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Kind {
		case KindStyleBlock, KindScriptBlock, KindTemplateDef, KindCustomDef, KindConstraint:
			continue
		case KindImport:
			g.renderVerbatimImport(b, c)
		case KindText:
			b.WriteString(html.EscapeString(c.Text))
		case KindComment:
			g.renderComment(b, c)
		case KindOrigin:
			g.renderOrigin(b, c)
		case KindElement:
			g.renderElement(b, c)
		default:
			g.diags.Add(newDiagNode(Generation, c, "unexpected child node kind inside <%s>", n.TagName))
		}
	}

	fmt.Fprintf(b, "</%s>", n.TagName)
}

func (g *generator) renderAttrs(b *strings.Builder, n *Node) {
	order := append([]string(nil), n.AttrOrder...)
	for _, key := range order {
		av := n.Attrs[key]
		fmt.Fprintf(b, " %s=%q", key, html.EscapeString(resolveAttrText(av)))
	}
}

// resolveAttrText renders an attribute value to its compiled text. A
// conditional value compiles to its true branch: CHTL resolves the literal
// shape of the markup at compile time, while the condition's runtime
// semantics (should the target platform want to re-evaluate it) stay
// available via the Cond field that generation does not consume. A chain
// compiles to its parts joined by single spaces ("class: card primary").
func resolveAttrText(av AttrValue) string {
	if av.Kind == StyleConditional {
		return av.TrueValue // compiled default; see DESIGN.md
	}
	if av.Kind == StyleChain {
		return renderStyleValueText(av.StyleValue)
	}
	return av.Literal
}

// hoistStyleBlock folds an element's inline style block into the element's
// "style" attribute and hoists its nested rulesets to the document-level
// stylesheet, resolving '&' against the element's context selector. Bare
// properties stay on the element; only nested rulesets hoist.
func (g *generator) hoistStyleBlock(n *Node, sb *Node) {
	if len(sb.Properties) > 0 {
		styleText := renderProperties(sb.Properties)
		if existing, ok := n.Attrs["style"]; ok && existing.Literal != "" {
			styleText = existing.Literal + " " + styleText
		}
		n.SetAttr("style", AttrValue{Kind: StyleLiteral, StyleValue: StyleValue{Kind: StyleLiteral, Literal: styleText}})
	}

	if len(sb.Rulesets) == 0 {
		return
	}

	ctx := computeContextSelector(n, sb)
	if ctx.attrName != "" {
		if _, exists := n.Attrs[ctx.attrName]; !exists {
			n.SetAttr(ctx.attrName, AttrValue{Kind: StyleLiteral, StyleValue: StyleValue{Kind: StyleLiteral, Literal: ctx.attrValue}})
		}
	}
	for _, rs := range sb.Rulesets {
		sel := rs.Selector
		if strings.Contains(sel, "&") {
			if ctx.selector == "" {
				// No class, no id, nothing to promote — the '&' is
				// hoisted verbatim with a warning instead of being
				// rewritten against a guess.
				g.diags.Add(newDiag(Generation, rs.Source,
					"no context selector available for %q; '&' left unsubstituted", rs.Selector))
				g.css = append(g.css, CSSRule{Selector: sel, Body: renderProperties(rs.Properties)})
				continue
			}
			sel = rewriteSelector(sel, ctx.selector)
		}
		validateSelector(sel, g.diags, rs.Source)
		g.css = append(g.css, CSSRule{Selector: sel, Body: renderProperties(rs.Properties)})
	}
}

func renderProperties(props []Property) string {
	var b strings.Builder
	for _, p := range props {
		fmt.Fprintf(&b, "%s: %s; ", p.Name, renderStyleValueText(p.Value))
	}
	return strings.TrimSpace(b.String())
}

func renderStyleValueText(v StyleValue) string {
	switch v.Kind {
	case StyleLiteral:
		return v.Literal
	case StyleConditional:
		return v.TrueValue
	case StyleChain:
		parts := make([]string, len(v.Chain))
		for i, c := range v.Chain {
			parts[i] = renderStyleValueText(c)
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// RenderStylesheet exposes renderStylesheet to driver code that wants the
// CSS as one string, rendered the same way the assembler renders it.
func RenderStylesheet(rules []CSSRule) string { return renderStylesheet(rules) }

// renderStylesheet joins hoisted rules into one stylesheet body. All rules
// that share a selector, consecutive or not, are merged into one block at
// the position where that selector first appears; rules with an empty
// selector (verbatim CSS) are written as they are, in place.
func renderStylesheet(rules []CSSRule) string {
	type block struct {
		selector string
		bodies   []string
	}
	var order []string
	bySelector := map[string]*block{}
	for _, r := range rules {
		if r.Selector == "" {
			order = append(order, "\x00verbatim\x00"+r.Body)
			continue
		}
		bl, ok := bySelector[r.Selector]
		if !ok {
			bl = &block{selector: r.Selector}
			bySelector[r.Selector] = bl
			order = append(order, r.Selector)
		}
		bl.bodies = append(bl.bodies, r.Body)
	}
	var b strings.Builder
	for _, key := range order {
		if strings.HasPrefix(key, "\x00verbatim\x00") {
			b.WriteString(strings.TrimPrefix(key, "\x00verbatim\x00"))
			b.WriteByte('\n')
			continue
		}
		bl := bySelector[key]
		fmt.Fprintf(&b, "%s { %s }\n", bl.selector, strings.Join(bl.bodies, " "))
	}
	return b.String()
}
