package chtl

import (
	"fmt"
	"regexp"
)

// expander walks a parsed document and resolves every template/custom usage,
// var-group reference, and namespace-qualified lookup into concrete nodes
// and property values. It never aborts on an unresolved reference — it
// emits a Semantic diagnostic and keeps going so the generator still
// produces output for everything else.
type expander struct {
	scope *Scope
	diags *Diagnostics
}

func expandDocument(doc *Node, scope *Scope, diags *Diagnostics) *Node {
	e := &expander{scope: scope, diags: diags}
	e.expandChildren(doc)
	return doc
}

// expandChildren replaces doc's children in place: element/template-usage
// expansion can turn one child into zero or many, so this rebuilds the
// sibling chain rather than mutating while iterating it.
func (e *expander) expandChildren(n *Node) {
	old := n.Children()
	for _, c := range old {
		n.RemoveChild(c)
	}
	for _, c := range old {
		for _, out := range e.expandNode(c) {
			n.AppendChild(out)
		}
	}
}

// expandNode returns the zero-or-more nodes c should be replaced by.
func (e *expander) expandNode(c *Node) []*Node {
	switch c.Kind {
	case KindTemplateUsage:
		return e.expandTemplateUsage(c)
	case KindElement:
		e.expandAttrs(c)
		e.expandChildren(c)
		mergeDuplicateBlocks(c)
		if sb := c.StyleBlockChild(); sb != nil {
			e.expandStyleBlock(sb)
		}
		e.checkConstraints(c)
		return []*Node{c}
	case KindNamespace:
		e.expandChildren(c)
		return []*Node{c}
	case KindStyleBlock:
		e.expandStyleBlock(c)
		return []*Node{c}
	default:
		return []*Node{c}
	}
}

// expandTemplateUsage inlines an @Element template/custom usage at the
// point of use. Custom usages additionally replay their specialization list
// in declaration order against the cloned body.
func (e *expander) expandTemplateUsage(c *Node) []*Node {
	if c.UseKind != TplElement {
		// @Style / @Var usages as standalone statements have no standalone
		// meaning outside a style block; leave them for the caller (the
		// style-block expander handles Usages directly) and otherwise drop
		// them with a diagnostic.
		e.diags.Add(newDiagNode(Semantic, c, "@%s %s has no effect outside a style block", c.UseKind, c.UseName))
		return nil
	}

	def, isCustom := e.lookupElementDef(c)
	if def == nil {
		e.diags.Add(newDiagNode(Semantic, c, "undefined template @Element %s", c.UseName))
		// The usage survives as a comment marker in the output rather
		// than vanishing silently.
		return []*Node{{
			Kind:        KindComment,
			Source:      c.Source,
			CommentKind: TokGeneratorComment,
			CommentText: fmt.Sprintf(" unresolved template @Element %s ", c.UseName),
			Synth:       Synthetic{Reason: "unresolved template usage", From: c.Source},
		}}
	}

	clones := cloneNodes(def.DefChildren, Synthetic{Reason: "template usage: " + c.UseName, From: c.Source})
	if isCustom {
		clones = e.applySpecializations(clones, def.Specializations, c)
	}
	for _, cl := range clones {
		e.expandChildren(cl)
		if cl.Kind == KindElement {
			e.expandAttrs(cl)
			mergeDuplicateBlocks(cl)
			if sb := cl.StyleBlockChild(); sb != nil {
				e.expandStyleBlock(sb)
			}
			e.checkConstraints(cl)
		}
	}
	return clones
}

func (e *expander) lookupElementDef(c *Node) (*Node, bool) {
	ns := e.scope.ResolveAlias(c.UseNamespace)
	if n := e.scope.Lookup(symCustom, TplElement, ns, c.UseName); n != nil {
		return n, true
	}
	if n := e.scope.Lookup(symTemplate, TplElement, ns, c.UseName); n != nil {
		return n, false
	}
	return nil, false
}

// applySpecializations replays a Custom definition's ordered specialization
// list against a freshly cloned body: delete removes a
// property or an inlined template's contribution, insert adds a new
// element relative to a named sibling or to the top/bottom of the body,
// and the usage's inline overrides replace or add properties in the style
// block of the first element in the body that has one. Element attributes
// are not overridden.
func (e *expander) applySpecializations(body []*Node, specs []Specialization, usage *Node) []*Node {
	for _, spec := range specs {
		switch spec.Kind {
		case SpecDeleteElement:
			body = deleteNamedElement(body, spec.RefName)
		case SpecDeleteProperty:
			// The parser can't tell "delete span" (an element tag) apart
			// from "delete color" (a property name) without knowing the
			// body it applies to, so that choice is made here: delete the
			// element if one with this tag exists at the top level of the
			// body, else treat it as a property name.
			if elementNamed(body, spec.RefName) {
				body = deleteNamedElement(body, spec.RefName)
			} else {
				deletePropertyEverywhere(body, spec.PropName)
			}
		case SpecDeleteInheritance:
			// Specializations replay before the cloned body's usages are
			// inlined, so the named template's pending contributions can
			// simply be stripped out here.
			body = deleteInheritanceEverywhere(body, spec.TemplateName)
		case SpecInsertElement:
			body = insertElement(body, spec)
		case SpecAddProperty:
			// Applies to the usage's own inline override set, handled by
			// the caller via usage.Overrides; nothing to do against body.
		}
	}
	for _, ov := range usage.Overrides {
		applyOverrideToFirstStyleBlock(body, ov)
	}
	return body
}

func elementNamed(body []*Node, name string) bool {
	for _, n := range body {
		if n.Kind == KindElement && n.TagName == name {
			return true
		}
	}
	return false
}

func deleteNamedElement(body []*Node, name string) []*Node {
	out := body[:0:0]
	for _, n := range body {
		if n.Kind == KindElement && n.TagName == name {
			continue
		}
		out = append(out, n)
	}
	return out
}

// deleteInheritanceEverywhere strips every not-yet-inlined usage of the
// named template from body: standalone element-template usages and
// style-block usage refs alike. Running before inlining means the
// template's contribution never lands, which is the removal "delete
// inherit Name;" asks for.
func deleteInheritanceEverywhere(body []*Node, name string) []*Node {
	out := body[:0:0]
	for _, n := range body {
		if n.Kind == KindTemplateUsage && n.UseName == name {
			continue
		}
		stripInheritance(n, name)
		out = append(out, n)
	}
	return out
}

func stripInheritance(n *Node, name string) {
	if n.Kind == KindStyleBlock {
		kept := n.Usages[:0:0]
		for _, u := range n.Usages {
			if u.Name != name {
				kept = append(kept, u)
			}
		}
		n.Usages = kept
	}
	for _, c := range n.Children() {
		if c.Kind == KindTemplateUsage && c.UseName == name {
			n.RemoveChild(c)
			continue
		}
		stripInheritance(c, name)
	}
}

func deletePropertyEverywhere(body []*Node, name string) {
	for _, n := range body {
		if n.Kind != KindElement {
			continue
		}
		if sb := n.StyleBlockChild(); sb != nil {
			filtered := sb.Properties[:0:0]
			for _, p := range sb.Properties {
				if p.Name != name {
					filtered = append(filtered, p)
				}
			}
			sb.Properties = filtered
		}
	}
}

func insertElement(body []*Node, spec Specialization) []*Node {
	if spec.NewElement == nil {
		return body
	}
	// Each usage gets its own copy: the specialization list is shared by
	// every use site, and an attached Node cannot join a second tree.
	inserted := cloneNode(spec.NewElement, Synthetic{Reason: "custom insert", From: spec.Source})
	switch spec.Pos {
	case PosAtTop:
		return append([]*Node{inserted}, body...)
	case PosAtBottom:
		return append(body, inserted)
	case PosAfter, PosBefore, PosReplace:
		for i, n := range body {
			if n.Kind == KindElement && n.TagName == spec.RefName {
				switch spec.Pos {
				case PosAfter:
					out := append([]*Node{}, body[:i+1]...)
					out = append(out, inserted)
					return append(out, body[i+1:]...)
				case PosBefore:
					out := append([]*Node{}, body[:i]...)
					out = append(out, inserted)
					return append(out, body[i:]...)
				case PosReplace:
					out := append([]*Node{}, body[:i]...)
					out = append(out, inserted)
					return append(out, body[i+1:]...)
				}
			}
		}
	}
	return body
}

func applyOverrideToFirstStyleBlock(body []*Node, ov Property) {
	for _, n := range body {
		if n.Kind != KindElement {
			continue
		}
		if sb := n.StyleBlockChild(); sb != nil {
			replaced := false
			for i, p := range sb.Properties {
				if p.Name == ov.Name {
					sb.Properties[i].Value = ov.Value
					replaced = true
				}
			}
			if !replaced {
				sb.Properties = append(sb.Properties, ov)
			}
			return
		}
	}
}

// mergeDuplicateBlocks leaves an element with at most one style block and
// one script block, any further occurrences merged into the first in
// textual order.
func mergeDuplicateBlocks(el *Node) {
	var style, script *Node
	for _, c := range el.Children() {
		switch c.Kind {
		case KindStyleBlock:
			if style == nil {
				style = c
				continue
			}
			style.Properties = append(style.Properties, c.Properties...)
			style.Rulesets = append(style.Rulesets, c.Rulesets...)
			style.Usages = append(style.Usages, c.Usages...)
			el.RemoveChild(c)
		case KindScriptBlock:
			if script == nil {
				script = c
				continue
			}
			if script.ScriptRaw != "" && c.ScriptRaw != "" {
				script.ScriptRaw += "\n"
			}
			script.ScriptRaw += c.ScriptRaw
			script.IsHDLJS = script.IsHDLJS || c.IsHDLJS
			el.RemoveChild(c)
		}
	}
}

// checkConstraints enforces a [Constraint] except child: the named
// attributes are forbidden on its enclosing element.
func (e *expander) checkConstraints(el *Node) {
	for _, c := range el.Children() {
		if c.Kind != KindConstraint {
			continue
		}
		for _, name := range c.ConstraintFor {
			if _, ok := el.Attrs[name]; ok {
				e.diags.Add(newDiag(Semantic, c.Source,
					"attribute %q is forbidden on <%s> by a constraint", name, el.TagName))
			}
		}
	}
}

// expandAttrs resolves conditional attribute values' diagnostics (the
// condition was already parsed by expr-lang during parsing; nothing further
// runs here since evaluation is deferred to the target platform).
func (e *expander) expandAttrs(n *Node) {
	for _, av := range n.Attrs {
		if av.Kind == StyleConditional && !av.CondValid {
			e.diags.Add(newDiagNode(Semantic, n, "malformed condition in attribute value: %q", av.Cond))
		}
	}
}

// mergeStyleProperties splices a template's properties into a host style
// block; properties already present on the host win. Each name
// keeps the position of its first occurrence but takes the value of its
// last occurrence, so an explicit host property declared after a template
// usage overrides that template's value for the same name without leaving
// a duplicate entry behind.
func mergeStyleProperties(inherited, own []Property) []Property {
	combined := append(append([]Property(nil), inherited...), own...)
	index := make(map[string]int, len(combined))
	out := make([]Property, 0, len(combined))
	for _, p := range combined {
		if i, ok := index[p.Name]; ok {
			out[i].Value = p.Value
			continue
		}
		index[p.Name] = len(out)
		out = append(out, p)
	}
	return out
}

func (e *expander) expandStyleBlock(sb *Node) {
	var inherited []Property
	for _, use := range sb.Usages {
		ns := e.scope.ResolveAlias(use.Namespace)
		def := e.scope.Lookup(symCustom, use.Kind, ns, use.Name)
		if def == nil {
			def = e.scope.Lookup(symTemplate, use.Kind, ns, use.Name)
		}
		if def == nil {
			e.diags.Add(newDiag(Semantic, use.Source, "undefined template @%s %s", use.Kind, use.Name))
			continue
		}
		inherited = append(inherited, def.DefProperties...)
	}
	sb.Properties = mergeStyleProperties(inherited, sb.Properties)
	sb.Usages = nil

	for i := range sb.Properties {
		sb.Properties[i].Value = e.resolveVarRefs(sb.Properties[i].Value)
	}
	for ri := range sb.Rulesets {
		for pi := range sb.Rulesets[ri].Properties {
			sb.Rulesets[ri].Properties[pi].Value = e.resolveVarRefs(sb.Rulesets[ri].Properties[pi].Value)
		}
	}
}

var varRefPattern = regexp.MustCompile(`^@Var ([A-Za-z_][\w]*)\.([A-Za-z_][\w]*)$`)

// resolveVarRefs substitutes an "@Var Name.key" literal with the value
// stored under key in the @Var template named Name. Anything that isn't
// shaped like a var reference passes through untouched.
func (e *expander) resolveVarRefs(v StyleValue) StyleValue {
	if v.Kind != StyleLiteral {
		return v
	}
	m := varRefPattern.FindStringSubmatch(v.Literal)
	if m == nil {
		return v
	}
	def := e.scope.Lookup(symTemplate, TplVar, "", m[1])
	if def == nil {
		def = e.scope.Lookup(symCustom, TplVar, "", m[1])
	}
	if def == nil {
		e.diags.Add(newDiag(Semantic, v.Source, "undefined @Var group %s", m[1]))
		return v
	}
	for _, p := range def.DefProperties {
		if p.Name == m[2] {
			return StyleValue{Kind: StyleLiteral, Literal: p.Value.Literal, Source: v.Source}
		}
	}
	e.diags.Add(newDiag(Semantic, v.Source, "@Var group %s has no key %s", m[1], m[2]))
	return v
}

// cloneNodes deep-copies a definition's body for one usage site, stamping
// every clone with Synthetic provenance pointing back at the usage so
// position tracking survives expansion.
func cloneNodes(src []*Node, synth Synthetic) []*Node {
	out := make([]*Node, 0, len(src))
	for _, n := range src {
		out = append(out, cloneNode(n, synth))
	}
	return out
}

func cloneNode(n *Node, synth Synthetic) *Node {
	c := &Node{
		Kind: n.Kind, Source: n.Source, Synth: synth,
		TagName: n.TagName, Text: n.Text, TextQuoted: n.TextQuoted,
		ScriptRaw: n.ScriptRaw, IsHDLJS: n.IsHDLJS,
		DefKind: n.DefKind, DefName: n.DefName,
		UseKind: n.UseKind, UseName: n.UseName, UseNamespace: n.UseNamespace,
		NsName: n.NsName, OriginK: n.OriginK, OriginTag: n.OriginTag, OriginVerbatim: n.OriginVerbatim,
		CommentText: n.CommentText, CommentKind: n.CommentKind,
		ImpKind: n.ImpKind, ImpPath: n.ImpPath, ImpAlias: n.ImpAlias, ImpOnly: n.ImpOnly, ImpVerbatim: n.ImpVerbatim,
		ConstraintKind: n.ConstraintKind,
	}
	if n.ImpExcept != nil {
		c.ImpExcept = append([]string(nil), n.ImpExcept...)
	}
	if n.ConstraintFor != nil {
		c.ConstraintFor = append([]string(nil), n.ConstraintFor...)
	}
	if n.Attrs != nil {
		c.Attrs = make(map[string]AttrValue, len(n.Attrs))
		for _, k := range n.AttrOrder {
			c.SetAttr(k, n.Attrs[k])
		}
	}
	if n.Properties != nil {
		c.Properties = append([]Property(nil), n.Properties...)
	}
	if n.Rulesets != nil {
		c.Rulesets = append([]Ruleset(nil), n.Rulesets...)
	}
	if n.Usages != nil {
		c.Usages = append([]TemplateUsageRef(nil), n.Usages...)
	}
	if n.Overrides != nil {
		c.Overrides = append([]Property(nil), n.Overrides...)
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneNode(ch, synth))
	}
	return c
}
