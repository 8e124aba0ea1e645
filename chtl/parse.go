package chtl

import (
	"strings"
)

// Parser is a hand-written recursive-descent parser with one-token
// lookahead: strict about structure (braces, keyword-brackets), lenient
// about atoms (an unquoted identifier is accepted wherever a string would
// be).
type Parser struct {
	file   string
	src    []byte
	tokens []Token
	pos    int

	diags    *Diagnostics
	scope    *Scope
	importer *importer

	doc *Node

	config *Node // the [Configuration] node, if one was parsed

	// namespacePath is the dot-joined path of enclosing [Namespace] blocks
	// the parser is currently inside ("" at the top level); definitions are
	// registered under it so namespace-qualified lookups resolve.
	namespacePath string
}

// pushNamespace enters ns (nesting under any already-active namespace path)
// and returns a function that restores the previous path.
func (p *Parser) pushNamespace(ns string) func() {
	prev := p.namespacePath
	if prev == "" {
		p.namespacePath = ns
	} else {
		p.namespacePath = prev + "." + ns
	}
	return func() { p.namespacePath = prev }
}

// parseDocument is the entry point for compiling one top-level file. It
// parses in two passes: a first pass locates a leading [Configuration]
// block (the only legal position) and rebuilds the tokenizer's keyword
// table from its name-overrides sub-table before the real parse begins.
func parseDocument(file string, src []byte, loader FileLoader, diags *Diagnostics) (*Node, *Scope) {
	im := newImporter(loader, diags)
	if loader != nil {
		// The entry file joins the visiting set so a transitive import back
		// to it is caught as a cycle, not re-parsed forever.
		im.visiting[loader.Canonicalize(file)] = true
	}
	return parseDocumentWith(file, src, im, diags)
}

// parseDocumentWith parses one file against an existing importer, so nested
// @Chtl imports share a single visiting set and parse cache across the whole
// import graph.
func parseDocumentWith(file string, src []byte, im *importer, diags *Diagnostics) (*Node, *Scope) {
	overrides := tokenizerKeywordOverrides(scanLeadingConfigOverrides(src))

	tz := NewTokenizer(src)
	if len(overrides) > 0 {
		tz.SetKeywordOverrides(overrides)
	}

	var tokens []Token
	for {
		tok := tz.Next()
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			break
		}
	}

	p := &Parser{
		file:     file,
		src:      src,
		tokens:   tokens,
		diags:    diags,
		scope:    NewScope(),
		importer: im,
	}
	p.doc = &Node{Kind: KindDocument, Source: Source{File: file}}
	p.parseTopLevel()
	return p.doc, p.scope
}

// ParseSource parses a single standalone document with no import
// capability, for callers (such as tests) that only need the tree.
func ParseSource(file string, src []byte) (*Node, *Diagnostics) {
	diags := &Diagnostics{}
	doc, _ := parseDocument(file, src, nil, diags)
	return doc, diags
}

// --- token cursor helpers -------------------------------------------------

func (p *Parser) peek() Token { return p.tokens[p.pos] }
func (p *Parser) peekAt(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() Token {
	t := p.tokens[p.pos]
	if t.Kind != TokEOF {
		p.pos++
	}
	return t
}

func (p *Parser) at(kind TokenKind) bool { return p.peek().Kind == kind }

func (p *Parser) atWord(word string) bool {
	t := p.peek()
	return t.Kind == TokWord && t.Literal == word
}

func (p *Parser) atKeywordBracket(word string) bool {
	t := p.peek()
	return t.Kind == TokKeywordBracket && t.Literal == word
}

func (p *Parser) atAtKeyword(word string) bool {
	t := p.peek()
	return t.Kind == TokAtKeyword && t.Literal == word
}

func (p *Parser) errorHere(kind DiagnosticKind, format string, args ...any) {
	p.diags.Add(newDiag(kind, p.sourceAt(p.peek()), format, args...))
}

func (p *Parser) sourceAt(t Token) Source {
	return Source{File: p.file, Span: t.Span}
}

// expect consumes a token of the given kind, or records a Syntax diagnostic
// and advances one token so an unexpected token can't loop forever.
func (p *Parser) expect(kind TokenKind) Token {
	if p.peek().Kind == kind {
		return p.advance()
	}
	p.errorHere(Syntax, "expected %s, got %s", kind, p.peek().Kind)
	return p.advance()
}

// --- top level -------------------------------------------------------------

func (p *Parser) parseTopLevel() {
	first := true
	for !p.at(TokEOF) {
		if p.atKeywordBracket("Configuration") {
			cfg := p.parseConfiguration()
			if !first {
				p.diags.Add(newDiag(Syntax, cfg.Source,
					"[Configuration] must be the first top-level statement"))
			}
			p.config = cfg
			p.doc.AppendChild(cfg)
			first = false
			continue
		}
		t := p.peek()
		if t.Kind == TokLineComment || t.Kind == TokBlockComment || t.Kind == TokGeneratorComment {
			// Comments don't occupy the "first statement" slot a leading
			// [Configuration] is entitled to.
			p.doc.AppendChild(p.parseComment())
			continue
		}
		first = false
		n := p.parseStatement()
		if n != nil {
			p.doc.AppendChild(n)
		}
	}
}

// parseStatement dispatches on the current token.
func (p *Parser) parseStatement() *Node {
	t := p.peek()
	switch {
	case t.Kind == TokLineComment || t.Kind == TokBlockComment || t.Kind == TokGeneratorComment:
		return p.parseComment()
	case t.Kind == TokKeywordBracket:
		switch t.Literal {
		case "Template":
			return p.parseTemplateOrCustomDef(false)
		case "Custom":
			return p.parseTemplateOrCustomDef(true)
		case "Origin":
			return p.parseOrigin()
		case "Import":
			return p.parseImport()
		case "Namespace":
			return p.parseNamespace()
		case "Constraint":
			return p.parseConstraint()
		case "Configuration":
			// Only legal as the very first statement; parseTopLevel already
			// special-cases that slot, so reaching here means it's
			// misplaced. Parse it anyway so we can keep going.
			n := p.parseConfiguration()
			p.diags.Add(newDiag(Syntax, n.Source, "[Configuration] must be the first top-level statement"))
			return n
		default:
			p.errorHere(Syntax, "unexpected keyword bracket [%s] here", t.Literal)
			p.advance()
			return nil
		}
	case t.Kind == TokAtKeyword:
		return p.parseTemplateUsage()
	case t.Kind == TokWord && (t.Literal == "text" || t.Literal == "style" || t.Literal == "script") && p.peekAt(1).Kind == TokLBrace:
		return p.parseDedicatedBlock(t.Literal)
	case t.Kind == TokWord && t.Literal == "use":
		// "use html5;" requests the standards doctype, which is already the
		// default; the statement is consumed so documents carrying it parse
		// clean.
		p.advance()
		if p.atWord("html5") {
			p.advance()
		} else {
			p.errorHere(Syntax, "expected html5 after use")
		}
		p.consumeOptional(TokSemicolon)
		return nil
	case t.Kind == TokIdent && p.peekAt(1).Kind == TokLBrace:
		return p.parseElement()
	default:
		p.errorHere(Syntax, "unexpected token %s", t.Kind)
		p.advance()
		return nil
	}
}

func (p *Parser) parseComment() *Node {
	t := p.advance()
	return &Node{
		Kind:        KindComment,
		Source:      p.sourceAt(t),
		CommentText: t.Literal,
		CommentKind: t.Kind,
	}
}

// --- elements ----------------------------------------------------------

func (p *Parser) parseElement() *Node {
	tag := p.advance()
	n := &Node{Kind: KindElement, TagName: tag.Literal, Source: p.sourceAt(tag)}
	p.expect(TokLBrace)
	p.parseElementBody(n)
	p.expect(TokRBrace)
	return n
}

// parseElementBody classifies each statement by the token after an
// identifier: ':' or '=' makes it an attribute, '{' makes it a nested
// element.
func (p *Parser) parseElementBody(n *Node) {
	for !p.at(TokRBrace) && !p.at(TokEOF) {
		t := p.peek()
		switch {
		case t.Kind == TokLineComment || t.Kind == TokBlockComment || t.Kind == TokGeneratorComment:
			n.AppendChild(p.parseComment())
		case t.Kind == TokKeywordBracket:
			switch t.Literal {
			case "Template":
				n.AppendChild(p.parseTemplateOrCustomDef(false))
			case "Custom":
				n.AppendChild(p.parseTemplateOrCustomDef(true))
			case "Origin":
				n.AppendChild(p.parseOrigin())
			case "Import":
				n.AppendChild(p.parseImport())
			case "Constraint":
				n.AppendChild(p.parseConstraint())
			default:
				p.errorHere(Syntax, "unexpected keyword bracket [%s] inside element body", t.Literal)
				p.advance()
			}
		case t.Kind == TokAtKeyword:
			n.AppendChild(p.parseTemplateUsage())
		case t.Kind == TokWord && (t.Literal == "text" || t.Literal == "style" || t.Literal == "script") && p.peekAt(1).Kind == TokLBrace:
			n.AppendChild(p.parseDedicatedBlock(t.Literal))
		case t.Kind == TokWord && t.Literal == "text" && (p.peekAt(1).Kind == TokColon || p.peekAt(1).Kind == TokEquals):
			n.AppendChild(p.parseTextAttributeShape())
		case (t.Kind == TokIdent || t.Kind == TokWord) && p.peekAt(1).Kind == TokLBrace:
			n.AppendChild(p.parseElement())
		case (t.Kind == TokIdent || t.Kind == TokWord) && (p.peekAt(1).Kind == TokColon || p.peekAt(1).Kind == TokEquals):
			p.parseAttribute(n)
		default:
			p.errorHere(Syntax, "unexpected token %s in element body", t.Kind)
			p.advance()
		}
	}
}

// parseTextAttributeShape handles "text: value ;" as an attribute-shaped
// alternative to "text { ... }".
func (p *Parser) parseTextAttributeShape() *Node {
	start := p.advance() // 'text'
	p.advance()          // ':' or '='
	val := p.parseSimpleValue()
	if p.at(TokSemicolon) {
		p.advance()
	}
	return &Node{Kind: KindText, Source: p.sourceAt(start), Text: val.text, TextQuoted: val.quoted}
}

func (p *Parser) parseAttribute(n *Node) {
	key := p.advance()
	p.advance() // ':' or '='
	v := p.parseAttrValue()
	if p.at(TokSemicolon) {
		p.advance()
	}
	n.SetAttr(key.Literal, v)
}

type simpleValue struct {
	text   string
	quoted bool
}

func (p *Parser) parseSimpleValue() simpleValue {
	t := p.peek()
	switch t.Kind {
	case TokString:
		p.advance()
		return simpleValue{text: t.Literal, quoted: true}
	case TokIdent, TokNumber, TokWord:
		p.advance()
		return simpleValue{text: t.Literal, quoted: false}
	default:
		p.errorHere(Syntax, "expected a value, got %s", t.Kind)
		p.advance()
		return simpleValue{}
	}
}

// parseAttrValue parses "string | ident | conditional": the condition
// segment is read verbatim up to '?' or a terminator, then optionally ':'
// and a second value.
func (p *Parser) parseAttrValue() AttrValue {
	sv := p.parseStyleValueLike(true)
	return AttrValue{Kind: sv.Kind, StyleValue: sv}
}

// parseStyleValueLike implements the shared "literal | cond '?' literal (':'
// literal)?" grammar used by both attribute values and style-block property
// values. A trailing ';' is never consumed by this function, whatever
// forAttr is (the caller does it).
func (p *Parser) parseStyleValueLike(forAttr bool) StyleValue {
	start := p.peek()

	// Scan ahead on a copy of the cursor position to see whether a
	// terminator is reached before a '?' — if so this is a plain literal.
	savePos := p.pos
	isConditional := false
	depth := 0
	for i := p.pos; i < len(p.tokens); i++ {
		t := p.tokens[i]
		if t.Kind == TokLBrace {
			depth++
		}
		if t.Kind == TokRBrace {
			if depth == 0 {
				break
			}
			depth--
		}
		if depth == 0 && (t.Kind == TokSemicolon || t.Kind == TokEOF || t.Kind == TokRBrace) {
			break
		}
		if depth == 0 && t.Kind == TokQuestion {
			isConditional = true
			break
		}
	}
	p.pos = savePos

	if !isConditional {
		first := p.parseAtomText()
		chain := []StyleValue{{Kind: StyleLiteral, Literal: first, Source: p.sourceAt(start)}}
		for p.canStartAtom() && !p.atomStartsNextStatement() {
			lit := p.parseAtomText()
			chain = append(chain, StyleValue{Kind: StyleLiteral, Literal: lit})
		}
		if len(chain) == 1 {
			return chain[0]
		}
		return StyleValue{Kind: StyleChain, Chain: chain, Source: p.sourceAt(start)}
	}

	// Conditional: read the condition segment verbatim up to '?'.
	condStart := p.pos
	for !p.at(TokQuestion) && !p.at(TokSemicolon) && !p.at(TokEOF) && !p.at(TokRBrace) {
		p.advance()
	}
	cond := p.rawTextBetween(condStart, p.pos)
	qPos := p.peek().Span.Offset - start.Span.Offset
	p.expect(TokQuestion)
	trueVal := p.parseAtomText()
	hasFalse := false
	falseVal := ""
	colonPos := -1
	if p.at(TokColon) {
		colonPos = p.peek().Span.Offset - start.Span.Offset
		p.advance()
		falseVal = p.parseAtomText()
		hasFalse = true
	}
	if !forAttr && p.at(TokSemicolon) {
		// caller consumes ';'
	}
	return StyleValue{
		Kind: StyleConditional, Source: p.sourceAt(start),
		Cond: strings.TrimSpace(cond), CondValid: validateCondExpr(cond),
		TrueValue: trueVal, FalseValue: falseVal, HasFalse: hasFalse,
		QuestionPos: qPos, ColonPos: colonPos,
	}
}

func (p *Parser) canStartAtom() bool {
	switch p.peek().Kind {
	case TokString, TokIdent, TokNumber, TokWord:
		return true
	case TokAtKeyword:
		return p.peek().Literal == "Var"
	default:
		return false
	}
}

// atomStartsNextStatement keeps an unterminated value (no trailing ';') from
// swallowing the identifier that actually opens the next attribute, nested
// element, or property: "class: card" followed by "text { ... }" ends the
// chain at "card".
func (p *Parser) atomStartsNextStatement() bool {
	t := p.peek()
	if t.Kind != TokIdent && t.Kind != TokWord {
		return false
	}
	switch p.peekAt(1).Kind {
	case TokLBrace, TokColon, TokEquals:
		return true
	}
	return false
}

// parseAtomText parses one value atom: either a plain literal (string,
// identifier, number, or bare word) or a "@Var Name.key" variable-group
// reference. The latter is kept verbatim as a single atom string
// ("@Var Name.key") for resolveVarRefs to match and substitute during
// semantic expansion.
func (p *Parser) parseAtomText() string {
	if p.peek().Kind == TokAtKeyword && p.peek().Literal == "Var" {
		return p.parseVarRefAtom()
	}
	v := p.parseSimpleValue()
	return v.text
}

// parseVarRefAtom consumes "@Var Name.key" and renders it back to that exact
// textual form so resolveVarRefs can recognize it later.
func (p *Parser) parseVarRefAtom() string {
	p.advance() // '@Var'
	name := p.expect(TokIdent)
	p.expect(TokDot)
	key := p.expect(TokIdent)
	return "@Var " + name.Literal + "." + key.Literal
}

// rawTextBetween returns the verbatim source bytes spanning the tokens in
// [from, to), for constructs (a conditional's condition, a script block's
// body, an origin's embedded content) that must be preserved exactly as
// written. Slicing the source keeps string quotes, spacing, and comment
// text that a literal-by-literal reconstruction would lose.
func (p *Parser) rawTextBetween(from, to int) string {
	if from >= to || from >= len(p.tokens) {
		return ""
	}
	start := p.tokens[from].Span.Offset
	end := len(p.src)
	if to < len(p.tokens) {
		end = p.tokens[to].Span.Offset
	}
	if start > end || end > len(p.src) {
		return ""
	}
	return string(p.src[start:end])
}

// --- text / style / script dedicated blocks ------------------------------

func (p *Parser) parseDedicatedBlock(word string) *Node {
	start := p.advance() // the word itself
	p.expect(TokLBrace)
	var n *Node
	switch word {
	case "text":
		n = p.parseTextBlockBody(start)
	case "style":
		n = p.parseStyleBlockBody(start)
	case "script":
		n = p.parseScriptBlockBody(start)
	}
	p.expect(TokRBrace)
	return n
}

func (p *Parser) parseTextBlockBody(start Token) *Node {
	var b strings.Builder
	quoted := true
	first := true
	for !p.at(TokRBrace) && !p.at(TokEOF) {
		v := p.parseSimpleValue()
		if !first {
			b.WriteByte(' ')
		}
		b.WriteString(v.text)
		quoted = quoted && v.quoted
		first = false
	}
	return &Node{Kind: KindText, Source: p.sourceAt(start), Text: b.String(), TextQuoted: quoted}
}

// parseStyleBlockBody parses "(property | ruleset | template-usage)*".
func (p *Parser) parseStyleBlockBody(start Token) *Node {
	n := &Node{Kind: KindStyleBlock, Source: p.sourceAt(start)}
	for !p.at(TokRBrace) && !p.at(TokEOF) {
		switch {
		case p.peek().Kind == TokAtKeyword:
			use := p.parseTemplateUsageRef()
			p.consumeOptional(TokSemicolon)
			n.Usages = append(n.Usages, use)
		case p.isSelectorStart():
			n.Rulesets = append(n.Rulesets, p.parseRuleset())
		case p.peek().Kind == TokIdent || p.peek().Kind == TokWord:
			n.Properties = append(n.Properties, p.parseProperty())
		default:
			p.errorHere(Syntax, "unexpected token %s in style block", p.peek().Kind)
			p.advance()
		}
	}
	return n
}

// isSelectorStart looks ahead for "selector { ...": a selector begins with
// '.', '#', '&', or a bare identifier/word. A bare identifier immediately
// followed by ':' or '=' is a property ("color: red;"), anything else is
// classified by whether a '{' arrives before the statement terminates —
// selectors like "&:hover" and "& > p" contain ':' and '>' tokens of their
// own, so the scan can't bail on those.
func (p *Parser) isSelectorStart() bool {
	t := p.peek()
	switch t.Kind {
	case TokDot, TokHash, TokAmp:
	case TokIdent, TokWord:
		switch p.peekAt(1).Kind {
		case TokColon, TokEquals:
			return false
		}
	default:
		return false
	}
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].Kind {
		case TokLBrace:
			return true
		case TokSemicolon, TokRBrace, TokEOF:
			return false
		}
	}
	return false
}

func (p *Parser) parseSelectorText() (string, Token) {
	start := p.peek()
	from := p.pos
	for !p.at(TokLBrace) && !p.at(TokEOF) {
		p.advance()
	}
	return strings.TrimSpace(p.rawTextBetween(from, p.pos)), start
}

func (p *Parser) parseRuleset() Ruleset {
	selector, start := p.parseSelectorText()
	p.expect(TokLBrace)
	var props []Property
	for !p.at(TokRBrace) && !p.at(TokEOF) {
		props = append(props, p.parseProperty())
	}
	p.expect(TokRBrace)
	return Ruleset{Selector: selector, Properties: props, Source: p.sourceAt(start)}
}

func (p *Parser) parseProperty() Property {
	name := p.advance()
	p.expect(TokColon)
	val := p.parseStyleValueLike(false)
	if p.at(TokSemicolon) {
		p.advance()
	}
	return Property{Name: name.Literal, Value: val, Source: p.sourceAt(name)}
}

func (p *Parser) parseScriptBlockBody(start Token) *Node {
	// Collect raw source text verbatim up to the matching '}', tracking
	// brace depth so nested object/block literals inside the script don't
	// terminate the block early.
	depth := 0
	from := p.pos
	for {
		t := p.peek()
		if t.Kind == TokEOF {
			p.errorHere(Syntax, "unterminated script block")
			break
		}
		if t.Kind == TokLBrace {
			depth++
		}
		if t.Kind == TokRBrace {
			if depth == 0 {
				break
			}
			depth--
		}
		p.advance()
	}
	raw := strings.TrimSpace(p.rawTextBetween(from, p.pos))
	return &Node{Kind: KindScriptBlock, Source: p.sourceAt(start), ScriptRaw: raw, IsHDLJS: looksLikeHDLJS(raw)}
}

// --- template / custom definitions and usages ----------------------------

// parseTemplateKind consumes one "@Style"/"@Element"/"@Var" token — the
// tokenizer lexes each recognized @Word as a single TokAtKeyword carrying
// the bare word (chtl/token.go, lexAtKeyword).
func (p *Parser) parseTemplateKind() TemplateKind {
	t := p.advance()
	switch strings.TrimPrefix(t.Literal, "@") {
	case "Style":
		return TplStyle
	case "Element":
		return TplElement
	case "Var":
		return TplVar
	default:
		p.diags.Add(newDiag(Syntax, p.sourceAt(t), "unknown template kind @%s, expected @Style, @Element, or @Var", t.Literal))
		return TplStyle
	}
}

func (p *Parser) parseTemplateOrCustomDef(isCustom bool) *Node {
	start := p.advance() // '[Template]' or '[Custom]'
	kind := p.parseTemplateKind()
	name := p.expect(TokIdent)
	n := &Node{Kind: KindTemplateDef, Source: p.sourceAt(start), DefKind: kind, DefName: name.Literal}
	if isCustom {
		n.Kind = KindCustomDef
	}
	p.expect(TokLBrace)

	switch kind {
	case TplStyle, TplVar:
		for !p.at(TokRBrace) && !p.at(TokEOF) {
			if isCustom && p.atSpecializationKeyword() {
				n.Specializations = append(n.Specializations, p.parseSpecialization())
				continue
			}
			n.DefProperties = append(n.DefProperties, p.parseProperty())
		}
	case TplElement:
		for !p.at(TokRBrace) && !p.at(TokEOF) {
			if isCustom && p.atSpecializationKeyword() {
				n.Specializations = append(n.Specializations, p.parseSpecialization())
				continue
			}
			child := p.parseStatement()
			if child != nil {
				n.DefChildren = append(n.DefChildren, child)
			}
		}
	}
	p.expect(TokRBrace)

	kind2 := symTemplate
	if isCustom {
		kind2 = symCustom
	}
	p.scope.Define(kind2, kind, p.namespacePath, name.Literal, n)
	return n
}

func (p *Parser) atSpecializationKeyword() bool {
	t := p.peek()
	return t.Kind == TokWord && (t.Literal == "delete" || t.Literal == "insert")
}

// parseSpecialization parses one ordered specialization step of a Custom
// definition.
func (p *Parser) parseSpecialization() Specialization {
	start := p.peek()
	kw := p.advance()
	switch kw.Literal {
	case "delete":
		// delete PropName ;                  -> SpecDeleteProperty
		// delete inherit TemplateName ;       -> SpecDeleteInheritance
		// delete ElementName ;                -> SpecDeleteProperty too (the expander tells elements from properties)
		if p.atWord("inherit") {
			p.advance()
			tname := p.expect(TokIdent)
			p.consumeOptional(TokSemicolon)
			return Specialization{Kind: SpecDeleteInheritance, TemplateName: tname.Literal, Source: p.sourceAt(start)}
		}
		name := p.expect(TokIdent)
		spec := Specialization{Kind: SpecDeleteProperty, PropName: name.Literal, RefName: name.Literal, Source: p.sourceAt(start)}
		p.consumeOptional(TokSemicolon)
		return spec
	case "insert":
		pos := p.parseInsertPos()
		ref := ""
		if pos == PosAfter || pos == PosBefore || pos == PosReplace {
			ref = p.expect(TokIdent).Literal
		}
		var newEl *Node
		if p.peek().Kind == TokIdent && p.peekAt(1).Kind == TokLBrace {
			newEl = p.parseElement()
		}
		return Specialization{Kind: SpecInsertElement, Pos: pos, RefName: ref, NewElement: newEl, Source: p.sourceAt(start)}
	default:
		// add-property shorthand: "PropName : Value ;" parsed like a normal
		// property but tagged as an override.
		name := kw
		p.expect(TokColon)
		val := p.parseStyleValueLike(false)
		p.consumeOptional(TokSemicolon)
		return Specialization{Kind: SpecAddProperty, PropName: name.Literal, PropValue: val, Source: p.sourceAt(start)}
	}
}

func (p *Parser) parseInsertPos() InsertPos {
	if p.atWord("after") {
		p.advance()
		return PosAfter
	}
	if p.atWord("before") {
		p.advance()
		return PosBefore
	}
	if p.atWord("replace") {
		p.advance()
		return PosReplace
	}
	// "at top" / "at bottom" compositional keywords
	if p.peek().Kind == TokIdent && p.peek().Literal == "at" {
		p.advance()
		if p.atWord("top") {
			p.advance()
			return PosAtTop
		}
		if p.atWord("bottom") {
			p.advance()
			return PosAtBottom
		}
	}
	p.errorHere(Syntax, "expected after/before/replace/at top/at bottom")
	return PosAtBottom
}

func (p *Parser) consumeOptional(k TokenKind) {
	if p.peek().Kind == k {
		p.advance()
	}
}

// parseTemplateUsage parses "@Kind Name [inline overrides] ;" as a
// standalone statement, most often an element-template usage placed as a
// child.
func (p *Parser) parseTemplateUsage() *Node {
	ref := p.parseTemplateUsageRef()
	n := &Node{Kind: KindTemplateUsage, Source: ref.Source, UseKind: ref.Kind, UseName: ref.Name, UseNamespace: ref.Namespace}
	if p.at(TokLBrace) {
		p.advance()
		for !p.at(TokRBrace) && !p.at(TokEOF) {
			n.Overrides = append(n.Overrides, p.parseProperty())
		}
		p.expect(TokRBrace)
	} else {
		p.consumeOptional(TokSemicolon)
	}
	return n
}

// parseTemplateUsageRef parses "@Kind Name [from namespace-path]" without
// consuming any trailing ';' or '{' — used both for standalone usages and
// usages referenced inside a style block.
func (p *Parser) parseTemplateUsageRef() TemplateUsageRef {
	start := p.peek()
	kind := p.parseTemplateKind()
	name := p.expect(TokIdent)
	ns := ""
	if p.atWord("from") {
		p.advance()
		ns = p.expect(TokIdent).Literal
		for p.at(TokDot) {
			p.advance()
			ns += "." + p.expect(TokIdent).Literal
		}
	}
	return TemplateUsageRef{Kind: kind, Name: name.Literal, Namespace: ns, Source: p.sourceAt(start)}
}

// --- import / namespace / configuration / origin / constraint -----------

func (p *Parser) parseImport() *Node {
	start := p.advance() // '[Import]'
	kindTok := p.advance()
	n := &Node{Kind: KindImport, Source: p.sourceAt(start)}
	switch strings.TrimPrefix(kindTok.Literal, "@") {
	case "Html":
		n.ImpKind = ImportHtml
	case "Style":
		n.ImpKind = ImportStyle
	case "JavaScript":
		n.ImpKind = ImportJavaScript
	case "Chtl":
		n.ImpKind = ImportChtl
	case "CJmod":
		n.ImpKind = ImportCJmod
	case "Config":
		n.ImpKind = ImportConfig
	default:
		p.diags.Add(newDiag(Syntax, p.sourceAt(kindTok), "unknown import kind @%s", kindTok.Literal))
	}

	// Optional selective name before 'from' (e.g. "[Import] @Chtl Name from path").
	if p.peek().Kind == TokIdent && !p.atWord("from") {
		n.ImpOnly = p.advance().Literal
	}

	p.expectWord("from")
	n.ImpPath = p.parsePathLiteral()

	if p.atWord("as") {
		p.advance()
		n.ImpAlias = p.expect(TokIdent).Literal
	}
	if p.atWord("except") {
		p.advance()
		n.ImpExcept = append(n.ImpExcept, p.expect(TokIdent).Literal)
		for p.at(TokComma) {
			p.advance()
			n.ImpExcept = append(n.ImpExcept, p.expect(TokIdent).Literal)
		}
	}
	p.consumeOptional(TokSemicolon)

	switch n.ImpKind {
	case ImportChtl:
		p.foldImport(n)
	case ImportHtml, ImportStyle, ImportJavaScript:
		// .html/.css/.js import kinds are included verbatim into the
		// matching output bucket rather than parsed, so the importer just
		// reads the raw bytes.
		if verbatim, ok := p.importer.resolveVerbatim(n.ImpPath, n.Source); ok {
			n.ImpVerbatim = verbatim
		}
	case ImportCJmod:
		p.foldCmodImport(n)
	case ImportConfig:
		p.foldConfigImport(n)
	}
	return n
}

// foldCmodImport loads a .cmod/.cjmod package and merges only its
// manifest-[Export]-ed names into the current scope, as a namespace rooted
// at the module's own name — an unexported template/custom defined inside
// the module stays invisible to importers.
func (p *Parser) foldCmodImport(n *Node) {
	manifest, _, scope, ok := p.importer.resolveCmod(n.ImpPath, n.Source)
	if !ok || manifest == nil {
		return
	}
	exported := make([]string, 0, len(manifest.Exports))
	for _, e := range manifest.Exports {
		exported = append(exported, e.Name)
	}
	filtered := filterScopeToNames(scope, exported)
	if len(n.ImpExcept) > 0 {
		filtered = filterScope(filtered, n.ImpExcept)
	}
	p.scope.Merge(filtered, manifest.Name)
	if n.ImpAlias != "" {
		p.scope.SetAlias(n.ImpAlias, manifest.Name)
	}
}

// foldConfigImport merges another file's leading [Configuration] table into
// the current document's as defaults: keys the current document already set
// win, since an importer is pulling in shared defaults, not overriding what
// it explicitly declared itself. Only applies when the current document
// already has its own leading [Configuration] block — once parsing has
// moved past the first-statement slot there is nowhere to retroactively
// invent one, so a document without its own block just keeps configBool's
// fallback defaults.
func (p *Parser) foldConfigImport(n *Node) {
	if p.config == nil {
		return
	}
	doc, _, ok := p.importer.resolveChtl(n.ImpPath, n.Source)
	if !ok {
		return
	}
	imported := documentConfiguration(doc)
	if imported == nil {
		return
	}
	for k, v := range imported.ConfigValues {
		if _, exists := p.config.ConfigValues[k]; !exists {
			p.config.ConfigValues[k] = v
		}
	}
	p.config.ConfigOriginTags = append(p.config.ConfigOriginTags, imported.ConfigOriginTags...)
}

func (p *Parser) expectWord(word string) {
	if p.atWord(word) {
		p.advance()
		return
	}
	p.errorHere(Syntax, "expected keyword %q", word)
}

func (p *Parser) parsePathLiteral() string {
	t := p.peek()
	if t.Kind == TokString {
		p.advance()
		return t.Literal
	}
	// Bare dotted/slashed path as a sequence of idents/dots.
	var b strings.Builder
	for p.peek().Kind == TokIdent || p.peek().Kind == TokDot {
		b.WriteString(p.advance().Literal)
	}
	return b.String()
}

// foldImport is the @Chtl import's parse-time side effect: a nested
// tokenizer+parser runs over the loaded contents and its symbol table is
// merged into the current one.
func (p *Parser) foldImport(n *Node) {
	doc, scope, ok := p.importer.resolveChtl(n.ImpPath, n.Source)
	if !ok {
		return
	}
	if len(n.ImpExcept) > 0 {
		scope = filterScope(scope, n.ImpExcept)
	}
	p.scope.Merge(scope, n.ImpPath)
	_ = doc // the imported document's own top-level side effects (none today) would go here
	if n.ImpAlias != "" {
		p.scope.SetAlias(n.ImpAlias, n.ImpPath)
	}
}

func (p *Parser) parseNamespace() *Node {
	start := p.advance() // '[Namespace]'
	name := p.expect(TokIdent)
	n := &Node{Kind: KindNamespace, Source: p.sourceAt(start), NsName: name.Literal}
	p.expect(TokLBrace)

	pop := p.pushNamespace(name.Literal)
	for !p.at(TokRBrace) && !p.at(TokEOF) {
		child := p.parseStatement()
		if child != nil {
			n.AppendChild(child)
		}
	}
	pop()

	p.expect(TokRBrace)
	return n
}

func (p *Parser) parseConfiguration() *Node {
	start := p.advance() // '[Configuration]'
	n := &Node{Kind: KindConfiguration, Source: p.sourceAt(start), ConfigValues: map[string]string{}, ConfigOverrides: map[string]string{}}
	p.expect(TokLBrace)
	for !p.at(TokRBrace) && !p.at(TokEOF) {
		if p.peek().Kind == TokLineComment || p.peek().Kind == TokBlockComment || p.peek().Kind == TokGeneratorComment {
			p.advance()
			continue
		}
		if p.peek().Kind == TokKeywordBracket && p.peek().Literal == "Info" {
			p.advance()
			p.expect(TokLBrace)
			for !p.at(TokRBrace) && !p.at(TokEOF) {
				n.ConfigOriginTags = append(n.ConfigOriginTags, p.expect(TokIdent).Literal)
				p.consumeOptional(TokSemicolon)
			}
			p.expect(TokRBrace)
			continue
		}
		if p.peek().Kind == TokKeywordBracket && p.peek().Literal == "Name" {
			p.advance()
			p.expect(TokLBrace)
			for !p.at(TokRBrace) && !p.at(TokEOF) {
				canonical := p.advance()
				p.expect(TokEquals)
				user := p.parseSimpleValue()
				p.consumeOptional(TokSemicolon)
				n.ConfigOverrides[canonical.Literal] = user.text
			}
			p.expect(TokRBrace)
			continue
		}
		key := p.advance()
		p.expect(TokEquals)
		val := p.parseSimpleValue()
		p.consumeOptional(TokSemicolon)
		n.ConfigValues[key.Literal] = val.text
	}
	p.expect(TokRBrace)
	return n
}

func (p *Parser) parseOrigin() *Node {
	start := p.advance() // '[Origin]'
	kindTok := p.advance()
	n := &Node{Kind: KindOrigin, Source: p.sourceAt(start)}
	switch strings.TrimPrefix(kindTok.Literal, "@") {
	case "Html":
		n.OriginK = OriginHtml
	case "Style":
		n.OriginK = OriginStyle
	case "JavaScript":
		n.OriginK = OriginJavaScript
	case "Custom":
		// "[Origin] @Custom(tagname) { ... }" — a user-declared
		// origin-type tag.
		n.OriginK = OriginCustom
		if p.at(TokLParen) {
			p.advance()
			n.OriginTag = p.expect(TokIdent).Literal
			p.expect(TokRParen)
		} else {
			p.errorHere(Syntax, "expected (tagname) after @Custom")
		}
	default:
		n.OriginK = OriginCustom
		n.OriginTag = strings.TrimPrefix(kindTok.Literal, "@")
	}
	if p.peek().Kind == TokIdent {
		n.DefName = p.advance().Literal
	}
	p.expect(TokLBrace)
	depth := 0
	from := p.pos
	for {
		t := p.peek()
		if t.Kind == TokEOF {
			break
		}
		if t.Kind == TokLBrace {
			depth++
		}
		if t.Kind == TokRBrace {
			if depth == 0 {
				break
			}
			depth--
		}
		p.advance()
	}
	n.OriginVerbatim = strings.TrimSpace(p.rawTextBetween(from, p.pos))
	p.expect(TokRBrace)
	p.scope.Define(symOrigin, TplStyle, "", originKey(n.OriginK, n.OriginTag, n.DefName), n)
	return n
}

func originKey(k OriginKind, tag, name string) string {
	switch k {
	case OriginCustom:
		return tag + ":" + name
	default:
		return name
	}
}

func (p *Parser) parseConstraint() *Node {
	start := p.advance() // '[Constraint]'
	n := &Node{Kind: KindConstraint, Source: p.sourceAt(start)}
	if p.atWord("except") {
		p.advance()
		n.ConstraintKind = "Exact"
	}
	for p.peek().Kind == TokIdent {
		n.ConstraintFor = append(n.ConstraintFor, p.advance().Literal)
		if p.at(TokComma) {
			p.advance()
		}
	}
	if p.at(TokLBrace) {
		p.advance()
		for !p.at(TokRBrace) && !p.at(TokEOF) {
			p.advance()
		}
		p.expect(TokRBrace)
	}
	p.consumeOptional(TokSemicolon)
	return n
}

// filterScope applies "except Name1, Name2" to a just-resolved import
// scope: it returns a shallow copy of scope with the excluded names removed
// from its local table, so a subsequent wildcard merge doesn't expose
// them.
func filterScope(scope *Scope, except []string) *Scope {
	excluded := make(map[string]bool, len(except))
	for _, e := range except {
		excluded[e] = true
	}
	filtered := NewScope()
	for k, v := range scope.local {
		if excluded[k.name] {
			continue
		}
		filtered.local[k] = v
	}
	filtered.children = scope.children
	filtered.aliases = scope.aliases
	return filtered
}

// filterScopeToNames keeps only the named local definitions (plus, unlike
// filterScope, also searching child scopes recursively so a module's own
// nested imports can still contribute an exported name) — used to gate a
// .cmod/.cjmod import down to just its manifest [Export] list.
func filterScopeToNames(scope *Scope, names []string) *Scope {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	filtered := NewScope()
	var collect func(*Scope)
	collect = func(s *Scope) {
		if s == nil {
			return
		}
		for k, v := range s.local {
			if allowed[k.name] {
				filtered.local[k] = v
			}
		}
		for _, c := range s.children {
			collect(c)
		}
	}
	collect(scope)
	return filtered
}
