package chtl

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// The script-side dialect is narrow: selector blocks plus six
// brace-delimited constructs (listen, delegate, animate, router, vir,
// fileloader), each reserved in hdlJSKeywords (token.go). It is lowered
// with hand-written scanning rather than a real tokenizer — the dialect is
// small and regular enough that a lexer/parser pair would be pure
// overhead — but the scanning tracks brace depth rather than doing flat
// regex substitution, since these constructs nest (e.g. delegate's
// child-selector map sits inside its own arrow target).
var (
	reSelectorBlock  = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
	reDialectKeyword = regexp.MustCompile(`\b(` + strings.Join(sortedHDLJSKeywords(), "|") + `)\b`)
)

func sortedHDLJSKeywords() []string {
	words := make([]string, 0, len(hdlJSKeywords))
	for w := range hdlJSKeywords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// looksLikeHDLJS is the parser's cheap heuristic (chtl/parse.go,
// parseScriptBlockBody) for whether a script block should be treated as
// HDL-JS rather than passed through verbatim: it fires on a `{{selector}}`
// block or on any reserved dialect keyword immediately followed by its
// construct's grammar (an optional target selector then a brace for
// `listen`, the brace directly for the rest, or "Name = {" for `vir`).
func looksLikeHDLJS(raw string) bool {
	if reSelectorBlock.MatchString(raw) {
		return true
	}
	for _, loc := range reDialectKeyword.FindAllStringIndex(raw, -1) {
		if _, _, _, ok := constructBody(raw, raw[loc[0]:loc[1]], loc[1]); ok {
			return true
		}
	}
	return false
}

// hdlJSRuntime is prepended once to the assembled script bundle whenever any
// document's script block lowers to HDL-JS. It gives the lowered calls
// (__chtlListen etc.) somewhere to land without requiring a separate runtime
// asset file.
const hdlJSRuntime = `function __chtlListen(target, handlers) {
  for (var k in handlers) {
    if (Object.prototype.hasOwnProperty.call(handlers, k)) {
      target.addEventListener(k, handlers[k]);
    }
  }
}
function __chtlDelegate(parent, mapping) {
  for (var sel in mapping) {
    if (!Object.prototype.hasOwnProperty.call(mapping, sel)) continue;
    (function (childSel, handlers) {
      for (var evt in handlers) {
        if (!Object.prototype.hasOwnProperty.call(handlers, evt)) continue;
        (function (eventName, fn) {
          parent.addEventListener(eventName, function (e) {
            var match = e.target.closest(childSel);
            if (match) fn.call(match, e);
          });
        })(evt, handlers[evt]);
      }
    })(sel, mapping[sel]);
  }
}
function __chtlAnimate(spec) {
  var duration = spec.duration || 300;
  function run() {
    var start = null;
    function step(ts) {
      if (start === null) start = ts;
      var t = Math.min(1, (ts - start) / duration);
      if (typeof spec.keyframes === "function") spec.keyframes(t, spec.target);
      if (t < 1) {
        window.requestAnimationFrame(step);
      } else if (spec.loop) {
        start = null;
        window.requestAnimationFrame(step);
      } else if (typeof spec.callback === "function") {
        spec.callback(spec.target);
      }
    }
    window.requestAnimationFrame(step);
  }
  if (spec.delay) {
    window.setTimeout(run, spec.delay);
  } else {
    run();
  }
}
function __chtlRouter(spec) {
  var routes = spec.routes || {};
  var mode = spec.mode || "hash";
  var root = spec.root || "";
  function dispatch() {
    var path;
    if (mode === "history") {
      path = window.location.pathname.slice(root.length) || "/";
    } else {
      path = window.location.hash.replace(/^#/, "") || "/";
    }
    var handler = routes[path] || routes["*"];
    if (typeof handler === "function") handler();
  }
  window.addEventListener(mode === "history" ? "popstate" : "hashchange", dispatch);
  dispatch();
}
function __chtlVir(spec) {
  var record = {};
  for (var k in spec) {
    if (!Object.prototype.hasOwnProperty.call(spec, k)) continue;
    var v = spec[k];
    record[k] = (typeof v === "function") ? v.bind(record) : v;
  }
  return record;
}
function __chtlLoadFiles(spec) {
  var files = spec.files || [];
  var order = spec.order || "sequential";
  function loadOne(src) {
    return new Promise(function (resolve, reject) {
      var s = document.createElement("script");
      s.src = src;
      s.onload = resolve;
      s.onerror = reject;
      document.head.appendChild(s);
    });
  }
  if (order === "parallel") {
    return Promise.all(files.map(loadOne));
  }
  return files.reduce(function (chain, src) {
    return chain.then(function () { return loadOne(src); });
  }, Promise.resolve());
}
`

// lowerHDLJS rewrites one script block's raw source into plain JavaScript.
// It never reports diagnostics for a reserved word it can't match against
// its construct's grammar — an unrecognized use is left untouched, since
// the dialect is additive sugar over plain script rather than a closed
// grammar.
func lowerHDLJS(raw string) string {
	out := reSelectorBlock.ReplaceAllString(raw, `document.querySelector("$1")`)
	return lowerDialectConstructs(out)
}

// lowerDialectConstructs scans for the six reserved keywords and, for each
// one immediately followed by its construct's grammar, replaces the whole
// construct with a lowered call.
func lowerDialectConstructs(src string) string {
	var out strings.Builder
	i := 0
	for i < len(src) {
		loc := reDialectKeyword.FindStringIndex(src[i:])
		if loc == nil {
			out.WriteString(src[i:])
			break
		}
		kwStart, kwEnd := i+loc[0], i+loc[1]
		kw := src[kwStart:kwEnd]

		target, body, bodyEnd, ok := constructBody(src, kw, kwEnd)
		if !ok {
			out.WriteString(src[i:kwEnd])
			i = kwEnd
			continue
		}
		out.WriteString(src[i:kwStart])
		out.WriteString(lowerConstruct(kw, target, body))
		i = bodyEnd
	}
	return out.String()
}

// constructBody checks whether the reserved word kw, ending at kwEnd, is
// immediately followed by its construct's required grammar, and if so
// returns the raw text between its braces (for `vir`, the name and that
// text joined by a NUL byte), any target
// text preceding the brace (only meaningful for `listen`, e.g. the `.button`
// in `listen .button { ... }`), and the source index just past the whole
// construct.
func constructBody(src, kw string, kwEnd int) (target, body string, end int, ok bool) {
	if kw == "vir" {
		name, body, end, ok := virNameAndBody(src, kwEnd)
		return "", name + "\x00" + body, end, ok
	}
	j := skipLeadingTrivia(src, kwEnd)
	if kw != "listen" {
		body, end, ok := extractBracedBlockEnd(src, j)
		return "", body, end, ok
	}
	brace := strings.IndexByte(src[j:], '{')
	if brace < 0 {
		return "", "", 0, false
	}
	target = strings.TrimSpace(src[j : j+brace])
	body, end, ok = extractBracedBlockEnd(src, j+brace)
	return target, body, end, ok
}

// virNameAndBody recognizes `vir Name = { props, methods }`, the one
// construct with no brace directly after the keyword.
func virNameAndBody(src string, kwEnd int) (name, body string, end int, ok bool) {
	j := skipLeadingTrivia(src, kwEnd)
	nameEnd := j
	for nameEnd < len(src) && isIdentByte(src[nameEnd]) {
		nameEnd++
	}
	if nameEnd == j {
		return "", "", 0, false
	}
	name = src[j:nameEnd]
	k := skipLeadingTrivia(src, nameEnd)
	if k >= len(src) || src[k] != '=' {
		return "", "", 0, false
	}
	k = skipLeadingTrivia(src, k+1)
	body, end, ok = extractBracedBlockEnd(src, k)
	if !ok {
		return "", "", 0, false
	}
	return name, body, end, true
}

// lowerConstruct turns one matched construct's raw body into plain
// JavaScript. target is only meaningful for "listen".
func lowerConstruct(kw, target, body string) string {
	switch kw {
	case "listen":
		return fmt.Sprintf("__chtlListen(%s, {%s})", listenTargetExpr(target), quoteObjectKeys(semicolonsToCommas(body)))
	case "delegate":
		return lowerDelegate(body)
	case "animate":
		return fmt.Sprintf("__chtlAnimate({%s})", strings.TrimSpace(semicolonsToCommas(body)))
	case "router":
		return fmt.Sprintf("__chtlRouter({%s})", strings.TrimSpace(semicolonsToCommas(body)))
	case "fileloader":
		return fmt.Sprintf("__chtlLoadFiles({%s})", strings.TrimSpace(semicolonsToCommas(body)))
	case "vir":
		name, inner, _ := strings.Cut(body, "\x00")
		return fmt.Sprintf("var %s = __chtlVir({%s});", name, strings.TrimSpace(semicolonsToCommas(inner)))
	}
	return ""
}

// listenTargetExpr turns a `listen` construct's optional target text (a
// selector directly after the keyword, `listen .button { ... }`) into a JS
// expression: empty defaults to "document", a selector-shaped target is
// looked up with querySelector, and anything else (already a JS
// expression, e.g. one a preceding `{{ }}` substitution produced) passes
// through verbatim.
func listenTargetExpr(target string) string {
	if target == "" {
		return "document"
	}
	if target[0] == '.' || target[0] == '#' {
		return fmt.Sprintf("document.querySelector(%q)", target)
	}
	return target
}

// lowerDelegate handles `parent-selector -> { child-selector: { event:
// handler } ... }`: the mapping keys are selector text, not bare
// identifiers, so they need quoting before the result is valid object
// literal syntax, and the parent selector must resolve to an element
// before the runtime can attach the delegating listener to it.
func lowerDelegate(body string) string {
	arrow := strings.Index(body, "->")
	if arrow < 0 {
		return fmt.Sprintf("__chtlDelegate(document, {%s})", quoteObjectKeys(semicolonsToCommas(body)))
	}
	parent := delegateParentExpr(strings.TrimSpace(body[:arrow]))
	rest := body[arrow+2:]
	brace := strings.IndexByte(rest, '{')
	if brace < 0 {
		return fmt.Sprintf("__chtlDelegate(%s, {})", parent)
	}
	mapping, ok := extractBracedBlock(rest, brace)
	if !ok {
		mapping = rest
	}
	return fmt.Sprintf("__chtlDelegate(%s, {%s})", parent, quoteObjectKeys(semicolonsToCommas(mapping)))
}

// delegateParentExpr turns the delegate construct's parent target into a JS
// expression that evaluates to an element: a quoted selector string (the
// usual `".list" -> { ... }` form) and a bare `.class`/`#id` selector both
// become a querySelector lookup, an empty target falls back to document,
// and anything else is already a JS expression and passes through — the
// same resolution listenTargetExpr gives listen's target.
func delegateParentExpr(parent string) string {
	if parent == "" {
		return "document"
	}
	if parent[0] == '"' || parent[0] == '\'' {
		return fmt.Sprintf("document.querySelector(%s)", parent)
	}
	if parent[0] == '.' || parent[0] == '#' {
		return fmt.Sprintf("document.querySelector(%q)", parent)
	}
	return parent
}

// extractBracedBlockEnd wraps chtl/config.go's extractBracedBlock, also
// returning the index just past the matching closing brace.
func extractBracedBlockEnd(s string, i int) (body string, end int, ok bool) {
	body, ok = extractBracedBlock(s, i)
	if !ok {
		return "", 0, false
	}
	return body, i + 1 + len(body) + 1, true
}

// semicolonsToCommas turns a `key: value; key: value;` statement list into
// `key: value, key: value`, the shape the listen/delegate/animate/router/
// fileloader/vir bodies need to become valid object literal contents —
// dialect bodies punctuate with both commas and semicolons depending on
// the construct. The conversion applies at every
// brace depth except inside a `function (...) { ... }` body — those braces
// hold real JS statements (e.g. vir's methods), whose semicolons must
// survive — and inside parens/brackets, where a semicolon never belongs.
func semicolonsToCommas(body string) string {
	var out strings.Builder
	var protectedStack []bool
	protected := false
	parenDepth := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '(', '[':
			parenDepth++
		case ')', ']':
			parenDepth--
		case '{':
			protectedStack = append(protectedStack, protected)
			if !protected && precededByFunctionHeader(body, i) {
				protected = true
			}
		case '}':
			if n := len(protectedStack); n > 0 {
				protected = protectedStack[n-1]
				protectedStack = protectedStack[:n-1]
			}
		}
		if c == ';' && !protected && parenDepth == 0 {
			out.WriteByte(',')
			continue
		}
		out.WriteByte(c)
	}
	return strings.TrimRight(strings.TrimSpace(out.String()), ", \t\n")
}

// precededByFunctionHeader reports whether the '{' at body[braceIdx] opens a
// function body, i.e. is immediately preceded (ignoring whitespace) by a
// `function name? ( ... )` header. The name is optional, so the word
// directly before the parameter list may itself be "function".
func precededByFunctionHeader(body string, braceIdx int) bool {
	k := braceIdx - 1
	for k >= 0 && isBlankByte(body[k]) {
		k--
	}
	if k < 0 || body[k] != ')' {
		return false
	}
	depth := 1
	k--
	for k >= 0 && depth > 0 {
		if body[k] == ')' {
			depth++
		} else if body[k] == '(' {
			depth--
		}
		k--
	}
	if depth != 0 {
		return false
	}
	for k >= 0 && isBlankByte(body[k]) {
		k--
	}
	if functionWordEndsAt(body, k) {
		return true // anonymous: function (...) { ... }
	}
	for k >= 0 && isIdentByte(body[k]) {
		k--
	}
	for k >= 0 && isBlankByte(body[k]) {
		k--
	}
	return functionWordEndsAt(body, k)
}

// functionWordEndsAt reports whether the keyword "function" ends exactly at
// body[k] and is not the tail of a longer identifier.
func functionWordEndsAt(body string, k int) bool {
	if k+1 < len("function") || body[k+1-len("function"):k+1] != "function" {
		return false
	}
	prev := k - len("function")
	return prev < 0 || !isIdentByte(body[prev])
}

func isBlankByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// quoteObjectKeys rewrites "key:" occurrences at brace depth 0 into
// `"key":` when key is not a bare JS identifier, so selector-shaped dialect
// keys (delegate's child selectors, e.g. ".item") become valid object
// literal keys once wrapped in braces.
func quoteObjectKeys(body string) string {
	var out strings.Builder
	depth := 0
	i := 0
	for i < len(body) {
		c := body[i]
		switch c {
		case '{', '(', '[':
			depth++
			out.WriteByte(c)
			i++
			continue
		case '}', ')', ']':
			depth--
			out.WriteByte(c)
			i++
			continue
		}
		if depth == 0 && isKeyStartByte(c) {
			j := i
			for j < len(body) && isKeyByte(body[j]) {
				j++
			}
			k := j
			for k < len(body) && (body[k] == ' ' || body[k] == '\t') {
				k++
			}
			if k < len(body) && body[k] == ':' {
				key := body[i:j]
				if isBareIdent(key) {
					out.WriteString(key)
				} else {
					out.WriteString(`"` + key + `"`)
				}
				i = j
				continue
			}
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isKeyStartByte(c byte) bool {
	return c == '.' || c == '#' || c == '_' || c == '$' ||
		c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isKeyByte(c byte) bool {
	return isKeyStartByte(c) || c == '-' || c >= '0' && c <= '9'
}

var reBareIdent = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func isBareIdent(s string) bool { return reBareIdent.MatchString(s) }
