package chtl

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func parseExpandGenerate(t *testing.T, src string) (*GenResult, *Diagnostics) {
	t.Helper()
	diags := &Diagnostics{}
	doc, scope := parseDocument("t.chtl", []byte(src), nil, diags)
	expandDocument(doc, scope, diags)
	gen := generate(doc, diags)
	return gen, diags
}

func TestGenerate_ElementWithTextAndAttrs(t *testing.T) {
	gen, diags := parseExpandGenerate(t, `
div {
	id: "main";
	text { "Hello" }
}
`)
	require.False(t, diags.HasErrors(), diags.Error())
	require.Contains(t, gen.HTML, `<div id="main">`)
	require.Contains(t, gen.HTML, "Hello")
	require.Contains(t, gen.HTML, "</div>")
}

func TestGenerate_VoidElementHasNoClosingTag(t *testing.T) {
	gen, diags := parseExpandGenerate(t, `
img {
	src: "logo.png";
}
`)
	require.False(t, diags.HasErrors(), diags.Error())
	require.Equal(t, `<img src="logo.png">`, gen.HTML)
	require.NotContains(t, gen.HTML, "</img>")
}

func TestGenerate_VoidElementWithChildrenIsDiagnosed(t *testing.T) {
	gen, diags := parseExpandGenerate(t, `
img {
	src: "x.png";
	p { text: "boom"; }
}
`)
	require.True(t, diags.HasErrors())
	require.Contains(t, diags.Error(), "void element")
	require.Contains(t, gen.HTML, `<img src="x.png">`)
	require.NotContains(t, gen.HTML, "boom")
}

func TestGenerate_ConditionalAttributeCompilesToTrueBranch(t *testing.T) {
	gen, diags := parseExpandGenerate(t, `
div {
	hidden: isOpen ? "false" : "true";
}
`)
	require.False(t, diags.HasErrors(), diags.Error())
	require.Contains(t, gen.HTML, `hidden="false"`)
}

func TestGenerate_BarePropertiesFoldIntoStyleAttribute(t *testing.T) {
	// Bare style-block properties concatenate into a style attribute; only
	// nested rulesets hoist to the document-level stylesheet.
	gen, diags := parseExpandGenerate(t, `
div {
	class: card;
	style {
		color: red;
		&:hover { color: blue; }
	}
}
`)
	require.False(t, diags.HasErrors(), diags.Error())
	require.Contains(t, gen.HTML, `style="color: red;"`)
	require.Len(t, gen.CSS, 1)
	require.Equal(t, ".card:hover", gen.CSS[0].Selector)
	require.Contains(t, gen.CSS[0].Body, "color: blue")
}

func TestGenerate_NestedRulesetClassPromotionAndAmpersand(t *testing.T) {
	// A plain class-rooted nested selector hoists verbatim, while an
	// '&'-led selector substitutes the context class.
	gen, diags := parseExpandGenerate(t, `
head {}
body { div { class: "box"; style { .nested { color: green; } &:hover { color: blue; } } } }
`)
	require.False(t, diags.HasErrors(), diags.Error())
	require.Contains(t, gen.HTML, `<div class="box">`)
	require.Len(t, gen.CSS, 2)
	require.Equal(t, ".nested", gen.CSS[0].Selector)
	require.Contains(t, gen.CSS[0].Body, "color: green")
	require.Equal(t, ".box:hover", gen.CSS[1].Selector)
	require.Contains(t, gen.CSS[1].Body, "color: blue")
}

func TestGenerate_ExplicitClassOnHostAndAmpersandChildCombinator(t *testing.T) {
	// Explicit .box on the host plus "& > p" emits ".box > p" in the
	// stylesheet, whitespace intact.
	gen, diags := parseExpandGenerate(t, `
div { class: box; style { & > p { color: red; } } }
`)
	require.False(t, diags.HasErrors(), diags.Error())
	require.Len(t, gen.CSS, 1)
	require.Equal(t, ".box > p", gen.CSS[0].Selector)
}

func TestGenerate_NoContextNestedRulesetWithoutClassOrIdPromotesIdFromRuleset(t *testing.T) {
	// With no explicit class/id and no class-rooted ruleset, an id-rooted
	// ruleset promotes the host's id attribute.
	gen, diags := parseExpandGenerate(t, `
div { style { #hero { color: red; } } }
`)
	require.False(t, diags.HasErrors(), diags.Error())
	require.Contains(t, gen.HTML, `id="hero"`)
	require.Len(t, gen.CSS, 1)
	require.Equal(t, "#hero", gen.CSS[0].Selector)
}

func TestGenerate_AmpersandWithoutContextIsVerbatimAndWarned(t *testing.T) {
	// Nothing to substitute '&' with, so the selector hoists as written
	// and a Generation diagnostic records the missing context.
	gen, diags := parseExpandGenerate(t, `
div { style { &:hover { color: red; } } }
`)
	require.True(t, diags.HasErrors())
	require.Contains(t, diags.Error(), "no context selector")
	require.Len(t, gen.CSS, 1)
	require.Equal(t, "&:hover", gen.CSS[0].Selector)
}

func TestGenerate_TopLevelStyleAndScriptBlocks(t *testing.T) {
	gen, diags := parseExpandGenerate(t, `
style { .page { margin: 0; } }
script { console.log("boot"); }
`)
	require.False(t, diags.HasErrors(), diags.Error())
	require.Len(t, gen.CSS, 1)
	require.Equal(t, ".page", gen.CSS[0].Selector)
	require.Equal(t, []string{`console.log("boot");`}, gen.Scripts)
}

func TestGenerate_ScriptBlockLowersHDLJS(t *testing.T) {
	gen, diags := parseExpandGenerate(t, `
div {
	class: box;
	script {
		listen .box { click: function(){} }
	}
}
`)
	require.False(t, diags.HasErrors(), diags.Error())
	require.Len(t, gen.Scripts, 1)
	require.Contains(t, gen.Scripts[0], `document.querySelector(".box")`)
	require.Contains(t, gen.Scripts[0], "__chtlListen(")
}

func TestGenerate_TextIsHTMLEscaped(t *testing.T) {
	gen, diags := parseExpandGenerate(t, `
div {
	text { "<script>alert(1)</script>" }
}
`)
	require.False(t, diags.HasErrors(), diags.Error())
	require.NotContains(t, gen.HTML, "<script>alert(1)</script>")
	require.Contains(t, gen.HTML, "&lt;script&gt;")
}

func TestGenerate_RulesetsFollowDocumentOrderOfEnclosingElements(t *testing.T) {
	// Rulesets in the generated stylesheet follow the document order of
	// their enclosing elements.
	gen, diags := parseExpandGenerate(t, `
div {
	class: first;
	style { &:hover { color: red; } }
}
div {
	class: second;
	style { &:hover { color: blue; } }
}
`)
	require.False(t, diags.HasErrors(), diags.Error())
	want := []CSSRule{
		{Selector: ".first:hover", Body: "color: red;"},
		{Selector: ".second:hover", Body: "color: blue;"},
	}
	if diff := cmp.Diff(want, gen.CSS); diff != "" {
		t.Errorf("stylesheet rule order mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderStylesheet_MergesConsecutiveSameSelectorRules(t *testing.T) {
	out := renderStylesheet([]CSSRule{
		{Selector: ".card", Body: "color: red;"},
		{Selector: ".card", Body: "padding: 4px;"},
	})
	require.Equal(t, 1, strings.Count(out, ".card {"))
	require.Contains(t, out, "color: red;")
	require.Contains(t, out, "padding: 4px;")
}
