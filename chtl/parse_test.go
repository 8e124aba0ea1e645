package chtl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_SimpleElementWithAttributesAndText(t *testing.T) {
	doc, diags := ParseSource("t.chtl", []byte(`
div {
	id: "main";
	class: card;
	text { "Hello" }
}
`))
	require.False(t, diags.HasErrors(), diags.Error())
	require.NotNil(t, doc.FirstChild)

	div := doc.FirstChild
	require.Equal(t, KindElement, div.Kind)
	require.Equal(t, "div", div.TagName)
	require.Equal(t, "main", div.Attrs["id"].Literal)
	require.Equal(t, "card", div.Attrs["class"].Literal)

	var text *Node
	for c := div.FirstChild; c != nil; c = c.NextSibling {
		if c.Kind == KindText {
			text = c
		}
	}
	require.NotNil(t, text)
	require.Equal(t, "Hello", text.Text)
}

func TestParse_StyleBlockPropertiesAndRuleset(t *testing.T) {
	doc, diags := ParseSource("t.chtl", []byte(`
div {
	style {
		color: red;
		.title {
			font-weight: bold;
		}
	}
}
`))
	require.False(t, diags.HasErrors(), diags.Error())
	div := doc.FirstChild
	sb := div.StyleBlockChild()
	require.NotNil(t, sb)
	require.Len(t, sb.Properties, 1)
	require.Equal(t, "color", sb.Properties[0].Name)
	require.Equal(t, "red", sb.Properties[0].Value.Literal)
	require.Len(t, sb.Rulesets, 1)
	require.Equal(t, ".title", sb.Rulesets[0].Selector)
}

func TestParse_ConditionalAttributeValue(t *testing.T) {
	doc, diags := ParseSource("t.chtl", []byte(`
div {
	hidden: isOpen ? "false" : "true";
}
`))
	require.False(t, diags.HasErrors(), diags.Error())
	av := doc.FirstChild.Attrs["hidden"]
	require.Equal(t, StyleConditional, av.Kind)
	require.Equal(t, "isOpen", av.Cond)
	require.True(t, av.CondValid)
	require.Equal(t, "false", av.TrueValue)
	require.Equal(t, "true", av.FalseValue)
	require.True(t, av.HasFalse)
}

func TestParse_TemplateDefAndUsage(t *testing.T) {
	doc, diags := ParseSource("t.chtl", []byte(`
[Template] @Element Box {
	div { text { "box" } }
}
div {
	@Element Box;
}
`))
	require.False(t, diags.HasErrors(), diags.Error())
	require.Equal(t, KindTemplateDef, doc.FirstChild.Kind)
	usageHost := doc.FirstChild.NextSibling
	require.Equal(t, KindElement, usageHost.Kind)
	usage := usageHost.FirstChild
	require.Equal(t, KindTemplateUsage, usage.Kind)
	require.Equal(t, TplElement, usage.UseKind)
	require.Equal(t, "Box", usage.UseName)
}

func TestParse_CustomDeleteAndInsertSpecialization(t *testing.T) {
	doc, diags := ParseSource("t.chtl", []byte(`
[Custom] @Element Panel {
	span { text { "label" } }
	div { text { "body" } }
	delete span;
	insert after div img {}
}
`))
	require.False(t, diags.HasErrors(), diags.Error())
	def := doc.FirstChild
	require.Equal(t, KindCustomDef, def.Kind)
	require.Len(t, def.Specializations, 2)
	require.Equal(t, SpecDeleteProperty, def.Specializations[0].Kind)
	require.Equal(t, "span", def.Specializations[0].RefName)
	require.Equal(t, SpecInsertElement, def.Specializations[1].Kind)
	require.Equal(t, PosAfter, def.Specializations[1].Pos)
	require.Equal(t, "div", def.Specializations[1].RefName)
	require.NotNil(t, def.Specializations[1].NewElement)
}

func TestParse_ImportChtlRecordsPath(t *testing.T) {
	doc, diags := ParseSource("t.chtl", []byte(`[Import] @Chtl from "./lib.chtl" as lib;`))
	require.True(t, diags.HasErrors(), "no loader configured, so the import should fail to resolve")
	imp := doc.FirstChild
	require.Equal(t, KindImport, imp.Kind)
	require.Equal(t, ImportChtl, imp.ImpKind)
	require.Equal(t, "./lib.chtl", imp.ImpPath)
	require.Equal(t, "lib", imp.ImpAlias)
}

func TestParse_ScriptBlockTaggedAsHDLJS(t *testing.T) {
	doc, _ := ParseSource("t.chtl", []byte(`
div {
	script {
		{{.box}}.addEventListener("click", function(){});
	}
}
`))
	sb := doc.FirstChild.ScriptBlockChild()
	require.NotNil(t, sb)
	require.True(t, sb.IsHDLJS)
}
