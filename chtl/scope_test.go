package chtl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScope_LookupFindsLocalDefinition(t *testing.T) {
	s := NewScope()
	def := &Node{Kind: KindTemplateDef, DefKind: TplStyle, DefName: "Btn"}
	s.Define(symTemplate, TplStyle, "", "Btn", def)

	got := s.Lookup(symTemplate, TplStyle, "", "Btn")
	require.Same(t, def, got)
	require.Nil(t, s.Lookup(symTemplate, TplStyle, "", "Missing"))
}

func TestScope_LookupWalksInwardOutThroughChildThenParent(t *testing.T) {
	root := NewScope()
	rootDef := &Node{DefName: "root-only"}
	root.Define(symTemplate, TplElement, "", "root-only", rootDef)

	child := root.NewChildScope("lib.chtl")
	childDef := &Node{DefName: "child-only"}
	child.Define(symTemplate, TplElement, "", "child-only", childDef)

	// A name defined only in an imported child scope is still reachable
	// from a Lookup that starts at the root: the table is layered and name
	// resolution walks inward-out.
	require.Same(t, childDef, root.Lookup(symTemplate, TplElement, "", "child-only"))
	require.Same(t, rootDef, root.Lookup(symTemplate, TplElement, "", "root-only"))
}

func TestScope_DefineCollisionRenamesBothNamesReachable(t *testing.T) {
	s := NewScope()
	s.path = "a.chtl"
	first := &Node{DefName: "Box"}
	second := &Node{DefName: "Box-from-b"}

	nameFirst := s.Define(symTemplate, TplElement, "", "Box", first)
	nameSecond := s.Define(symTemplate, TplElement, "", "Box", second)

	require.Equal(t, "Box", nameFirst)
	require.NotEqual(t, "Box", nameSecond, "a name collision must produce a distinct renamed key")
	require.Same(t, first, s.Lookup(symTemplate, TplElement, "", "Box"), "original name keeps resolving to whichever was defined first")
	require.Same(t, second, s.Lookup(symTemplate, TplElement, "", nameSecond))
}

func TestScope_ResolveAliasExpandsImportAlias(t *testing.T) {
	s := NewScope()
	s.SetAlias("ui", "widgets.ui")

	require.Equal(t, "widgets.ui", s.ResolveAlias("ui"))
	require.Equal(t, "unaliased", s.ResolveAlias("unaliased"))
}

func TestScope_MergeAttachesOtherAsChildScope(t *testing.T) {
	root := NewScope()
	imported := NewScope()
	def := &Node{DefName: "Card"}
	imported.Define(symTemplate, TplElement, "", "Card", def)

	root.Merge(imported, "cards.chtl")

	require.Same(t, def, root.Lookup(symTemplate, TplElement, "", "Card"))
}

func TestScope_MergeCollisionAcrossImportsRenamesSecond(t *testing.T) {
	root := NewScope()

	first := &Node{DefName: "Box"}
	a := NewScope()
	a.Define(symTemplate, TplElement, "", "Box", first)
	root.Merge(a, "widgets/a.chtl")

	second := &Node{DefName: "Box"}
	b := NewScope()
	b.Define(symTemplate, TplElement, "", "Box", second)
	root.Merge(b, "widgets/b.chtl")

	// The first import keeps the plain name; the second stays reachable
	// under its path-derived rename instead of vanishing.
	require.Same(t, first, root.Lookup(symTemplate, TplElement, "", "Box"))
	require.Same(t, second, root.Lookup(symTemplate, TplElement, "", "b:Box"))
}
