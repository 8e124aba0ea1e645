package chtl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLooksLikeHDLJS_DetectsDialectMarkers(t *testing.T) {
	require.True(t, looksLikeHDLJS(`{{.box}}.textContent = "x";`))
	require.True(t, looksLikeHDLJS(`listen { click: handleClick; }`))
	require.True(t, looksLikeHDLJS(`listen .button { click: handleClick; }`))
	require.True(t, looksLikeHDLJS(`delegate { ".list" -> { ".item": { click: onItemClick; } } }`))
	require.True(t, looksLikeHDLJS(`animate { target: box, duration: 300, keyframes: tick }`))
	require.True(t, looksLikeHDLJS(`router { mode: hash, routes: { "/": home } }`))
	require.True(t, looksLikeHDLJS(`vir Counter = { count: 0 }`))
	require.True(t, looksLikeHDLJS(`fileloader { files: ["a.js"], order: parallel }`))
	require.False(t, looksLikeHDLJS(`document.querySelector(".box").textContent = "x";`))
	require.False(t, looksLikeHDLJS(`var listen = 1;`))
}

func TestLowerHDLJS_SelectorBlockBecomesQuerySelector(t *testing.T) {
	out := lowerHDLJS(`{{.box}}.textContent = "hi";`)
	require.Equal(t, `document.querySelector(".box").textContent = "hi";`, out)
}

func TestLowerHDLJS_ListenDefaultsTargetToDocument(t *testing.T) {
	out := lowerHDLJS(`listen { click: handleClick; }`)
	require.Equal(t, `__chtlListen(document, {click: handleClick})`, out)
	require.Equal(t, strings.Count(out, "("), strings.Count(out, ")"), "parens must balance after lowering")
}

func TestLowerHDLJS_ListenUsesSelectorTarget(t *testing.T) {
	out := lowerHDLJS(`listen .button { click: handleClick; hover: onHover; }`)
	require.Equal(t, `__chtlListen(document.querySelector(".button"), {click: handleClick, hover: onHover})`, out)
}

func TestLowerHDLJS_DelegateResolvesParentAndQuotesChildSelectorKeys(t *testing.T) {
	out := lowerHDLJS(`delegate { ".list" -> { ".item": { click: onItemClick; } } }`)
	require.Equal(t, `__chtlDelegate(document.querySelector(".list"), {".item": { click: onItemClick, }})`, out)
}

func TestDelegateParentExpr(t *testing.T) {
	require.Equal(t, "document", delegateParentExpr(""))
	require.Equal(t, `document.querySelector(".list")`, delegateParentExpr(`".list"`))
	require.Equal(t, `document.querySelector(".list")`, delegateParentExpr(".list"))
	require.Equal(t, `document.querySelector("#nav")`, delegateParentExpr("#nav"))
	require.Equal(t, "listRoot", delegateParentExpr("listRoot"))
}

func TestLowerHDLJS_AnimateRouterVirFileloader(t *testing.T) {
	out := lowerHDLJS(`
animate { target: box, duration: 300, keyframes: tick, loop: false }
router { mode: hash, routes: { "/": home } }
vir Counter = { count: 0, increment: function() { this.count++; } }
fileloader { files: ["a.js", "b.js"], order: parallel }
`)
	require.Contains(t, out, "__chtlAnimate({target: box, duration: 300, keyframes: tick, loop: false})")
	require.Contains(t, out, `__chtlRouter({mode: hash, routes: { "/": home }})`)
	require.Contains(t, out, "var Counter = __chtlVir({count: 0, increment: function() { this.count++; }});")
	require.Contains(t, out, `__chtlLoadFiles({files: ["a.js", "b.js"], order: parallel})`)
}

func TestLowerHDLJS_UnrecognizedKeywordUsePassesThrough(t *testing.T) {
	out := lowerHDLJS(`var listen = 1; console.log(listen);`)
	require.Equal(t, `var listen = 1; console.log(listen);`, out)
}

func TestHDLJSRuntime_DefinesEveryLoweredCallTarget(t *testing.T) {
	for _, fn := range []string{"__chtlListen", "__chtlDelegate", "__chtlAnimate", "__chtlRouter", "__chtlVir", "__chtlLoadFiles"} {
		require.Contains(t, hdlJSRuntime, "function "+fn)
	}
}
