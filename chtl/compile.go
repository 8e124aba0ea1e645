package chtl

// Result is everything a compile produces: the assembled HTML5 document,
// the pieces it was assembled from, and every diagnostic raised along the
// way — diagnostics are always returned in full, never just the first.
//
// Callers wanting separate artifacts read Body/CSS/Scripts directly;
// callers wanting one deliverable read HTML, which already has the
// stylesheet and script bundle assembled in.
type Result struct {
	HTML        string // the fully assembled document: doctype, <style>, body, <script>
	Body        string // the generator's HTML body, before style/script injection
	CSS         []CSSRule
	Scripts     []string
	Diagnostics *Diagnostics
}

// Compile runs the full pipeline — tokenize, parse (folding @Chtl imports
// as it goes), expand templates/customs/vars, generate HTML+CSS+scripts,
// assemble — over one entry file. loader may be nil for a document with no
// imports.
func Compile(file string, src []byte, loader FileLoader) *Result {
	diags := &Diagnostics{}
	doc, scope := parseDocument(file, src, loader, diags)
	expandDocument(doc, scope, diags)
	gen := generate(doc, diags)

	doctype := ""
	if configBool(doc, "HTML5_DOCTYPE", true) {
		doctype = doctypeHTML5
	}

	return &Result{
		HTML:        assemble(gen, doctype),
		Body:        gen.HTML,
		CSS:         gen.CSS,
		Scripts:     gen.Scripts,
		Diagnostics: diags,
	}
}
