package chtl

import (
	"path"
)

// FileLoader is the file-system read capability the core consumes instead
// of touching the OS directly. A caller may back it with a shared
// read-through cache; the core treats it as an opaque capability.
type FileLoader interface {
	// Read returns the raw bytes of path.
	Read(path string) ([]byte, error)
	// Canonicalize returns a stable identity for path, used for cycle
	// detection and as the symbol table's scope key.
	Canonicalize(path string) string
}

// FileLoaderFunc adapts a function to FileLoader when canonicalization is
// just path cleaning.
type FileLoaderFunc func(path string) ([]byte, error)

func (f FileLoaderFunc) Read(p string) ([]byte, error) { return f(p) }
func (f FileLoaderFunc) Canonicalize(p string) string  { return path.Clean(p) }

// importer parses referenced files on demand, detects cycles with a
// visiting-set, and merges each successfully loaded file's symbol table as
// a child scope of the current document.
type importer struct {
	loader   FileLoader
	diags    *Diagnostics
	visiting map[string]bool
	cache    map[string]*parsedImport
}

type parsedImport struct {
	doc   *Node
	scope *Scope
	err   error
}

func newImporter(loader FileLoader, diags *Diagnostics) *importer {
	return &importer{
		loader:   loader,
		diags:    diags,
		visiting: make(map[string]bool),
		cache:    make(map[string]*parsedImport),
	}
}

// resolveChtl parses the .chtl file at p (relative to nothing in particular;
// the loader decides what "path" means), returning its document and symbol
// table. An import either loads, fails, or is cycle-skipped: a re-entry on
// a path still being visited produces exactly one Semantic diagnostic and
// the second load is skipped.
func (im *importer) resolveChtl(p string, at Source) (*Node, *Scope, bool) {
	if im.loader == nil {
		im.diags.Add(newDiag(Semantic, at, "import %q: no file loader configured", p))
		return nil, nil, false
	}
	canon := im.loader.Canonicalize(p)

	if cached, ok := im.cache[canon]; ok {
		if cached.err != nil {
			return nil, nil, false
		}
		return cached.doc, cached.scope, true
	}

	if im.visiting[canon] {
		im.diags.Add(newDiag(Semantic, at, "import cycle detected at %q", p))
		return nil, nil, false
	}
	im.visiting[canon] = true
	defer delete(im.visiting, canon)

	src, err := im.loader.Read(p)
	if err != nil {
		im.diags.Add(newDiag(Semantic, at, "import %q: %v", p, err))
		im.cache[canon] = &parsedImport{err: err}
		return nil, nil, false
	}

	// The nested parse reuses this importer, so the visiting set and parse
	// cache span the whole import graph — that is what makes the A->B->A
	// re-entry above observable at all.
	doc, scope := parseDocumentWith(canon, src, im, im.diags)

	im.cache[canon] = &parsedImport{doc: doc, scope: scope}
	return doc, scope, true
}

// resolveVerbatim loads a .html/.css/.js file and returns its raw contents,
// for imports whose kind is Html/Style/JavaScript.
func (im *importer) resolveVerbatim(p string, at Source) (string, bool) {
	if im.loader == nil {
		im.diags.Add(newDiag(Semantic, at, "import %q: no file loader configured", p))
		return "", false
	}
	b, err := im.loader.Read(p)
	if err != nil {
		im.diags.Add(newDiag(Semantic, at, "import %q: %v", p, err))
		return "", false
	}
	return string(b), true
}

// resolveCmod loads a .cmod/.cjmod module directory's manifest and its
// [Export]-ed symbols.
func (im *importer) resolveCmod(p string, at Source) (*ModuleManifest, *Node, *Scope, bool) {
	manifestPath := path.Join(p, "info.chtl")
	b, err := im.loader.Read(manifestPath)
	if err != nil {
		im.diags.Add(newDiag(Semantic, at, "import module %q: missing manifest: %v", p, err))
		return nil, nil, nil, false
	}
	manifest, mdiags := parseModuleManifest(string(b))
	im.diags.Append(mdiags)

	entryPath := path.Join(p, "src", manifest.Name+".chtl")
	doc, scope, ok := im.resolveChtl(entryPath, at)
	if !ok {
		return manifest, nil, nil, false
	}
	return manifest, doc, scope, true
}
