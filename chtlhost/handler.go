// Package chtlhost is a thin HTTP front end for serving compiled CHTL
// documents: file-system-backed, file-based routing, and otherwise out of
// scope for the core compiler. Wiring it to a specific framework, cache,
// or live-reload transport is left to whoever embeds this package — it is
// the minimal host that makes the compiler runnable over HTTP, not a
// framework of its own.
package chtlhost

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/chtl-lang/chtl/chtl"
)

// chtlExt is the extension matched when routing a URL to a source file.
const chtlExt = ".chtl"

// Handler serves compiled CHTL documents out of a file system, matching
// URLs to files by exact name, "index.chtl" for a directory, and a leading
// "_" file/directory as a dynamic path segment.
type Handler struct {
	// FileSystem to read .chtl sources (and their imports) from.
	FileSystem fs.FS

	// OnError is called whenever a request fails to serve, after the
	// response has already been written.
	OnError func(*http.Request, error)

	// Logger configures logging for internal events; if nil, logging is
	// discarded.
	Logger *slog.Logger

	init   sync.Once
	logger *slog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init.Do(func() {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		if h.Logger != nil {
			h.logger = h.Logger
		}
	})

	if err := h.handleRequest(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		h.logger.Error("serve HTTP request", "url", r.URL.Redacted(), "error", err)
		if h.OnError != nil {
			h.OnError(r, err)
		}
	}
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) error {
	urlPath := cleanPath(r.URL.EscapedPath())

	params := map[string]string{}
	fsPath, err := h.matchFS(urlPath, ".", params)
	if err != nil {
		return err
	}
	if fsPath == "" {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return nil
	}
	if !strings.HasSuffix(fsPath, chtlExt) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = fsPath
		http.FileServer(http.FS(h.FileSystem)).ServeHTTP(w, r2)
		return nil
	}
	return h.servePage(w, r, fsPath)
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, fsPath string) error {
	src, err := fs.ReadFile(h.FileSystem, strings.TrimPrefix(fsPath, "/"))
	if err != nil {
		return fmt.Errorf("read %s: %w", fsPath, err)
	}

	loader := fsLoader{fsys: h.FileSystem, dir: path.Dir(fsPath)}
	result := chtl.Compile(path.Base(fsPath), src, loader)

	for _, d := range result.Diagnostics.List() {
		h.logger.Warn("compile diagnostic", "path", fsPath, "diagnostic", d.Error())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if result.Diagnostics.HasErrors() {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_, err = w.Write(normalizeDocument(result.HTML))
	return err
}

// normalizeDocument runs the compiled output through x/net/html's parser
// and serializer before it goes on the wire, so a fragment-shaped document
// (a bare <div> with no html/head/body structure) is served as a complete
// HTML document. The compiler's output string is left untouched; this is a
// serving concern only.
func normalizeDocument(compiled string) []byte {
	doc, err := html.Parse(strings.NewReader(compiled))
	if err != nil {
		return []byte(compiled)
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return []byte(compiled)
	}
	return buf.Bytes()
}

// fsLoader adapts an fs.FS rooted at dir to chtl.FileLoader, for resolving
// @Chtl/@Html/@Style/@JavaScript imports relative to the serving page.
type fsLoader struct {
	fsys fs.FS
	dir  string
}

func (l fsLoader) Read(p string) ([]byte, error) {
	return fs.ReadFile(l.fsys, strings.TrimPrefix(path.Join(l.dir, p), "/"))
}

func (l fsLoader) Canonicalize(p string) string {
	return path.Clean(path.Join(l.dir, p))
}

// matchFS walks the URL path one segment at a time, preferring an exact
// file/directory match and falling back to a single leading-underscore
// dynamic segment per directory.
func (h *Handler) matchFS(urlPath, dir string, params map[string]string) (string, error) {
	if urlPath == "" {
		return "", nil
	}
	entries, err := fs.ReadDir(h.FileSystem, dir)
	if err != nil {
		return "", fmt.Errorf("read directory %s: %w", dir, err)
	}

	seg, rest := firstSegment(urlPath)
	if seg != "/" && seg[0] == '.' {
		return "", nil
	}

	if rest != "" {
		sub, err := h.matchDir(seg, dir, entries, params)
		if err != nil {
			return "", err
		}
		if sub == "" {
			return "", nil
		}
		return h.matchFS(rest, sub, params)
	}
	return h.matchFile(seg, dir, entries, params)
}

func (h *Handler) matchDir(seg, dir string, entries []fs.DirEntry, params map[string]string) (string, error) {
	dynamic := ""
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == seg {
			return path.Join(dir, name), nil
		}
		if strings.HasPrefix(name, "_") {
			if dynamic != "" {
				return "", fmt.Errorf("multiple dynamic directory matches in %s", dir)
			}
			dynamic = name
		}
	}
	if dynamic != "" {
		params[dynamic[1:]] = seg
		return path.Join(dir, dynamic), nil
	}
	return "", nil
}

func (h *Handler) matchFile(seg, dir string, entries []fs.DirEntry, params map[string]string) (string, error) {
	if seg == "/" {
		seg = "index"
	}
	dynamic := ""
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if path.Ext(name) == chtlExt {
			if strings.TrimSuffix(name, chtlExt) == seg {
				return path.Join(dir, name), nil
			}
			if strings.HasPrefix(name, "_") {
				if dynamic != "" {
					return "", fmt.Errorf("multiple dynamic file matches in %s", dir)
				}
				dynamic = name
			}
		} else if name == seg {
			return path.Join(dir, name), nil
		}
	}
	if dynamic != "" {
		pn := strings.TrimSuffix(dynamic[1:], chtlExt)
		params[pn] = seg
		return path.Join(dir, dynamic), nil
	}
	return "", nil
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		if len(p) == len(np)+1 && strings.HasPrefix(p, np) {
			np = p
		} else {
			np += "/"
		}
	}
	return np
}

func firstSegment(p string) (seg, rest string) {
	if p == "/" {
		return "/", ""
	}
	p = p[1:]
	i := strings.IndexByte(p, '/')
	if i < 0 {
		i = len(p)
	}
	return pathUnescape(p[:i]), p[i:]
}

func pathUnescape(p string) string {
	u, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return u
}
