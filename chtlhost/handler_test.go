package chtlhost

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestHandler_ServesCompiledChtlPage(t *testing.T) {
	fsys := fstest.MapFS{
		"index.chtl": &fstest.MapFile{Data: []byte(`div { text { "hello" } }`)},
	}
	h := &Handler{FileSystem: fsys}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "hello")
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	// The serve path normalizes fragment-shaped compiler output into a
	// complete document before it goes on the wire.
	require.Contains(t, w.Body.String(), "<html>")
	require.Contains(t, w.Body.String(), "<body>")
}

func TestNormalizeDocument_WrapsFragmentInFullDocument(t *testing.T) {
	out := string(normalizeDocument(`<div>hi</div>`))
	require.Contains(t, out, "<html>")
	require.Contains(t, out, "<head>")
	require.Contains(t, out, "<body><div>hi</div></body>")
}

func TestHandler_DynamicDirectorySegment(t *testing.T) {
	fsys := fstest.MapFS{
		"posts/_slug/index.chtl": &fstest.MapFile{Data: []byte(`div { text { "post page" } }`)},
	}
	h := &Handler{FileSystem: fsys}

	req := httptest.NewRequest(http.MethodGet, "/posts/hello-world/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "post page")
}

func TestHandler_NonChtlFileIsServedRaw(t *testing.T) {
	fsys := fstest.MapFS{
		"style.css": &fstest.MapFile{Data: []byte("body { margin: 0; }")},
	}
	h := &Handler{FileSystem: fsys}

	req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "margin: 0")
}

func TestHandler_UnmatchedPathIs404(t *testing.T) {
	fsys := fstest.MapFS{
		"index.chtl": &fstest.MapFile{Data: []byte(`div {}`)},
	}
	h := &Handler{FileSystem: fsys}

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_CompileErrorStillWritesBestEffortHTML(t *testing.T) {
	fsys := fstest.MapFS{
		"index.chtl": &fstest.MapFile{Data: []byte(`div { @Element Missing; }`)},
	}
	var reportedErr error
	h := &Handler{
		FileSystem: fsys,
		OnError:    func(_ *http.Request, err error) { reportedErr = err },
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "<div>")
	require.Nil(t, reportedErr, "a compile diagnostic is not a serve-level error; OnError fires only on handleRequest failure")
}

func TestCleanPath(t *testing.T) {
	require.Equal(t, "/", cleanPath(""))
	require.Equal(t, "/a/b", cleanPath("a/b"))
	require.Equal(t, "/a/b/", cleanPath("/a/b/"))
	require.Equal(t, "/a/", cleanPath("/a//"))
}

func TestFirstSegment(t *testing.T) {
	seg, rest := firstSegment("/a/b")
	require.Equal(t, "a", seg)
	require.Equal(t, "/b", rest)

	seg, rest = firstSegment("/")
	require.Equal(t, "/", seg)
	require.Equal(t, "", rest)
}
