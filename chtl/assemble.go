package chtl

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// assemble performs exactly two textual insertions into the generator's
// own HTML output and nothing else: a <style> tag goes immediately before
// the first </head> (or a synthesized <head> is prepended if the document
// has none), and a <script> tag goes immediately before the last </body>
// (or is appended if the document has none). No <html> wrapper is ever
// synthesized — head and body are ordinary elements the source is free to
// declare itself.
func assemble(gen *GenResult, doctype string) string {
	body := insertStyleBlock(gen.HTML, gen.CSS)
	body = insertScriptBlock(body, gen.Scripts)

	if doctype != "" {
		return doctype + "\n" + body
	}
	return body
}

// insertStyleBlock places the stylesheet immediately before the first
// </head>, or prepends a head if the document has none.
func insertStyleBlock(htmlBody string, css []CSSRule) string {
	if len(css) == 0 {
		return htmlBody
	}
	block := fmt.Sprintf("<style>\n%s</style>", renderStylesheet(css))
	if idx := strings.Index(htmlBody, "</head>"); idx >= 0 {
		return htmlBody[:idx] + block + htmlBody[idx:]
	}
	return "<head>" + block + "</head>" + htmlBody
}

// insertScriptBlock places the script bundle immediately before the last
// </body>, or appends it if the document has none.
func insertScriptBlock(htmlBody string, scripts []string) string {
	if len(scripts) == 0 {
		return htmlBody
	}
	body := strings.Join(scripts, "\n")
	if documentUsesHDLJS(scripts) {
		body = hdlJSRuntime + body
	}
	block := fmt.Sprintf("<script>\n%s</script>", body)
	if idx := strings.LastIndex(htmlBody, "</body>"); idx >= 0 {
		return htmlBody[:idx] + block + htmlBody[idx:]
	}
	return htmlBody + block
}

// documentUsesHDLJS reports whether any collected script body still
// contains an HDL-JS runtime call, used to decide whether the shared
// runtime helpers need to be prefixed to the bundle.
func documentUsesHDLJS(scripts []string) bool {
	for _, s := range scripts {
		if strings.Contains(s, "__chtl") {
			return true
		}
	}
	return false
}

func roundTripThroughEtree(framed string) (string, bool) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if err := doc.ReadFromString(framed); err != nil {
		return "", false
	}
	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return "", false
	}
	return out, true
}
