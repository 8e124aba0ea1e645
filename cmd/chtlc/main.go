// Command chtlc compiles a CHTL source file to HTML, CSS, and JS.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chtl-lang/chtl/chtl"
)

var (
	outPath    string
	configPath string
	quiet      bool
)

// fileConfig is the optional chtl.config.yaml defaults file; command-line
// flags always win over it.
type fileConfig struct {
	Out string `yaml:"out"`
}

var cssOutPath, jsOutPath string

func main() {
	root := &cobra.Command{
		Use:   "chtlc",
		Short: "Compile a CHTL source file",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "chtl.config.yaml", "path to a chtl.config.yaml defaults file")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress diagnostic output on stderr")

	compileCmd := &cobra.Command{
		Use:   "compile <input.chtl>",
		Short: "Compile to separate HTML, CSS, and JS outputs",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompile,
	}
	compileCmd.Flags().StringVarP(&outPath, "out", "o", "", "HTML body output path (default: stdout)")
	compileCmd.Flags().StringVar(&cssOutPath, "css-out", "", "stylesheet output path (default: stdout)")
	compileCmd.Flags().StringVar(&jsOutPath, "js-out", "", "script output path (default: stdout)")

	compileToHTMLCmd := &cobra.Command{
		Use:   "compile-to-html <input.chtl>",
		Short: "Compile to one assembled HTML document",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompileToHTML,
	}
	compileToHTMLCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file path (default: stdout)")

	root.AddCommand(compileCmd, compileToHTMLCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	result := compileFile(args[0])
	writeOutput(outPath, result.Body)
	writeOutput(cssOutPath, chtl.RenderStylesheet(result.CSS))
	writeOutput(jsOutPath, strings.Join(result.Scripts, "\n"))
	return exitForDiagnostics(result)
}

func runCompileToHTML(cmd *cobra.Command, args []string) error {
	result := compileFile(args[0])
	writeOutput(outPath, result.HTML)
	return exitForDiagnostics(result)
}

// compileFile reads and compiles inPath, printing diagnostics to stderr.
// An unreadable top-level source is the one fatal condition, so it exits
// the process directly rather than returning.
func compileFile(inPath string) *chtl.Result {
	if cfg, err := loadFileConfig(configPath); err == nil && outPath == "" {
		outPath = cfg.Out
	}

	src, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chtlc: %v\n", err)
		os.Exit(2)
	}

	loader := dirLoader{root: filepath.Dir(inPath)}
	result := chtl.Compile(filepath.Base(inPath), src, loader)

	if !quiet {
		for _, d := range result.Diagnostics.List() {
			fmt.Fprintln(os.Stderr, d.Error())
		}
	}
	return result
}

func writeOutput(path, content string) {
	if path == "" {
		fmt.Print(content)
		return
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "chtlc: writing %s: %v\n", path, err)
		os.Exit(2)
	}
}

func exitForDiagnostics(result *chtl.Result) error {
	if result.Diagnostics.HasErrors() {
		os.Exit(1)
	}
	return nil
}

func loadFileConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// dirLoader resolves CHTL imports relative to the entry file's directory
// (chtl.FileLoader — chtl/importer.go).
type dirLoader struct {
	root string
}

func (l dirLoader) Read(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(l.root, path))
}

func (l dirLoader) Canonicalize(path string) string {
	return filepath.Clean(filepath.Join(l.root, path))
}
