package chtl

// ModuleManifest is the [Info]/[Export] manifest of a .cmod/.cjmod
// package.
type ModuleManifest struct {
	Name        string
	Version     string
	Description string
	Author      string

	// Exports lists "@Kind Name" entries from the manifest's [Export]
	// block; only these are visible to an importer of the module, the rest
	// stay private implementation detail.
	Exports []ExportEntry
}

type ExportEntry struct {
	Kind TemplateKind
	Name string
}

// parseModuleManifest parses an info.chtl manifest body. It reuses the core
// tokenizer but not the full statement parser, since a manifest's grammar is
// a small, fixed subset ([Info] and [Export] keyword-bracket blocks only).
func parseModuleManifest(src string) (*ModuleManifest, *Diagnostics) {
	diags := &Diagnostics{}
	m := &ModuleManifest{}

	tz := NewTokenizer([]byte(src))
	var toks []Token
	for {
		t := tz.Next()
		toks = append(toks, t)
		if t.Kind == TokEOF {
			break
		}
	}

	pos := 0
	peek := func() Token { return toks[pos] }
	adv := func() Token {
		t := toks[pos]
		if t.Kind != TokEOF {
			pos++
		}
		return t
	}

	for peek().Kind != TokEOF {
		t := peek()
		if t.Kind != TokKeywordBracket {
			adv()
			continue
		}
		switch t.Literal {
		case "Info":
			adv()
			if peek().Kind == TokLBrace {
				adv()
			}
			for peek().Kind != TokRBrace && peek().Kind != TokEOF {
				key := adv()
				if peek().Kind == TokEquals {
					adv()
				}
				val := adv()
				if peek().Kind == TokSemicolon {
					adv()
				}
				switch key.Literal {
				case "Name":
					m.Name = val.Literal
				case "Version":
					m.Version = val.Literal
				case "Description":
					m.Description = val.Literal
				case "Author":
					m.Author = val.Literal
				}
			}
			if peek().Kind == TokRBrace {
				adv()
			}
		case "Export":
			adv()
			if peek().Kind == TokLBrace {
				adv()
			}
			for peek().Kind != TokRBrace && peek().Kind != TokEOF {
				if peek().Kind == TokAt {
					adv()
				}
				kindTok := adv()
				var kind TemplateKind
				switch kindTok.Literal {
				case "Style":
					kind = TplStyle
				case "Var":
					kind = TplVar
				default:
					kind = TplElement
				}
				name := adv()
				if peek().Kind == TokSemicolon {
					adv()
				}
				m.Exports = append(m.Exports, ExportEntry{Kind: kind, Name: name.Literal})
			}
			if peek().Kind == TokRBrace {
				adv()
			}
		default:
			adv()
		}
	}

	if m.Name == "" {
		diags.Add(newDiag(Semantic, Source{}, "module manifest missing required Name field"))
	}
	return m, diags
}
