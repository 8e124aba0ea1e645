package chtl

import (
	"path/filepath"
	"strings"
)

// symKind identifies what namespace a lookup key lives in, independent of
// TemplateKind so Origin and Constraint definitions can share the table.
type symKind int

const (
	symTemplate symKind = iota
	symCustom
	symOrigin
	symConstraint
)

// symbolKey is (kind, namespace path, name).
type symbolKey struct {
	kind      symKind
	tplKind   TemplateKind // meaningful only for symTemplate/symCustom
	namespace string       // dot-joined namespace path, "" for root
	name      string
}

// Scope is one layer of the per-document symbol table. Each imported file
// contributes a child scope; Lookup walks inward-out (current scope, then
// parent) before the caller applies configured aliases.
type Scope struct {
	parent   *Scope
	local    map[symbolKey]*Node
	children []*Scope

	// path is the canonical import path that produced this scope ("" for
	// the root document), used to derive rename tags on collision.
	path string

	// aliases maps an "as NAME" import alias to the namespace path it
	// stands for.
	aliases map[string]string
}

// NewScope creates a root scope for a freshly parsed document.
func NewScope() *Scope {
	return &Scope{local: make(map[symbolKey]*Node), aliases: make(map[string]string)}
}

// NewChildScope creates a scope for an imported file, already containing
// that file's own (already-resolved) definitions.
func (s *Scope) NewChildScope(path string) *Scope {
	c := &Scope{parent: s, local: make(map[symbolKey]*Node), aliases: make(map[string]string), path: path}
	s.children = append(s.children, c)
	return c
}

func tagFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, base)
	return base
}

// Define registers a definition in the local scope. If the name already
// already exists in this scope, the new
// definition is kept under a path-derived renamed key so BOTH remain
// reachable: the original name continues to resolve to whichever was
// defined first, and the newcomer is additionally registered under
// "<tag>:<name>" where tag is derived from the scope's import path.
func (s *Scope) Define(kind symKind, tplKind TemplateKind, namespace, name string, n *Node) (renamedTo string) {
	key := symbolKey{kind: kind, tplKind: tplKind, namespace: namespace, name: name}
	if _, exists := s.local[key]; !exists {
		s.local[key] = n
		return name
	}
	tag := tagFromPath(s.path)
	if tag == "" {
		tag = "dup"
	}
	renamed := tag + ":" + name
	renameKey := symbolKey{kind: kind, tplKind: tplKind, namespace: namespace, name: renamed}
	for {
		if _, exists := s.local[renameKey]; !exists {
			break
		}
		renameKey.name = renameKey.name + "_"
	}
	s.local[renameKey] = n
	return renameKey.name
}

// Lookup resolves (kind, namespace, name) by searching the local scope, then
// imported child scopes (depth-first, in definition order), then the parent
// scope. Returns nil if nothing matches.
func (s *Scope) Lookup(kind symKind, tplKind TemplateKind, namespace, name string) *Node {
	if s == nil {
		return nil
	}
	key := symbolKey{kind: kind, tplKind: tplKind, namespace: namespace, name: name}
	if n, ok := s.local[key]; ok {
		return n
	}
	for _, c := range s.children {
		if n := c.lookupLocalOnly(kind, tplKind, namespace, name); n != nil {
			return n
		}
	}
	return s.parent.Lookup(kind, tplKind, namespace, name)
}

func (s *Scope) lookupLocalOnly(kind symKind, tplKind TemplateKind, namespace, name string) *Node {
	key := symbolKey{kind: kind, tplKind: tplKind, namespace: namespace, name: name}
	if n, ok := s.local[key]; ok {
		return n
	}
	for _, c := range s.children {
		if n := c.lookupLocalOnly(kind, tplKind, namespace, name); n != nil {
			return n
		}
	}
	return nil
}

// ResolveAlias expands an "as NAME" alias to the namespace path it stands
// for, or returns name unchanged if it is not an alias.
func (s *Scope) ResolveAlias(name string) string {
	for sc := s; sc != nil; sc = sc.parent {
		if target, ok := sc.aliases[name]; ok {
			return target
		}
	}
	return name
}

// SetAlias records "from path as alias".
func (s *Scope) SetAlias(alias, target string) {
	s.aliases[alias] = target
}

// Merge folds other's local definitions into s as a child scope rooted at
// path. A name already reachable from s — its own locals or an earlier
// import — keeps resolving to the first definition; the colliding newcomer
// is merged under a "<tag>:<name>" rename derived from the import path, so
// both stay usable.
func (s *Scope) Merge(other *Scope, path string) {
	child := s.NewChildScope(path)
	for k, v := range other.local {
		if s.Lookup(k.kind, k.tplKind, k.namespace, k.name) == nil {
			child.local[k] = v
			continue
		}
		tag := tagFromPath(path)
		if tag == "" {
			tag = "dup"
		}
		rk := k
		rk.name = tag + ":" + k.name
		for {
			_, taken := child.local[rk]
			if !taken && s.Lookup(rk.kind, rk.tplKind, rk.namespace, rk.name) == nil {
				break
			}
			rk.name += "_"
		}
		child.local[rk] = v
	}
	child.children = append(child.children, other.children...)
}
