// Package bundle defines the program bundle delivered to the child at
// start-up and flattens its nested package tree into a name-addressed
// catalog the loader can stage for the embedded interpreter.
package bundle

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// Module is one unit of source code: a non-package top-level module, or a
// package's own entry file when embedded inside a Package.
type Module struct {
	Name   string `json:"Name"`
	Path   string `json:"Path"`
	Source string `json:"Source"` // base64-encoded UTF-8
}

// Decode returns the module's decoded UTF-8 source.
func (m Module) Decode() (string, error) {
	raw, err := base64.StdEncoding.DecodeString(m.Source)
	if err != nil {
		return "", fmt.Errorf("bundle: decode module %q: %w", m.Name, err)
	}
	return string(raw), nil
}

// Package is a named, possibly nested, collection of modules.
type Package struct {
	Name     string    `json:"Name"`
	Path     string    `json:"Path,omitempty"`
	Modules  []Module  `json:"Modules,omitempty"`
	Packages []Package `json:"Packages,omitempty"`
}

// Bundle is the JSON document the host writes once to the program
// descriptor before the child starts reading from its pipes.
type Bundle struct {
	Program  Module            `json:"Program"`
	Modules  []Module          `json:"Modules,omitempty"`
	Packages []Package         `json:"Packages,omitempty"`
	PipeIn   int               `json:"PipeIn"`
	PipeOut  int               `json:"PipeOut"`
	StatusIn int               `json:"StatusIn"`
	KVPairs  map[string]any    `json:"KVPairs,omitempty"`

	DebugPort    int  `json:"DebugPort,omitempty"`
	BreakOnStart bool `json:"BreakOnStart,omitempty"`
}

// Decode parses a Bundle from its JSON wire form.
func Decode(raw []byte) (Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return Bundle{}, fmt.Errorf("bundle: decode: %w", err)
	}
	return b, nil
}

// Entry is one flattened catalog entry: a dotted name (Go import-path-like,
// slash-joined for actual import paths) mapped to its module.
type Entry struct {
	// DottedName is the '.'-joined name used for catalog lookups and
	// traceback rewriting, mirroring the original's fully qualified module
	// names (e.g. "pkg.sub.mod").
	DottedName string
	Module     Module
	// IsPackageInit marks the synthesized or supplied entry file of a
	// package (the Go analogue of __init__.py).
	IsPackageInit bool
	// Synthetic marks an entry the loader invented because the bundle
	// supplied no source for it (an empty package directory). Its Module
	// has no usable Source field; the loader must write a bare
	// "package <ident>" file in its place.
	Synthetic bool
}

// Catalog is the flattened view of a Bundle: every module and package-init
// file addressed by its dotted name, in deterministic order.
type Catalog struct {
	Entries    []Entry
	MainName   string
	ByDotted   map[string]*Entry
}

// Build flattens a Bundle's Packages/Modules tree into a Catalog, the Go
// analogue of secondaryBootstrapScript.py's load_program_data: packages
// without an explicit entry file get a synthetic empty one, and any
// pseudo-path that doesn't look like a real source file is rewritten under
// a virtual root so traceback text still names something legible.
func Build(b Bundle) (*Catalog, error) {
	c := &Catalog{ByDotted: make(map[string]*Entry)}

	var walk func(pkg Package, parent string)
	walk = func(pkg Package, parent string) {
		dotted := pkg.Name
		if parent != "" {
			dotted = parent + "." + pkg.Name
		}
		virtualDir := "/virtual/" + strings.ReplaceAll(dotted, ".", "/")

		var initModule *Module
		for i := range pkg.Modules {
			if pkg.Modules[i].Name == "__init__.go" {
				initModule = &pkg.Modules[i]
				break
			}
		}
		entry := Entry{DottedName: dotted, IsPackageInit: true}
		switch {
		case initModule != nil:
			m := *initModule
			if !strings.HasSuffix(m.Path, ".go") {
				m.Path = path.Join(virtualDir, "__init__.go")
			}
			entry.Module = m
		case pkg.Path != "" && strings.HasSuffix(pkg.Path, ".go"):
			entry.Module = Module{Name: "__init__.go", Path: pkg.Path}
			entry.Synthetic = true
		default:
			entry.Module = Module{Name: "__init__.go", Path: path.Join(virtualDir, "__init__.go")}
			entry.Synthetic = true
		}
		c.add(entry)

		for _, m := range pkg.Modules {
			if m.Name == "__init__.go" {
				continue
			}
			modDotted := dotted + "." + strings.TrimSuffix(m.Name, ".go")
			mm := m
			if !strings.HasSuffix(mm.Path, ".go") {
				mm.Path = path.Join(virtualDir, m.Name)
			}
			c.add(Entry{DottedName: modDotted, Module: mm})
		}

		for _, sub := range pkg.Packages {
			walk(sub, dotted)
		}
	}

	for _, pkg := range b.Packages {
		walk(pkg, "")
	}

	for _, m := range b.Modules {
		mm := m
		if !strings.HasSuffix(mm.Path, ".go") {
			mm.Path = path.Join("/virtual", m.Name)
		}
		c.add(Entry{DottedName: strings.TrimSuffix(m.Name, ".go"), Module: mm})
	}

	prog := b.Program
	if !strings.HasSuffix(prog.Path, ".go") {
		prog.Path = path.Join("/virtual", prog.Name)
	}
	mainDotted := strings.TrimSuffix(prog.Name, ".go")
	c.MainName = mainDotted
	c.add(Entry{DottedName: mainDotted, Module: prog})

	return c, nil
}

func (c *Catalog) add(e Entry) {
	c.Entries = append(c.Entries, e)
	c.ByDotted[e.DottedName] = &c.Entries[len(c.Entries)-1]
}

// TopLevel returns every catalog entry whose dotted name has no '.', except
// the main module — the set eagerly imported for init-on-import side
// effects before the entry module runs.
func (c *Catalog) TopLevel() []*Entry {
	var out []*Entry
	for i := range c.Entries {
		e := &c.Entries[i]
		if e.DottedName == c.MainName {
			continue
		}
		if !strings.Contains(e.DottedName, ".") {
			out = append(out, e)
		}
	}
	return out
}
