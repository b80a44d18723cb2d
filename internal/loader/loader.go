// Package loader stages a bundle.Catalog into a private GOPATH-shaped
// temporary directory and runs its entry module under the embedded yaegi
// interpreter, the substitute the distilled spec's own design notes
// sanction when a meta-path-style in-memory import hook isn't available:
// "staging the bundle into a private temporary directory and running from
// there; the observable requirement is that tracebacks name the bundle's
// declared Path values, not temp paths."
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"jumpgo/internal/bundle"
	"jumpgo/internal/errkind"
)

// ChildHost is the symbol table exposed to user code as the "childhost"
// package: the framed-transport descriptors and bundle key-values, the Go
// analogue of the original attaching Pipe_in/Pipe_out/Status_in and
// KVPairs onto the jumpboot package namespace.
type ChildHost struct {
	PipeIn   int
	PipeOut  int
	StatusIn int
	KVPairs  map[string]any
}

// Loaded is a staged catalog ready for execution.
type Loaded struct {
	interp    *interp.Interpreter
	root      string
	pathByReal map[string]string // staged absolute path -> declared bundle Path
	mainPkg   string
}

// Stage writes every catalog entry to disk under a fresh temporary GOPATH
// tree and constructs the interpreter, but does not yet run anything.
func Stage(cat *bundle.Catalog, host ChildHost) (*Loaded, error) {
	root, err := os.MkdirTemp("", "jumpgo-bundle-*")
	if err != nil {
		return nil, errkind.New(errkind.KindLoader, "loader.Stage", err)
	}
	srcRoot := filepath.Join(root, "src")
	if err := os.MkdirAll(srcRoot, 0o755); err != nil {
		return nil, errkind.New(errkind.KindLoader, "loader.Stage", err)
	}

	l := &Loaded{root: root, pathByReal: make(map[string]string)}

	for i := range cat.Entries {
		e := &cat.Entries[i]
		isMain := e.DottedName == cat.MainName
		importPath := "main"
		if !isMain {
			importPath = strings.ReplaceAll(e.DottedName, ".", "/")
			// A module inside a package is one file of that package, so it
			// is staged in the package's own directory.
			if !e.IsPackageInit && strings.Contains(importPath, "/") {
				importPath = importPath[:strings.LastIndex(importPath, "/")]
			}
		} else {
			l.mainPkg = "main"
		}
		dir := filepath.Join(srcRoot, importPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errkind.New(errkind.KindLoader, "loader.Stage", err)
		}

		var src string
		if e.Synthetic {
			ident := sanitizeIdent(lastSegment(e.DottedName))
			if isMain {
				ident = "main"
			}
			src = fmt.Sprintf("package %s\n", ident)
		} else {
			decoded, err := e.Module.Decode()
			if err != nil {
				return nil, errkind.New(errkind.KindLoader, "loader.Stage", err)
			}
			src = decoded
		}

		fname := filepath.Base(e.Module.Path)
		if fname == "" || fname == "." || fname == "/" {
			fname = sanitizeIdent(e.DottedName) + ".go"
		}
		staged := filepath.Join(dir, fname)
		if err := os.WriteFile(staged, []byte(src), 0o644); err != nil {
			return nil, errkind.New(errkind.KindLoader, "loader.Stage", err)
		}
		l.pathByReal[staged] = e.Module.Path
	}

	i := interp.New(interp.Options{GoPath: root})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, errkind.New(errkind.KindLoader, "loader.Stage", err)
	}
	if err := i.Use(interp.Exports{
		"childhost/childhost": {
			"PipeIn":   reflectValueOf(host.PipeIn),
			"PipeOut":  reflectValueOf(host.PipeOut),
			"StatusIn": reflectValueOf(host.StatusIn),
			"KVPairs":  reflectValueOf(host.KVPairs),
		},
	}); err != nil {
		return nil, errkind.New(errkind.KindLoader, "loader.Stage", err)
	}
	l.interp = i

	for _, e := range cat.TopLevel() {
		importPath := strings.ReplaceAll(e.DottedName, ".", "/")
		if _, err := i.Eval(fmt.Sprintf("import _ %q", importPath)); err != nil {
			return nil, errkind.New(errkind.KindLoader, fmt.Sprintf("loader.Stage: init %s", e.DottedName), err)
		}
	}

	return l, nil
}

// Run executes the staged main module. Any failure is translated into a
// *errkind.Error whose message has had staged temp paths rewritten back to
// the bundle's declared Path values, per the substitution's observable
// requirement.
func (l *Loaded) Run() error {
	mainPath := filepath.Join(l.root, "src", "main")
	entries, err := os.ReadDir(mainPath)
	if err != nil || len(entries) == 0 {
		return errkind.New(errkind.KindLoader, "loader.Run", fmt.Errorf("no main module staged"))
	}
	var mainFile string
	for _, de := range entries {
		if strings.HasSuffix(de.Name(), ".go") {
			mainFile = filepath.Join(mainPath, de.Name())
			break
		}
	}
	if mainFile == "" {
		return errkind.New(errkind.KindLoader, "loader.Run", fmt.Errorf("main module has no .go file"))
	}

	_, err = l.interp.EvalPath(mainFile)
	if err != nil {
		return errkind.New(errkind.KindLoader, "loader.Run", fmt.Errorf("%s", l.rewriteTraceback(err.Error())))
	}
	return nil
}

// Cleanup removes the staged temporary directory.
func (l *Loaded) Cleanup() error {
	return os.RemoveAll(l.root)
}

// rewriteTraceback replaces every staged absolute path occurring in msg
// with the declared bundle Path it was staged from.
func (l *Loaded) rewriteTraceback(msg string) string {
	out := msg
	for staged, declared := range l.pathByReal {
		out = strings.ReplaceAll(out, staged, declared)
	}
	return out
}

func lastSegment(dotted string) string {
	parts := strings.Split(dotted, ".")
	return parts[len(parts)-1]
}

var identRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

func sanitizeIdent(s string) string {
	s = identRe.ReplaceAllString(s, "_")
	if s == "" {
		return "pkg"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

func reflectValueOf(v any) reflect.Value {
	return reflect.ValueOf(v)
}
