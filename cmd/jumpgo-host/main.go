// Command jumpgo-host is a reference host: it builds a program bundle from
// a directory of .go modules, launches a jumpgo-child as a local
// subprocess, and drives it over the framed RPC protocol until a SIGINT or
// SIGTERM arrives; it does not stop waiting if the child exits on its own
// first. Structurally this follows cmd/server/main.go's
// shape (load config, build server-side state, install signal handling,
// graceful shutdown) scaled down to a single child instead of a fleet of
// sandboxes.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"jumpgo/internal/bundle"
	"jumpgo/internal/host"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	programDir := flag.String("program", "", "directory containing the entry .go file and any packages to bundle")
	mainFile := flag.String("main", "main.go", "entry file name within -program")
	flag.Parse()

	if *programDir == "" {
		log.Fatalf("jumpgo-host: -program is required")
	}

	cfg := host.LoadConfig()

	b, err := buildBundleFromDir(*programDir, *mainFile)
	if err != nil {
		log.Fatalf("jumpgo-host: build bundle: %v", err)
	}

	launcher := host.LocalLauncher{Binary: cfg.ChildBinary}
	child, err := launcher.Launch(b, nil)
	if err != nil {
		log.Fatalf("jumpgo-host: launch child: %v", err)
	}
	child.Server.Start()
	log.Printf("jumpgo-host: child launched, serving requests")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("jumpgo-host: shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := child.Server.Request(ctx, "shutdown", nil, cfg.CallTimeout); err != nil {
		log.Printf("jumpgo-host: shutdown request failed, killing child: %v", err)
		_ = child.Kill()
	}
	_ = child.Wait()
}

// buildBundleFromDir walks a directory tree of .go files and turns it into
// a bundle.Bundle: the entry file becomes Program, every other top-level
// .go file becomes a Module, and subdirectories become Packages.
func buildBundleFromDir(dir, mainFile string) (bundle.Bundle, error) {
	var b bundle.Bundle

	entries, err := os.ReadDir(dir)
	if err != nil {
		return b, err
	}

	for _, de := range entries {
		if de.IsDir() {
			pkg, err := buildPackage(filepath.Join(dir, de.Name()), de.Name())
			if err != nil {
				return b, err
			}
			b.Packages = append(b.Packages, pkg)
			continue
		}
		if !strings.HasSuffix(de.Name(), ".go") {
			continue
		}
		mod, err := readModule(filepath.Join(dir, de.Name()), de.Name())
		if err != nil {
			return b, err
		}
		if de.Name() == mainFile {
			b.Program = mod
			continue
		}
		b.Modules = append(b.Modules, mod)
	}

	return b, nil
}

func buildPackage(dir, name string) (bundle.Package, error) {
	pkg := bundle.Package{Name: name}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return pkg, err
	}
	for _, de := range entries {
		if de.IsDir() {
			sub, err := buildPackage(filepath.Join(dir, de.Name()), de.Name())
			if err != nil {
				return pkg, err
			}
			pkg.Packages = append(pkg.Packages, sub)
			continue
		}
		if !strings.HasSuffix(de.Name(), ".go") {
			continue
		}
		mod, err := readModule(filepath.Join(dir, de.Name()), de.Name())
		if err != nil {
			return pkg, err
		}
		pkg.Modules = append(pkg.Modules, mod)
	}
	return pkg, nil
}

func readModule(path, name string) (bundle.Module, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return bundle.Module{}, err
	}
	return bundle.Module{
		Name:   name,
		Path:   path,
		Source: base64.StdEncoding.EncodeToString(raw),
	}, nil
}
