package bundle

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func mod(name, path, source string) Module {
	return Module{Name: name, Path: path, Source: base64.StdEncoding.EncodeToString([]byte(source))}
}

func TestBuildFlattensNestedPackages(t *testing.T) {
	b := Bundle{
		Program: mod("main.go", "/bundle/main.go", "package main\nfunc main() {}\n"),
		Packages: []Package{
			{
				Name: "pkg",
				Modules: []Module{
					mod("mod.go", "/bundle/pkg/mod.go", "package pkg\nfunc Hello() string { return \"hi\" }\n"),
				},
				Packages: []Package{
					{
						Name: "sub",
						Modules: []Module{
							mod("leaf.go", "/bundle/pkg/sub/leaf.go", "package sub\n"),
						},
					},
				},
			},
		},
	}

	cat, err := Build(b)
	require.NoError(t, err)
	require.Equal(t, "main", cat.MainName)

	pkgMod, ok := cat.ByDotted["pkg.mod"]
	require.True(t, ok)
	src, err := pkgMod.Module.Decode()
	require.NoError(t, err)
	require.Contains(t, src, "func Hello")

	_, ok = cat.ByDotted["pkg.sub.leaf"]
	require.True(t, ok)

	pkgInit, ok := cat.ByDotted["pkg"]
	require.True(t, ok)
	require.True(t, pkgInit.IsPackageInit)
}

func TestBuildSynthesizesMissingPackageInit(t *testing.T) {
	b := Bundle{
		Program: mod("main.go", "main.go", "package main\n"),
		Packages: []Package{
			{Name: "empty"},
		},
	}
	cat, err := Build(b)
	require.NoError(t, err)

	entry, ok := cat.ByDotted["empty"]
	require.True(t, ok)
	require.True(t, entry.Synthetic)
}

func TestTopLevelExcludesMain(t *testing.T) {
	b := Bundle{
		Program: mod("main.go", "main.go", "package main\n"),
		Modules: []Module{
			mod("helper.go", "helper.go", "package helper\n"),
		},
	}
	cat, err := Build(b)
	require.NoError(t, err)

	top := cat.TopLevel()
	require.Len(t, top, 1)
	require.Equal(t, "helper", top[0].DottedName)
}
