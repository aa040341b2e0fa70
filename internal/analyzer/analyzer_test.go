package analyzer

import (
	"context"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"

	"why/internal/config"
	whyerrors "why/internal/errors"
	"why/internal/manifest"
	"why/internal/testutil"
	"why/internal/usage"
)

const npmManifest = `{
  "name": "fixture",
  "dependencies": {
    "express": "^4.18.0",
    "left-pad": "1.3.0",
    "lodash": "^4.17.21"
  },
  "devDependencies": {
    "jest": "^29.0.0"
  }
}`

const npmLock = `{
  "name": "fixture",
  "lockfileVersion": 3,
  "packages": {
    "": {"name": "fixture"},
    "node_modules/express": {"version": "4.18.2", "dependencies": {"lodash": "^4.17.0", "debug": "2.6.9"}},
    "node_modules/lodash": {"version": "4.17.21"}
  }
}`

func npmProject(t *testing.T) *testutil.Project {
	return testutil.WriteProject(t, map[string]string{
		"package.json":      npmManifest,
		"package-lock.json": npmLock,
		"src/app.js":        "const express = require('express');\nimport _ from 'lodash';\n",
		"src/util.ts":       "import { chunk } from \"lodash/array\";\nexport {};\n",
		"src/server.mjs":    "import express from 'express';\n",
		"node_modules/lodash/index.js": "module.exports = {};\n",
	})
}

func analyze(t *testing.T, opts Options) *AnalysisResult {
	t.Helper()
	res, err := New(nil).Analyze(context.Background(), opts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return res
}

func optionsFor(root string) Options {
	opts := DefaultOptions()
	opts.Path = root
	return opts
}

func rowByName(t *testing.T, rows []Row, name string) Row {
	t.Helper()
	for _, r := range rows {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no row for %s in %+v", name, rows)
	return Row{}
}

func TestAnalyze_NPM(t *testing.T) {
	p := npmProject(t)
	res := analyze(t, optionsFor(p.Root))

	if _, err := uuid.Parse(res.RunID); err != nil {
		t.Errorf("RunID %q is not a UUID: %v", res.RunID, err)
	}
	if res.ProjectRoot != p.Root {
		t.Errorf("ProjectRoot = %q, want %q", res.ProjectRoot, p.Root)
	}
	if res.ManifestKind != manifest.KindNPM {
		t.Errorf("ManifestKind = %q", res.ManifestKind)
	}

	view := res.View()
	names := make([]string, len(view.Rows))
	for i, r := range view.Rows {
		names[i] = r.Name
	}
	// Manifest order: runtime table sorted, then dev
	if want := []string{"express", "left-pad", "lodash", "jest"}; !reflect.DeepEqual(names, want) {
		t.Errorf("row order = %v, want %v", names, want)
	}

	lodash := rowByName(t, view.Rows, "lodash")
	if !lodash.Used || lodash.FileCount != 2 || lodash.SiteCount != 2 {
		t.Errorf("lodash = %+v, want used in 2 files with 2 sites", lodash)
	}
	if lodash.KindCounts[usage.Import] != 2 {
		t.Errorf("lodash kinds = %v", lodash.KindCounts)
	}

	if want := []string{"left-pad", "jest"}; !reflect.DeepEqual(view.Removable, want) {
		t.Errorf("Removable = %v, want %v", view.Removable, want)
	}

	// Vendored sources under node_modules are not scanned
	for _, f := range res.Usage.Files() {
		if f == "node_modules/lodash/index.js" {
			t.Error("node_modules was scanned")
		}
	}

	// debug is not declared, so only express -> lodash survives
	if len(res.Edges) != 1 || res.Edges[0].From != "express" || res.Edges[0].To != "lodash" {
		t.Errorf("Edges = %+v", res.Edges)
	}
	if len(view.Cycles) != 0 {
		t.Errorf("Cycles = %v, want none", view.Cycles)
	}
	if len(view.Warnings) != 0 {
		t.Errorf("Warnings = %+v", view.Warnings)
	}
}

func TestAnalyze_NPMMultiLineImports(t *testing.T) {
	p := testutil.WriteProject(t, map[string]string{
		"package.json": `{"dependencies": {"left-pad": "1.3.0", "lodash": "^4.17.21", "react": "^18.0.0"}}`,
		"src/a.ts":     "import {\n  debounce,\n  throttle,\n} from 'lodash';\nimport React, {\n  useState,\n} from \"react\";\n",
		"src/b.tsx":    "import React from 'react';\nimport {\n  chunk,\n} from 'lodash';\n",
	})
	res := analyze(t, optionsFor(p.Root))
	view := res.View()

	for _, name := range []string{"lodash", "react"} {
		row := rowByName(t, view.Rows, name)
		if !row.Used || row.FileCount != 2 || row.Removable {
			t.Errorf("%s = %+v, want used in 2 files and kept", name, row)
		}
	}
	if sites := res.Usage.Sites("lodash"); len(sites) == 0 || sites[0].File != "src/a.ts" || sites[0].Line != 1 {
		t.Errorf("lodash sites = %+v", sites)
	}
	if want := []string{"left-pad"}; !reflect.DeepEqual(view.Removable, want) {
		t.Errorf("Removable = %v, want %v", view.Removable, want)
	}
}

func TestAnalyze_ExcludeDev(t *testing.T) {
	p := npmProject(t)
	opts := optionsFor(p.Root)
	opts.IncludeDev = false

	res := analyze(t, opts)
	for _, r := range res.Records {
		if r.Name == "jest" {
			t.Fatal("dev dependency should be filtered out")
		}
	}
	if res.Usage.Has("jest") {
		t.Error("filtered dependency must not be an index key")
	}
}

func cargoProject(t *testing.T) *testutil.Project {
	return testutil.WriteProject(t, map[string]string{
		"Cargo.toml": testutil.CargoManifest(`[dependencies]
dep-x = "1.0"
dep-y = { version = "0.3", features = ["async"] }
dep-z = { version = "2", features = ["a", "b"] }
`),
		"src/lib.rs": "use dep_y::async_rt::spawn;\nuse dep_z::a_mod::Thing;\n",
	})
}

// Scenarios A, B and C end to end.
func TestAnalyze_CargoScenarios(t *testing.T) {
	p := cargoProject(t)
	res := analyze(t, optionsFor(p.Root))
	view := res.View()

	x := rowByName(t, view.Rows, "dep-x")
	if x.Used || x.ImportanceScore != 0 || !x.Removable {
		t.Errorf("dep-x = %+v, want unused, score 0, removable", x)
	}

	y := res.Metrics.Get("dep-y")
	if !y.FeatureUsage["async"] || y.PartiallyUsed {
		t.Errorf("dep-y feature usage = %v partially=%v", y.FeatureUsage, y.PartiallyUsed)
	}

	z := res.Metrics.Get("dep-z")
	if want := map[string]bool{"a": true, "b": false}; !reflect.DeepEqual(z.FeatureUsage, want) {
		t.Errorf("dep-z feature usage = %v, want %v", z.FeatureUsage, want)
	}
	if !z.PartiallyUsed {
		t.Error("dep-z should be partially used")
	}
	zr := rowByName(t, view.Rows, "dep-z")
	if !reflect.DeepEqual(zr.UsedFeatures, []string{"a"}) || !reflect.DeepEqual(zr.UnusedFeatures, []string{"b"}) {
		t.Errorf("dep-z features = %v / %v", zr.UsedFeatures, zr.UnusedFeatures)
	}

	// No lock file: node-only graph, no cycles, no warning
	if res.Graph.NumNodes() != 3 || res.Graph.NumEdges() != 0 {
		t.Errorf("graph = %d nodes, %d edges", res.Graph.NumNodes(), res.Graph.NumEdges())
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %+v", res.Warnings)
	}
}

// Scenario D: a -> b -> c -> a from the lock file.
func TestAnalyze_LockCycle(t *testing.T) {
	p := testutil.WriteProject(t, map[string]string{
		"Cargo.toml": testutil.CargoManifest("[dependencies]\na = \"1\"\nb = \"1\"\nc = \"1\"\n"),
		"Cargo.lock": `version = 3

[[package]]
name = "a"
version = "1.0.0"
dependencies = ["b"]

[[package]]
name = "b"
version = "1.0.0"
dependencies = ["c 1.0.0"]

[[package]]
name = "c"
version = "1.0.0"
dependencies = ["a"]
`,
		"src/main.rs": "fn main() {}\n",
	})

	res := analyze(t, optionsFor(p.Root))
	if want := [][]string{{"a", "b", "c"}}; !reflect.DeepEqual(res.Cycles, want) {
		t.Errorf("Cycles = %v, want %v", res.Cycles, want)
	}
	if !res.Graph.HasPath("c", "b") {
		t.Error("c should reach b through the cycle")
	}
}

func TestAnalyze_MalformedLockIsWarning(t *testing.T) {
	p := testutil.WriteProject(t, map[string]string{
		"Cargo.toml": testutil.CargoManifest("[dependencies]\na = \"1\"\n"),
		"Cargo.lock": "[[package]\nname = ",
	})

	res := analyze(t, optionsFor(p.Root))
	if len(res.Warnings) != 1 || res.Warnings[0].Code != usage.WarnLockfileInvalid {
		t.Fatalf("Warnings = %+v, want one LOCKFILE_INVALID", res.Warnings)
	}
	if res.Graph.NumEdges() != 0 {
		t.Error("graph should be node-only")
	}
}

func TestAnalyze_Dependency(t *testing.T) {
	p := npmProject(t)
	opts := optionsFor(p.Root)
	opts.Dependency = "lodash"

	view := analyze(t, opts).View()
	if len(view.Rows) != 1 || view.Rows[0].Name != "lodash" {
		t.Fatalf("Rows = %+v, want only lodash", view.Rows)
	}
	sites := view.Rows[0].Sites
	if len(sites) != 2 || sites[0].File != "src/app.js" || sites[1].File != "src/util.ts" {
		t.Errorf("Sites = %+v", sites)
	}
	if sites[1].Symbol != "lodash/array" {
		t.Errorf("Symbol = %q, want the import text", sites[1].Symbol)
	}
	if len(view.Removable) != 0 {
		t.Errorf("Removable = %v, want empty for a used dependency", view.Removable)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		setup func(root string, opts *Options)
		want  whyerrors.ErrorCode
	}{
		{
			name:  "missing root",
			files: map[string]string{},
			setup: func(root string, opts *Options) { opts.Path = root + "/does-not-exist" },
			want:  whyerrors.ProjectUnreadable,
		},
		{
			name:  "no manifest",
			files: map[string]string{"README.md": "hi"},
			want:  whyerrors.ManifestNotFound,
		},
		{
			name:  "invalid manifest",
			files: map[string]string{"Cargo.toml": "[dependencies\n"},
			want:  whyerrors.ManifestInvalid,
		},
		{
			name:  "unknown dependency",
			files: map[string]string{"package.json": npmManifest},
			setup: func(_ string, opts *Options) { opts.Dependency = "react" },
			want:  whyerrors.UnknownDependency,
		},
		{
			name:  "dependency excluded by class",
			files: map[string]string{"package.json": npmManifest},
			setup: func(_ string, opts *Options) { opts.Dependency = "jest"; opts.IncludeDev = false },
			want:  whyerrors.UnknownDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.WriteProject(t, tt.files)
			opts := optionsFor(p.Root)
			if tt.setup != nil {
				tt.setup(p.Root, &opts)
			}

			_, err := New(nil).Analyze(context.Background(), opts)
			if !whyerrors.IsCode(err, tt.want) {
				t.Errorf("error = %v, want code %s", err, tt.want)
			}
		})
	}
}

func TestAnalyze_ManifestInSubdirectory(t *testing.T) {
	p := testutil.WriteProject(t, map[string]string{
		"crates/app/Cargo.toml": testutil.CargoManifest("[dependencies]\nserde = \"1\"\n"),
		"crates/app/src/lib.rs": "use serde::Serialize;\n",
		"other/src/lib.rs":      "use serde::Deserialize;\n",
	})

	res := analyze(t, optionsFor(p.Root))
	if res.ManifestPath != p.Path("crates/app/Cargo.toml") {
		t.Errorf("ManifestPath = %q", res.ManifestPath)
	}
	sites := res.Usage.Sites("serde")
	if len(sites) != 1 || sites[0].File != "src/lib.rs" {
		t.Errorf("sites = %+v, want only the manifest's own tree", sites)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	p := npmProject(t)
	first := analyze(t, optionsFor(p.Root))
	second := analyze(t, optionsFor(p.Root))

	if first.RunID == second.RunID {
		t.Error("each run needs its own RunID")
	}
	a := testutil.MarshalNormalized(t, p.Root, first.View())
	b := testutil.MarshalNormalized(t, p.Root, second.View())
	if string(a) != string(b) {
		t.Errorf("views differ:\n%s\n---\n%s", a, b)
	}
}

// memCache records calls made through the cache and prune hooks.
type memCache struct {
	mu      sync.Mutex
	entries map[usage.CacheKey][]usage.Match
	kept    []string
}

func (c *memCache) Get(_ context.Context, key usage.CacheKey) ([]usage.Match, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[key]
	return m, ok, nil
}

func (c *memCache) Put(_ context.Context, key usage.CacheKey, matches []usage.Match) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = matches
	return nil
}

func (c *memCache) Prune(_ context.Context, keep []string) (int64, error) {
	c.kept = keep
	return 0, nil
}

func TestAnalyze_CachePrunedToScannedFiles(t *testing.T) {
	p := npmProject(t)
	cache := &memCache{entries: map[usage.CacheKey][]usage.Match{}}
	opts := optionsFor(p.Root)
	opts.Cache = cache

	analyze(t, opts)
	if want := []string{"src/app.js", "src/server.mjs", "src/util.ts"}; !reflect.DeepEqual(cache.kept, want) {
		t.Errorf("Prune kept %v, want %v", cache.kept, want)
	}
	if len(cache.entries) != 3 {
		t.Errorf("cache holds %d entries, want 3", len(cache.entries))
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.General.ProjectDir = "/work"
	cfg.Analysis.RemovalThreshold = 0.05
	cfg.Analysis.PartialThreshold = 0.4
	cfg.Analysis.Threads = 2

	opts := OptionsFromConfig(cfg)
	if opts.Path != "/work" || opts.Threads != 2 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Thresholds.LowImportance != 0.05 || opts.Thresholds.PartialImportance != 0.4 {
		t.Errorf("Thresholds = %+v", opts.Thresholds)
	}
	if opts.Cache != nil {
		t.Error("cache should be left to the caller")
	}

	// The slice is copied
	opts.ExcludePatterns[0] = "changed"
	if cfg.Analysis.ExcludePatterns[0] == "changed" {
		t.Error("OptionsFromConfig aliases the config slice")
	}
}

func TestSummary(t *testing.T) {
	p := npmProject(t)
	s := analyze(t, optionsFor(p.Root)).Summary()

	if s.Dependencies != 4 || s.Used != 2 || s.Removable != 2 || s.Cycles != 0 {
		t.Errorf("Summary = %+v", s)
	}
	if s.ManifestPath != p.Path("package.json") {
		t.Errorf("ManifestPath = %q", s.ManifestPath)
	}
}

func TestRow(t *testing.T) {
	p := cargoProject(t)
	res := analyze(t, optionsFor(p.Root))

	row, ok := res.Row("dep-y")
	if !ok {
		t.Fatal("dep-y row missing")
	}
	if row.Version != "0.3" || row.Class != manifest.Runtime {
		t.Errorf("row = %+v", row)
	}
	if math.IsNaN(row.ImportanceScore) || row.ImportanceScore <= 0 || row.ImportanceScore > 1 {
		t.Errorf("ImportanceScore = %v", row.ImportanceScore)
	}
	if _, ok := res.Row("nope"); ok {
		t.Error("unknown row should not be found")
	}
}
