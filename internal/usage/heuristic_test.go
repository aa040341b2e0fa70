package usage

import (
	"reflect"
	"testing"

	"why/internal/manifest"
)

func deps(names ...string) []manifest.DependencyRecord {
	out := make([]manifest.DependencyRecord, len(names))
	for i, n := range names {
		out[i] = manifest.DependencyRecord{Name: n, Class: manifest.Runtime}
	}
	return out
}

func TestScanRustLines(t *testing.T) {
	src := `use serde::{Deserialize, Serialize};
pub use tokio::sync::mpsc;
pub(crate) use serde_json as json;
extern crate log;
use std::io;
use ::regex::Regex;
fn broken( {
`
	got := scanRustLines("src/main.rs", []byte(src), newMatcher(deps("serde", "tokio", "serde-json", "log", "regex")))

	want := []Match{
		{Dependency: "serde", Site: Site{File: "src/main.rs", Line: 1, Symbol: "serde", Kind: Import}},
		{Dependency: "tokio", Site: Site{File: "src/main.rs", Line: 2, Symbol: "tokio::sync::mpsc", Kind: Import}},
		{Dependency: "serde-json", Site: Site{File: "src/main.rs", Line: 3, Symbol: "serde_json", Kind: Import}},
		{Dependency: "log", Site: Site{File: "src/main.rs", Line: 4, Symbol: "log", Kind: Import}},
		{Dependency: "regex", Site: Site{File: "src/main.rs", Line: 6, Symbol: "regex::Regex", Kind: Import}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("matches mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestScanJSLines(t *testing.T) {
	src := `import React from 'react';
import { map } from "lodash/fp";
const pad = require('left-pad');
import './styles.css';
export * from '@scope/ui/button';
const lazy = () => import("react-dom/client");
import fs from 'node:fs';
`
	got := scanJSLines("src/index.ts", []byte(src), newMatcher(deps("react", "lodash", "@scope/ui", "react-dom", "jest")))

	want := []Match{
		{Dependency: "react", Site: Site{File: "src/index.ts", Line: 1, Symbol: "react", Kind: Import}},
		{Dependency: "lodash", Site: Site{File: "src/index.ts", Line: 2, Symbol: "lodash/fp", Kind: Import}},
		{Dependency: "@scope/ui", Site: Site{File: "src/index.ts", Line: 5, Symbol: "@scope/ui/button", Kind: Import}},
		{Dependency: "react-dom", Site: Site{File: "src/index.ts", Line: 6, Symbol: "react-dom/client", Kind: Import}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("matches mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestScanJSLines_MultiLine(t *testing.T) {
	src := `import {
  debounce,
  throttle,
} from 'lodash';
import React, {
  useState,
} from "react";
export {
  Button,
} from '@scope/ui';
import type {
  Options,
} from 'left-pad'
const x = require(
  'chalk'
);
`
	got := scanJSLines("src/a.ts", []byte(src), newMatcher(deps("lodash", "react", "@scope/ui", "left-pad", "chalk")))

	want := []Match{
		{Dependency: "lodash", Site: Site{File: "src/a.ts", Line: 1, Symbol: "lodash", Kind: Import}},
		{Dependency: "react", Site: Site{File: "src/a.ts", Line: 5, Symbol: "react", Kind: Import}},
		{Dependency: "@scope/ui", Site: Site{File: "src/a.ts", Line: 8, Symbol: "@scope/ui", Kind: Import}},
		{Dependency: "left-pad", Site: Site{File: "src/a.ts", Line: 11, Symbol: "left-pad", Kind: Import}},
		{Dependency: "chalk", Site: Site{File: "src/a.ts", Line: 14, Symbol: "chalk", Kind: Import}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("matches mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestScanJSLines_StatementsStayApart(t *testing.T) {
	// A side-effect import must not swallow the next statement's specifier
	src := "import './polyfill'\nimport { map } from 'lodash'\n"
	got := scanJSLines("src/b.js", []byte(src), newMatcher(deps("lodash")))

	want := []Match{
		{Dependency: "lodash", Site: Site{File: "src/b.js", Line: 2, Symbol: "lodash", Kind: Import}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("matches mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestPackageName(t *testing.T) {
	tests := map[string]string{
		"react":            "react",
		"lodash/fp":        "lodash",
		"@scope/pkg":       "@scope/pkg",
		"@scope/pkg/deep":  "@scope/pkg",
		"@scope":           "",
		"./local":          "",
		"../up":            "",
		"/abs/path":        "",
		"node:fs":          "",
		"":                 "",
	}

	for specifier, want := range tests {
		if got := packageName(specifier); got != want {
			t.Errorf("packageName(%q) = %q, want %q", specifier, got, want)
		}
	}
}

func TestMatcher(t *testing.T) {
	m := newMatcher(deps("serde-json", "log", "logos", "tokio"))

	resolveTests := []struct {
		segment string
		want    string
		ok      bool
	}{
		{"serde-json", "serde-json", true},
		{"serde_json", "serde-json", true},
		{"logos", "logos", true},
		{"serde", "", false},
	}
	for _, tt := range resolveTests {
		got, ok := m.resolve(tt.segment)
		if got != tt.want || ok != tt.ok {
			t.Errorf("resolve(%q) = %q, %v", tt.segment, got, ok)
		}
	}

	macroTests := []struct {
		segment string
		want    string
		ok      bool
	}{
		{"logos", "logos", true},     // exact beats an earlier substring match
		{"logos_derive", "log", true}, // first declared substring wins
		{"tokio_test", "tokio", true},
		{"serde_json", "serde-json", true},
		{"println", "", false},
	}
	for _, tt := range macroTests {
		got, ok := m.matchMacro(tt.segment)
		if got != tt.want || ok != tt.ok {
			t.Errorf("matchMacro(%q) = %q, %v, want %q", tt.segment, got, ok, tt.want)
		}
	}
}

func TestMatcher_Fingerprint(t *testing.T) {
	rust := ProfileFor(manifest.KindCargo)

	a := newMatcher(deps("a", "b")).fingerprint(rust)
	if a != newMatcher(deps("a", "b")).fingerprint(rust) {
		t.Error("fingerprint is not stable")
	}
	if a == newMatcher(deps("b", "a")).fingerprint(rust) {
		t.Error("fingerprint ignores declaration order")
	}
	if a == newMatcher(deps("a", "b")).fingerprint(ProfileFor(manifest.KindNPM)) {
		t.Error("fingerprint ignores the profile")
	}

	// Line-only results must not be served to a tree-sitter build
	m := newMatcher(deps("a", "b"))
	if m.fingerprintFor(rust, true) == m.fingerprintFor(rust, false) {
		t.Error("fingerprint ignores syntax availability")
	}
	if a != m.fingerprintFor(rust, SyntaxAvailable()) {
		t.Error("fingerprint does not reflect this build's scan mode")
	}
}

func TestIndex(t *testing.T) {
	ix := NewIndex(deps("a", "b"))

	if !ix.Has("a") || ix.Sites("a") == nil || len(ix.Sites("a")) != 0 {
		t.Errorf("declared dependency should have an empty, non-nil entry: %#v", ix.Sites("a"))
	}
	if ix.Has("c") {
		t.Error("undeclared dependency should not be a key")
	}

	ix.Add("a", Site{File: "x.rs", Line: 1, Symbol: "a::f", Kind: FunctionCall})
	ix.Add("a", Site{File: "y.rs", Line: 2, Symbol: "a::g", Kind: FunctionCall})

	if got := ix.Sites("a"); len(got) != 2 || got[0].File != "x.rs" || got[1].File != "y.rs" {
		t.Errorf("sites not kept in insertion order: %+v", got)
	}
	if ix.Total() != 2 {
		t.Errorf("Total = %d, want 2", ix.Total())
	}
	if !reflect.DeepEqual(ix.Names(), []string{"a", "b"}) {
		t.Errorf("Names = %v", ix.Names())
	}
}

func TestExcluder(t *testing.T) {
	ex := newExcluder([]string{"**/target/**", "gen/**", "**/*_generated.rs", "[bad"})

	dirTests := []struct {
		rel  string
		want bool
	}{
		{"target", true},
		{"crates/core/target", true},
		{".git", true},
		{"node_modules", true},
		{"gen", true},
		{"src", false},
		{"src/gen", false},
	}
	for _, tt := range dirTests {
		name := tt.rel[lastSlash(tt.rel)+1:]
		if got := ex.skipDir(tt.rel, name); got != tt.want {
			t.Errorf("skipDir(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}

	fileTests := []struct {
		rel  string
		want bool
	}{
		{"src/lib.rs", false},
		{"src/schema_generated.rs", true},
		{"crates/core/target/debug/build.rs", true},
	}
	for _, tt := range fileTests {
		if got := ex.skipFile(tt.rel); got != tt.want {
			t.Errorf("skipFile(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
