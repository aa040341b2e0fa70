package export

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"why/internal/analyzer"
	"why/internal/manifest"
	"why/internal/testutil"
	"why/internal/usage"
)

const fixtureRoot = "/work/app"

func fixtureView() *analyzer.Analysis {
	return &analyzer.Analysis{
		RunID:        "run-1",
		ProjectRoot:  fixtureRoot,
		ManifestPath: fixtureRoot + "/Cargo.toml",
		Rows: []analyzer.Row{
			{
				Name: "serde", Version: "1.0", Class: manifest.Runtime,
				Used: true, FileCount: 3, SiteCount: 7, ImportanceScore: 0.5,
				UsedFeatures: []string{"derive"}, UnusedFeatures: []string{},
				KindCounts: map[usage.Kind]int{usage.Import: 3, usage.TypeReference: 4},
			},
			{
				Name: "rand", Version: "0.8", Class: manifest.Runtime, Optional: true,
				Removable: true, PartiallyUsed: true,
				UsedFeatures: []string{}, UnusedFeatures: []string{"std", "small_rng"},
				KindCounts: map[usage.Kind]int{},
			},
			{
				Name: "proptest", Version: "1", Class: manifest.Development,
				Used: true, FileCount: 1, SiteCount: 2, ImportanceScore: 0.25,
				UsedFeatures: []string{}, UnusedFeatures: []string{},
				KindCounts: map[usage.Kind]int{usage.Import: 2},
			},
		},
		Removable: []string{"rand"},
		Cycles:    [][]string{},
		Warnings: []usage.Warning{
			{Code: usage.WarnParseFallback, File: "src/broken.rs", Message: "syntax errors, used line heuristic"},
		},
	}
}

func fixedExporter() *Exporter {
	e := NewExporter(nil)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestGolden_Document(t *testing.T) {
	doc := fixedExporter().Build(fixtureView(), Options{})
	testutil.CompareGolden(t, "document", fixtureRoot, doc)
}

func TestBuild_Metadata(t *testing.T) {
	doc := fixedExporter().Build(fixtureView(), Options{})

	if doc.Metadata.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", doc.Metadata.Timestamp)
	}
	if doc.Metadata.RunID != "run-1" {
		t.Errorf("RunID = %q", doc.Metadata.RunID)
	}
	if doc.Metadata.Dependencies != 3 || doc.Metadata.Used != 2 || doc.Metadata.Removable != 1 {
		t.Errorf("Metadata = %+v", doc.Metadata)
	}
}

func TestBuild_SortAndFilter(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"manifest order", Options{}, []string{"serde", "rand", "proptest"}},
		{"by importance", Options{Sort: analyzer.SortByImportance}, []string{"serde", "proptest", "rand"}},
		{"by name", Options{Sort: analyzer.SortByName}, []string{"proptest", "rand", "serde"}},
		{"removable only", Options{Filter: analyzer.FilterRemovable}, []string{"rand"}},
		{"runtime by usage", Options{Filter: analyzer.FilterRuntime, Sort: analyzer.SortByUsage}, []string{"serde", "rand"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := fixtureView()
			doc := fixedExporter().Build(view, tt.opts)

			var got []string
			for _, r := range doc.Rows {
				got = append(got, r.Name)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("rows = %v, want %v", got, tt.want)
			}

			// Class summaries and counts always cover the whole view
			if doc.Metadata.Dependencies != 3 || len(doc.Classes) != 2 {
				t.Errorf("metadata = %+v, classes = %+v", doc.Metadata, doc.Classes)
			}
			if view.Rows[0].Name != "serde" {
				t.Error("Build reordered the caller's rows")
			}
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := fixedExporter().Write(&buf, fixtureView(), Options{Format: FormatCSV}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := strings.Join([]string{
		"name,version,class,optional,used,file_count,site_count,importance_score,removable,partially_used,used_features,unused_features",
		"serde,1.0,runtime,false,true,3,7,0.5000,false,false,derive,",
		"rand,0.8,runtime,true,false,0,0,0.0000,true,true,,std;small_rng",
		"proptest,1,development,false,true,1,2,0.2500,false,false,,",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("CSV =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := fixedExporter().Write(&buf, fixtureView(), Options{Format: FormatYAML}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "metadata:\n") {
		t.Errorf("YAML should start with metadata, got:\n%s", buf.String())
	}

	var doc Document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("YAML does not decode: %v", err)
	}
	if len(doc.Rows) != 3 || doc.Rows[1].Name != "rand" {
		t.Fatalf("rows = %+v", doc.Rows)
	}
	if !reflect.DeepEqual(doc.Rows[1].UnusedFeatures, []string{"std", "small_rng"}) {
		t.Errorf("UnusedFeatures = %v", doc.Rows[1].UnusedFeatures)
	}
	if doc.Rows[0].KindCounts[usage.TypeReference] != 4 {
		t.Errorf("KindCounts = %v", doc.Rows[0].KindCounts)
	}
	if doc.Warnings[0].Code != usage.WarnParseFallback {
		t.Errorf("Warnings = %+v", doc.Warnings)
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := NewExporter(nil).Write(&buf, fixtureView(), Options{Format: "xml"}); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestWriteFile_DetectsFormat(t *testing.T) {
	tests := []struct {
		file   string
		prefix string
	}{
		{"report.json", "{\n"},
		{"nested/dir/report.yml", "metadata:\n"},
		{"report.csv", "name,version,"},
		{"report.out", "{\n"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := NewExporter(nil).WriteFile(path, fixtureView(), Options{}); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if !strings.HasPrefix(string(data), tt.prefix) {
				t.Errorf("%s starts with %q, want %q", tt.file, string(data[:min(len(data), 20)]), tt.prefix)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"CSV", FormatCSV, false},
		{"yml", FormatYAML, false},
		{" yaml ", FormatYAML, false},
		{"toml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOrganize(t *testing.T) {
	rows := []analyzer.Row{
		{Name: "cc", Class: manifest.BuildTime, Used: true, ImportanceScore: 0.1, Removable: true},
		{Name: "a", Class: manifest.Runtime, Used: true, ImportanceScore: 0.3},
		{Name: "b", Class: manifest.Runtime, Used: true, ImportanceScore: 0.9},
		{Name: "c", Class: manifest.Runtime, Used: true, ImportanceScore: 0.6},
		{Name: "d", Class: manifest.Runtime, Used: true, ImportanceScore: 0.7},
		{Name: "e", Class: manifest.Runtime},
	}

	got := NewOrganizer(rows).Organize()
	want := []ClassSummary{
		{Class: manifest.Runtime, Dependencies: 5, Used: 4, Removable: 0, Top: []string{"b", "d", "c"}},
		{Class: manifest.BuildTime, Dependencies: 1, Used: 1, Removable: 1, Top: []string{"cc"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Organize() = %+v, want %+v", got, want)
	}
	if rows[0].Name != "cc" || rows[1].Name != "a" {
		t.Error("Organize reordered its input")
	}
}

func TestOrganize_Empty(t *testing.T) {
	if got := NewOrganizer(nil).Organize(); len(got) != 0 {
		t.Errorf("Organize() = %+v, want empty", got)
	}
}
