package metrics

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	whyerrors "why/internal/errors"
	"why/internal/manifest"
	"why/internal/testutil"
	"why/internal/usage"
)

const epsilon = 1e-9

func record(name string, class manifest.Class, optional bool, features ...string) manifest.DependencyRecord {
	return manifest.DependencyRecord{Name: name, Class: class, Optional: optional, Features: features}
}

// sitesAcross spreads sites of the given kinds over files distinct files.
func sitesAcross(files int, kinds map[usage.Kind]int) []usage.Site {
	var sites []usage.Site
	i := 0
	for _, k := range usage.ScoredKinds {
		for n := 0; n < kinds[k]; n++ {
			sites = append(sites, usage.Site{
				File:   fmt.Sprintf("src/f%02d.rs", i%files),
				Line:   i + 1,
				Symbol: "dep::item",
				Kind:   k,
			})
			i++
		}
	}
	return sites
}

func TestCompute_UnusedScoresZero(t *testing.T) {
	records := []manifest.DependencyRecord{
		record("dep-x", manifest.Runtime, false),
		record("dep-opt", manifest.Development, true, "a"),
	}
	index := usage.NewIndex(records)

	report, err := Compute(records, index, DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	for _, r := range records {
		m := report.Get(r.Name)
		if m.IsUsed {
			t.Errorf("%s: IsUsed = true", r.Name)
		}
		if m.ImportanceScore != 0.0 {
			t.Errorf("%s: ImportanceScore = %v, want exactly 0", r.Name, m.ImportanceScore)
		}
		if !m.Removable {
			t.Errorf("%s: unused dependency should be removable", r.Name)
		}
	}
	if !reflect.DeepEqual(report.Removable, []string{"dep-x", "dep-opt"}) {
		t.Errorf("Removable = %v", report.Removable)
	}
}

// Scenario A
func TestCompute_UnusedRuntimeDependency(t *testing.T) {
	records := []manifest.DependencyRecord{record("dep-x", manifest.Runtime, false)}

	report, err := Compute(records, usage.NewIndex(records), DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	m := report.Get("dep-x")
	if m.IsUsed || m.ImportanceScore != 0.0 || !report.IsRemovable("dep-x") {
		t.Errorf("dep-x metrics = %+v", m)
	}
}

// Scenario B
func TestCompute_FeatureFullyUsed(t *testing.T) {
	records := []manifest.DependencyRecord{record("dep-y", manifest.Runtime, false, "async")}
	index := usage.NewIndex(records)
	index.Add("dep-y", usage.Site{File: "src/main.rs", Line: 1, Symbol: "dep_y", Kind: usage.Import})
	index.Add("dep-y", usage.Site{File: "src/main.rs", Line: 4, Symbol: "dep_y::run_async", Kind: usage.FunctionCall})

	report, err := Compute(records, index, DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	m := report.Get("dep-y")
	if !m.FeatureUsage["async"] {
		t.Error(`FeatureUsage["async"] = false, want true`)
	}
	if m.PartiallyUsed {
		t.Error("PartiallyUsed = true, want false")
	}
}

// Scenario C
func TestCompute_FeaturePartiallyUsed(t *testing.T) {
	rec := record("dep-z", manifest.Runtime, false, "a", "b")
	records := []manifest.DependencyRecord{rec}
	index := usage.NewIndex(records)
	index.Add("dep-z", usage.Site{File: "src/lib.rs", Line: 2, Symbol: "dep_z::call", Kind: usage.FunctionCall})

	report, err := Compute(records, index, DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	m := report.Get("dep-z")
	want := map[string]bool{"a": true, "b": false}
	if !reflect.DeepEqual(m.FeatureUsage, want) {
		t.Errorf("FeatureUsage = %v, want %v", m.FeatureUsage, want)
	}
	if !m.PartiallyUsed {
		t.Error("PartiallyUsed = false, want true")
	}
	if !reflect.DeepEqual(m.UsedFeatures(rec), []string{"a"}) || !reflect.DeepEqual(m.UnusedFeatures(rec), []string{"b"}) {
		t.Errorf("used/unused features = %v / %v", m.UsedFeatures(rec), m.UnusedFeatures(rec))
	}
}

// Scenario E
func TestGolden_SaturatedScores(t *testing.T) {
	type goldenCase struct {
		Name     string             `json:"name"`
		Class    manifest.Class     `json:"class"`
		Optional bool               `json:"optional"`
		Files    int                `json:"files"`
		Kinds    map[usage.Kind]int `json:"kinds"`
		Factors  Factors            `json:"factors"`
		Score    float64            `json:"score"`
	}
	var golden struct {
		Cases []goldenCase `json:"cases"`
	}
	testutil.LoadGolden(t, "scenario_e", &golden)
	if len(golden.Cases) == 0 {
		t.Fatal("golden file has no cases")
	}

	for i, gc := range golden.Cases {
		t.Run(gc.Name, func(t *testing.T) {
			rec := record("dep", gc.Class, gc.Optional)
			m := ForDependency(rec, sitesAcross(gc.Files, gc.Kinds), DefaultThresholds())

			if m.FileCount != gc.Files {
				t.Fatalf("FileCount = %d, want %d", m.FileCount, gc.Files)
			}
			// 25 files and all five kinds saturate base and variety
			if m.Factors.Base != 1.0 || m.Factors.Variety != 1.0 {
				t.Errorf("base=%v variety=%v, want 1.0 and 1.0", m.Factors.Base, m.Factors.Variety)
			}

			formula := math.Min(1.0, 1.0*2.0*(1+m.Factors.Depth)*ClassFactor(gc.Class)*m.Factors.Optional)
			if math.Abs(m.ImportanceScore-formula) > epsilon {
				t.Errorf("score %v does not follow the formula (%v)", m.ImportanceScore, formula)
			}

			if testutil.ShouldUpdate() {
				golden.Cases[i].Factors = m.Factors
				golden.Cases[i].Score = m.ImportanceScore
				return
			}
			if math.Abs(m.Factors.Depth-gc.Factors.Depth) > epsilon {
				t.Errorf("depth = %v, golden %v", m.Factors.Depth, gc.Factors.Depth)
			}
			if math.Abs(m.ImportanceScore-gc.Score) > epsilon {
				t.Errorf("score = %v, golden %v", m.ImportanceScore, gc.Score)
			}
		})
	}

	testutil.WriteGolden(t, "scenario_e", golden)
}

func TestImportance_MonotonicInFileCount(t *testing.T) {
	classes := []manifest.Class{manifest.Runtime, manifest.Development, manifest.BuildTime}
	kinds := map[usage.Kind]int{usage.Import: 1, usage.FunctionCall: 3}

	for _, class := range classes {
		for _, optional := range []bool{false, true} {
			rec := record("dep", class, optional)
			prev := -1.0
			for files := 1; files <= 30; files++ {
				score := ComputeFactors(rec, files, kinds).Score()
				if score < prev {
					t.Fatalf("%s optional=%v: score dropped from %v to %v at %d files", class, optional, prev, score, files)
				}
				if score < 0 || score > 1 {
					t.Fatalf("score %v out of [0,1]", score)
				}
				prev = score
			}
		}
	}
}

func TestFileCountNeverExceedsSites(t *testing.T) {
	sites := []usage.Site{
		{File: "a.rs", Kind: usage.Import},
		{File: "a.rs", Kind: usage.FunctionCall},
		{File: "b.rs", Kind: usage.FunctionCall},
		{File: "a.rs", Kind: usage.MacroInvocation},
	}
	for n := 0; n <= len(sites); n++ {
		m := ForDependency(record("dep", manifest.Runtime, false), sites[:n], DefaultThresholds())
		if m.FileCount > m.SiteCount {
			t.Errorf("n=%d: FileCount %d > SiteCount %d", n, m.FileCount, m.SiteCount)
		}
	}
}

func TestComputeFactors(t *testing.T) {
	tests := []struct {
		name  string
		rec   manifest.DependencyRecord
		files int
		kinds map[usage.Kind]int
		want  Factors
		score float64
	}{
		{
			name:  "single import",
			rec:   record("d", manifest.Runtime, false),
			files: 1,
			kinds: map[usage.Kind]int{usage.Import: 1},
			want:  Factors{Base: 0.05, Variety: 0.2, Depth: 0.1, Class: 1, Optional: 1},
			score: 0.05 * 1.2 * 1.1,
		},
		{
			name:  "other kind adds no variety",
			rec:   record("d", manifest.BuildTime, false),
			files: 2,
			kinds: map[usage.Kind]int{usage.Other: 4},
			want:  Factors{Base: 0.1, Variety: 0, Depth: 0, Class: 0.7, Optional: 1},
			score: 0.1 * 0.7,
		},
		{
			name:  "capped counts",
			rec:   record("d", manifest.Runtime, true),
			files: 40,
			kinds: map[usage.Kind]int{usage.FunctionCall: 50, usage.TypeReference: 3},
			want:  Factors{Base: 1, Variety: 0.4, Depth: 0.3 + 0.09, Class: 1, Optional: 0.7},
			score: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFactors(tt.rec, tt.files, tt.kinds)
			if math.Abs(got.Base-tt.want.Base) > epsilon ||
				math.Abs(got.Variety-tt.want.Variety) > epsilon ||
				math.Abs(got.Depth-tt.want.Depth) > epsilon ||
				got.Class != tt.want.Class || got.Optional != tt.want.Optional {
				t.Errorf("factors = %+v, want %+v", got, tt.want)
			}
			if math.Abs(got.Score()-tt.score) > epsilon {
				t.Errorf("score = %v, want %v", got.Score(), tt.score)
			}
		})
	}
}

func TestRemovable(t *testing.T) {
	low := usage.Site{File: "a.rs", Symbol: "d::x", Kind: usage.Import}

	tests := []struct {
		name string
		rec  manifest.DependencyRecord
		want bool
	}{
		// 0.05 * 1.2 * 1.1 = 0.066 < 0.1
		{"low importance", record("d", manifest.Runtime, false), true},
		// same score, partial as well
		{"partial and low", record("d", manifest.Runtime, false, "zzz"), true},
	}
	for _, tt := range tests {
		m := ForDependency(tt.rec, []usage.Site{low}, DefaultThresholds())
		if m.Removable != tt.want {
			t.Errorf("%s: Removable = %v (score %v)", tt.name, m.Removable, m.ImportanceScore)
		}
	}

	// 4 files, import + function calls: 0.2 * 1.4 * (1 + 0.1 + 0.12) = 0.3416
	var sites []usage.Site
	for i := 0; i < 4; i++ {
		sites = append(sites,
			usage.Site{File: fmt.Sprintf("f%d.rs", i), Symbol: "d", Kind: usage.Import},
			usage.Site{File: fmt.Sprintf("f%d.rs", i), Symbol: "d::call", Kind: usage.FunctionCall},
		)
	}
	healthy := ForDependency(record("d", manifest.Runtime, false), sites, DefaultThresholds())
	if healthy.Removable {
		t.Errorf("score %v above both thresholds should not be removable", healthy.ImportanceScore)
	}

	// Development halves it to 0.1708: above 0.1, below 0.3
	dev := ForDependency(record("d", manifest.Development, false, "unused"), sites, DefaultThresholds())
	if !dev.PartiallyUsed || !dev.Removable {
		t.Errorf("partially used dependency scoring %v should be removable", dev.ImportanceScore)
	}
	devFull := ForDependency(record("d", manifest.Development, false, "call"), sites, DefaultThresholds())
	if devFull.PartiallyUsed || devFull.Removable {
		t.Errorf("fully used dependency scoring %v should be kept", devFull.ImportanceScore)
	}

	// Thresholds are configuration
	strict := ForDependency(record("d", manifest.Runtime, false), sites, Thresholds{LowImportance: 0.5})
	if !strict.Removable {
		t.Error("custom LowImportance threshold ignored")
	}
}

func TestCompute_UndeclaredIndexKey(t *testing.T) {
	records := []manifest.DependencyRecord{record("a", manifest.Runtime, false)}
	index := usage.NewIndex(records)
	index.Add("ghost", usage.Site{File: "x.rs", Kind: usage.Import})

	_, err := Compute(records, index, DefaultThresholds())
	if !whyerrors.IsCode(err, whyerrors.InternalError) {
		t.Fatalf("Expected INTERNAL_ERROR, got %v", err)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	records := []manifest.DependencyRecord{
		record("a", manifest.Runtime, false, "x"),
		record("b", manifest.Development, true),
	}
	index := usage.NewIndex(records)
	index.Add("a", usage.Site{File: "1.rs", Symbol: "a::x", Kind: usage.FunctionCall})
	index.Add("b", usage.Site{File: "2.rs", Symbol: "b::T", Kind: usage.TraitOrInterfaceReference})

	first, err := Compute(records, index, DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	second, _ := Compute(records, index, DefaultThresholds())
	if !reflect.DeepEqual(first, second) {
		t.Error("Compute is not deterministic")
	}
}

func TestReport_GetUnknown(t *testing.T) {
	r := &Report{ByName: map[string]DependencyMetrics{}}
	m := r.Get("missing")
	if m.IsUsed || m.ImportanceScore != 0 || m.KindCounts != nil {
		t.Errorf("Get(missing) = %+v, want zero value", m)
	}
}
