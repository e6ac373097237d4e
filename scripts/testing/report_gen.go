// Copyright 2026 The EHSAdmin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command report_gen merges "go test -json" output with the annotation
// block above each test (TestPurpose, Scope, Security, Expected, Test Case
// ID) and writes JSON, Markdown and optional workbook reports.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const modulePath = "github.com/greenledger/ehsadmin"

// Annotation is the metadata parsed from a test's doc comment.
type Annotation struct {
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Category   string `json:"category"`
	Kind       string `json:"kind"` // UT or the tests/ subdirectory, upper-cased
}

// Result is one test with its outcome.
type Result struct {
	Package     string     `json:"package"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Elapsed     float64    `json:"elapsed_seconds"`
	Output      string     `json:"failure_output,omitempty"`
	Annotations Annotation `json:"annotations"`
}

// Summary is the whole report.
type Summary struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	NotRun      int       `json:"not_run"`
	Results     []Result  `json:"results"`
}

type testEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

var annotationFields = map[string]func(*Annotation, string){
	"TestPurpose:":  func(a *Annotation, v string) { a.Purpose = v },
	"Scope:":        func(a *Annotation, v string) { a.Scope = v },
	"Security:":     func(a *Annotation, v string) { a.Security = v },
	"Expected:":     func(a *Annotation, v string) { a.Expected = v },
	"Test Case ID:": func(a *Annotation, v string) { a.TestCaseID = v },
}

func main() {
	input := flag.String("input", "", "go test -json output")
	outJSON := flag.String("out-json", "", "JSON report path")
	outMD := flag.String("out-md", "", "Markdown report path")
	outXLSX := flag.String("out-xlsx", "", "workbook report path")
	root := flag.String("root", ".", "repository root to scan for annotations")
	title := flag.String("title", "Test Report", "report title")
	kind := flag.String("kind", "", "only include tests of this kind (UT, E2E)")
	flag.Parse()

	if *input == "" || *outJSON == "" || *outMD == "" {
		fmt.Fprintln(os.Stderr, "usage: report_gen -input <go-test.json> -out-json <file> -out-md <file> [-out-xlsx <file>]")
		os.Exit(2)
	}

	annotations, err := scanAnnotations(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Open(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	results, err := mergeEvents(f, annotations)
	_ = f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse: %v\n", err)
		os.Exit(1)
	}
	if *kind != "" {
		results = filterKind(results, *kind)
	}

	s := summarize(*title, results)
	if err := writeReports(s, *outJSON, *outMD, *outXLSX); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d tests: %d passed, %d failed, %d skipped, %d not run\n", s.Total, s.Passed, s.Failed, s.Skipped, s.NotRun)
	if s.Failed > 0 {
		os.Exit(1)
	}
}

// scanAnnotations parses every _test.go file under root and returns the
// annotations of its top-level tests keyed by "importpath.TestName".
func scanAnnotations(root string) (map[string]Annotation, error) {
	out := make(map[string]Annotation)
	fset := token.NewFileSet()
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); p != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(p, "_test.go") {
			return nil
		}
		file, err := parser.ParseFile(fset, p, nil, parser.ParseComments)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		pkg := importPath(rel)
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			out[pkg+"."+fn.Name.Name] = parseDoc(pkg, fn.Doc)
		}
		return nil
	})
	return out, err
}

func importPath(rel string) string {
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return modulePath
	}
	return path.Join(modulePath, rel)
}

func parseDoc(pkg string, doc *ast.CommentGroup) Annotation {
	a := Annotation{Category: category(pkg), Kind: kind(pkg)}
	if doc == nil {
		return a
	}
	for _, c := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		for prefix, set := range annotationFields {
			if v, ok := strings.CutPrefix(text, prefix); ok {
				set(&a, strings.TrimSpace(v))
			}
		}
	}
	return a
}

func kind(pkg string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(pkg, modulePath), "/")
	if after, ok := strings.CutPrefix(rel, "tests/"); ok {
		sub, _, _ := strings.Cut(after, "/")
		return strings.ToUpper(sub)
	}
	return "UT"
}

var categories = []struct{ fragment, name string }{
	{"internal/permission", "Permissions"},
	{"internal/guard", "Route Guard"},
	{"internal/editor", "Role Editor"},
	{"internal/authz", "Roles"},
	{"internal/identity", "Identity"},
	{"internal/session", "Sessions"},
	{"internal/audit", "Audit"},
	{"internal/export", "Export"},
	{"internal/client", "API Client"},
	{"internal/transport/http", "HTTP API"},
	{"internal/store", "Storage"},
	{"internal/observability", "Observability"},
	{"internal/config", "Config"},
	{"cmd/", "Commands"},
}

func category(pkg string) string {
	for _, c := range categories {
		if strings.Contains(pkg, c.fragment) {
			return c.name
		}
	}
	if k := kind(pkg); k != "UT" {
		return k
	}
	return "Other"
}

// mergeEvents folds a go test -json stream into per-test results. Known
// tests that never appear in the stream are reported as "not run";
// subtests inherit their parent's annotations.
func mergeEvents(r io.Reader, annotations map[string]Annotation) ([]Result, error) {
	byKey := make(map[string]*Result, len(annotations))
	for key, a := range annotations {
		i := strings.LastIndex(key, ".")
		byKey[key] = &Result{Package: key[:i], Name: key[i+1:], Status: "not run", Annotations: a}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var ev testEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}
		key := ev.Package + "." + ev.Test
		res, ok := byKey[key]
		if !ok {
			parent, _, _ := strings.Cut(ev.Test, "/")
			a, found := annotations[ev.Package+"."+parent]
			if !found {
				a = Annotation{Category: category(ev.Package), Kind: kind(ev.Package)}
			}
			res = &Result{Package: ev.Package, Name: ev.Test, Status: "not run", Annotations: a}
			byKey[key] = res
		}
		switch ev.Action {
		case "run":
			res.Status = "running"
		case "pass", "fail", "skip":
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case "output":
			res.Output += ev.Output
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(byKey))
	for _, res := range byKey {
		if res.Status != "fail" {
			res.Output = ""
		}
		results = append(results, *res)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Package != results[j].Package {
			return results[i].Package < results[j].Package
		}
		return results[i].Name < results[j].Name
	})
	return results, nil
}

func filterKind(results []Result, k string) []Result {
	out := results[:0]
	for _, r := range results {
		if strings.EqualFold(r.Annotations.Kind, k) {
			out = append(out, r)
		}
	}
	return out
}

func summarize(title string, results []Result) Summary {
	s := Summary{Title: title, GeneratedAt: time.Now().UTC(), Results: results}
	for _, r := range results {
		s.Total++
		switch r.Status {
		case "pass":
			s.Passed++
		case "fail":
			s.Failed++
		case "skip":
			s.Skipped++
		default:
			s.NotRun++
		}
	}
	return s
}

func writeReports(s Summary, jsonPath, mdPath, xlsxPath string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(jsonPath, data); err != nil {
		return err
	}
	if err := writeFile(mdPath, []byte(markdown(s))); err != nil {
		return err
	}
	if xlsxPath == "" {
		return nil
	}
	wb, err := workbook(s)
	if err != nil {
		return err
	}
	defer wb.Close()
	if err := os.MkdirAll(filepath.Dir(xlsxPath), 0o755); err != nil {
		return err
	}
	return wb.SaveAs(xlsxPath)
}

func writeFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func markdown(s Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# EHS Admin %s\n\n", s.Title)
	fmt.Fprintf(&sb, "Generated %s\n\n", s.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "| Total | Passed | Failed | Skipped | Not run |\n|---|---|---|---|---|\n| %d | %d | %d | %d | %d |\n\n",
		s.Total, s.Passed, s.Failed, s.Skipped, s.NotRun)

	byCategory := map[string][]Result{}
	var names []string
	for _, r := range s.Results {
		c := r.Annotations.Category
		if _, ok := byCategory[c]; !ok {
			names = append(names, c)
		}
		byCategory[c] = append(byCategory[c], r)
	}
	sort.Strings(names)

	for _, c := range names {
		fmt.Fprintf(&sb, "## %s\n\n| ID | Test | Status | Purpose | Expected |\n|---|---|---|---|---|\n", c)
		for _, r := range byCategory[c] {
			fmt.Fprintf(&sb, "| %s | `%s` | %s | %s | %s |\n",
				cell(r.Annotations.TestCaseID), r.Name, r.Status,
				cell(r.Annotations.Purpose), cell(r.Annotations.Expected))
		}
		sb.WriteString("\n")
	}

	if s.Failed > 0 {
		sb.WriteString("## Failures\n\n")
		for _, r := range s.Results {
			if r.Status == "fail" {
				fmt.Fprintf(&sb, "### %s.%s\n\n```\n%s```\n\n", r.Package, r.Name, r.Output)
			}
		}
	}
	return sb.String()
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}

var workbookColumns = []string{"Category", "Kind", "Test Case ID", "Package", "Test", "Status", "Elapsed (s)", "Purpose", "Scope", "Security", "Expected"}

func workbook(s Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Results"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &workbookColumns); err != nil {
		return nil, err
	}
	for i, r := range s.Results {
		row := []any{
			r.Annotations.Category, r.Annotations.Kind, r.Annotations.TestCaseID,
			strings.TrimPrefix(r.Package, modulePath+"/"), r.Name, r.Status, r.Elapsed,
			r.Annotations.Purpose, r.Annotations.Scope, r.Annotations.Security, r.Annotations.Expected,
		}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, addr, &row); err != nil {
			return nil, err
		}
	}
	if err := f.AutoFilter(sheet, fmt.Sprintf("A1:K%d", len(s.Results)+1), nil); err != nil {
		return nil, err
	}
	return f, nil
}
