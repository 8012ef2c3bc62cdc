package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pdflabels/internal/model"
	"github.com/cucumber/godog"
)

// coordinateTolerance is the accepted difference between expected and
// written coordinates.
const coordinateTolerance = 1e-6

func (testCtx *TestContext) readResultFile() ([]byte, error) {
	data, err := os.ReadFile(testCtx.WorkPath(testCtx.ResultFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read result file %s: %w", testCtx.ResultFile, err)
	}
	return data, nil
}

func (testCtx *TestContext) results() ([]model.FileResult, error) {
	data, err := testCtx.readResultFile()
	if err != nil {
		return nil, err
	}
	var results []model.FileResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("result file is not a JSON array of files: %w\nContent: %s", err, data)
	}
	return results, nil
}

func (testCtx *TestContext) fileResult(name string) (model.FileResult, error) {
	results, err := testCtx.results()
	if err != nil {
		return model.FileResult{}, err
	}
	for _, r := range results {
		if r.Filename == name {
			return r, nil
		}
	}
	return model.FileResult{}, fmt.Errorf("result does not contain %s", name)
}

func (testCtx *TestContext) pageResult(index int, name string) (model.PageResult, error) {
	r, err := testCtx.fileResult(name)
	if err != nil {
		return model.PageResult{}, err
	}
	if index < 0 || index >= len(r.Pages) {
		return model.PageResult{}, fmt.Errorf("%s has %d pages, no page %d", name, len(r.Pages), index)
	}
	return r.Pages[index], nil
}

// theResultFileIs selects the result file inspected by later steps.
func (testCtx *TestContext) theResultFileIs(name string) error {
	testCtx.ResultFile = name
	return nil
}

// theResultShouldBeAnEmptyArray verifies the literal "[]" output.
func (testCtx *TestContext) theResultShouldBeAnEmptyArray() error {
	data, err := testCtx.readResultFile()
	if err != nil {
		return err
	}
	if string(data) != "[]" {
		return fmt.Errorf("expected [], got %s", data)
	}
	return nil
}

// theResultShouldListFiles verifies the number of documents written.
func (testCtx *TestContext) theResultShouldListFiles(n int) error {
	results, err := testCtx.results()
	if err != nil {
		return err
	}
	if len(results) != n {
		return fmt.Errorf("expected %d files in the result, got %d", n, len(results))
	}
	return nil
}

// theResultShouldListTheFiles verifies the set of documents written, in any
// order.
func (testCtx *TestContext) theResultShouldListTheFiles(table *godog.Table) error {
	results, err := testCtx.results()
	if err != nil {
		return err
	}
	got := make([]string, 0, len(results))
	for _, r := range results {
		got = append(got, r.Filename)
	}
	want := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		want = append(want, row.Cells[0].Value)
	}
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return fmt.Errorf("expected files %v, got %v", want, got)
	}
	return nil
}

// fileShouldHavePages verifies the page count of a document.
func (testCtx *TestContext) fileShouldHavePages(name string, n int) error {
	r, err := testCtx.fileResult(name)
	if err != nil {
		return err
	}
	if len(r.Pages) != n {
		return fmt.Errorf("expected %d pages in %s, got %d", n, name, len(r.Pages))
	}
	for i, p := range r.Pages {
		if p.Index != i {
			return fmt.Errorf("page %d of %s has index %d", i, name, p.Index)
		}
	}
	return nil
}

// pageShouldHaveTheLabels compares the labels of a page with a table. The
// table header names the compared fields: text, fontname, fontsize and
// orientation.
func (testCtx *TestContext) pageShouldHaveTheLabels(index int, name string, table *godog.Table) error {
	page, err := testCtx.pageResult(index, name)
	if err != nil {
		return err
	}
	if len(table.Rows) < 1 {
		return fmt.Errorf("table needs a header row")
	}
	header := table.Rows[0].Cells
	rows := table.Rows[1:]
	if len(page.Labels) != len(rows) {
		return fmt.Errorf("expected %d labels on page %d of %s, got %d: %+v",
			len(rows), index, name, len(page.Labels), page.Labels)
	}

	for i, row := range rows {
		label := page.Labels[i]
		for j, cell := range row.Cells {
			field := header[j].Value
			var got string
			switch field {
			case "text":
				got = label.Text
			case "fontname":
				got = label.FontName
			case "fontsize":
				got = strconv.FormatFloat(label.FontSize, 'f', -1, 64)
			case "orientation":
				got = string(label.Orientation)
			default:
				return fmt.Errorf("unknown label field %q", field)
			}
			if got != cell.Value {
				return fmt.Errorf("label %d on page %d of %s: %s is %q, want %q", i, index, name, field, got, cell.Value)
			}
		}
	}
	return nil
}

// pageShouldHaveALabelAt verifies the bounding box of the label with the
// given text.
func (testCtx *TestContext) pageShouldHaveALabelAt(index int, name, text string, x0, y0, x1, y1 float64) error {
	page, err := testCtx.pageResult(index, name)
	if err != nil {
		return err
	}
	for _, l := range page.Labels {
		if l.Text != text {
			continue
		}
		want := []float64{x0, y0, x1, y1}
		got := []float64{l.X0, l.Y0, l.X1, l.Y1}
		for k := range want {
			if math.Abs(want[k]-got[k]) > coordinateTolerance {
				return fmt.Errorf("label %q is at %v, want %v", text, got, want)
			}
		}
		return nil
	}
	return fmt.Errorf("page %d of %s has no label %q", index, name, text)
}

// pageShouldMeasure verifies the page frame.
func (testCtx *TestContext) pageShouldMeasure(index int, name string, width, height float64) error {
	page, err := testCtx.pageResult(index, name)
	if err != nil {
		return err
	}
	b := page.BoundingBox
	if b.X0 != 0 || b.Y0 != 0 || math.Abs(b.X1-width) > coordinateTolerance || math.Abs(b.Y1-height) > coordinateTolerance {
		return fmt.Errorf("page %d of %s has bounding box %+v, want 0 0 %g %g", index, name, b, width, height)
	}
	return nil
}

// theResultShouldBeIndentedWith verifies the first key of the first element
// is indented by n spaces.
func (testCtx *TestContext) theResultShouldBeIndentedWith(n int) error {
	data, err := testCtx.readResultFile()
	if err != nil {
		return err
	}
	want := "[{\n" + strings.Repeat(" ", n) + `"filename": `
	if !strings.HasPrefix(string(data), want) {
		return fmt.Errorf("result does not start with %q\nContent: %s", want, data)
	}
	return nil
}

// theResultKeysShouldBeSorted verifies the keys of every object appear in
// sorted order and that labels carry all their keys.
func (testCtx *TestContext) theResultKeysShouldBeSorted() error {
	data, err := testCtx.readResultFile()
	if err != nil {
		return err
	}
	objects, err := objectKeys(data)
	if err != nil {
		return err
	}

	labelKeys := []string{"fontname", "fontsize", "orientation", "text", "x0", "x1", "y0", "y1"}
	sawLabel := false
	for _, keys := range objects {
		if !slices.IsSorted(keys) {
			return fmt.Errorf("keys %v are out of order", keys)
		}
		if slices.Contains(keys, "fontname") {
			sawLabel = true
			if !slices.Equal(keys, labelKeys) {
				return fmt.Errorf("label keys are %v, want %v", keys, labelKeys)
			}
		}
	}
	if !sawLabel {
		return fmt.Errorf("result has no labels\nContent: %s", data)
	}
	return nil
}

// objectKeys returns the keys of every JSON object in data in written order.
func objectKeys(data []byte) ([][]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	// Each frame is the key list of an open object, or nil for an array.
	type frame struct {
		keys      *[]string
		expectKey bool
	}
	var stack []frame
	var objects [][]string

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return objects, nil
		}
		if err != nil {
			return nil, fmt.Errorf("invalid result JSON: %w", err)
		}

		top := len(stack) - 1
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{', '[':
				if top >= 0 && stack[top].keys != nil {
					stack[top].expectKey = true
				}
				f := frame{}
				if v == '{' {
					f = frame{keys: new([]string), expectKey: true}
				}
				stack = append(stack, f)
			case '}', ']':
				if v == '}' {
					objects = append(objects, *stack[top].keys)
				}
				stack = stack[:top]
			}
		default:
			if top < 0 || stack[top].keys == nil {
				continue
			}
			if stack[top].expectKey {
				*stack[top].keys = append(*stack[top].keys, v.(string))
				stack[top].expectKey = false
			} else {
				stack[top].expectKey = true
			}
		}
	}
}

// RegisterResultSteps registers the result file step definitions.
func (testCtx *TestContext) RegisterResultSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the result file is "([^"]*)"$`, testCtx.theResultFileIs)
	sc.Step(`^the result should be an empty array$`, testCtx.theResultShouldBeAnEmptyArray)
	sc.Step(`^the result should list (\d+) files?$`, testCtx.theResultShouldListFiles)
	sc.Step(`^the result should list the files:$`, testCtx.theResultShouldListTheFiles)
	sc.Step(`^"([^"]*)" should have (\d+) pages?$`, testCtx.fileShouldHavePages)
	sc.Step(`^page (\d+) of "([^"]*)" should have the labels:$`, testCtx.pageShouldHaveTheLabels)
	sc.Step(`^page (\d+) of "([^"]*)" should have a label "([^"]*)" at `+
		`(-?[0-9.]+), (-?[0-9.]+), (-?[0-9.]+), (-?[0-9.]+)$`, testCtx.pageShouldHaveALabelAt)
	sc.Step(`^page (\d+) of "([^"]*)" should measure ([0-9.]+) by ([0-9.]+)$`, testCtx.pageShouldMeasure)
	sc.Step(`^the result should be indented with (\d+) spaces$`, testCtx.theResultShouldBeIndentedWith)
	sc.Step(`^the result keys should be sorted$`, testCtx.theResultKeysShouldBeSorted)
}
