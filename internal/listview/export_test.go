package listview

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/hms/internal/model"
)

func TestPageWindow(t *testing.T) {
	tests := []struct {
		current, total int
		want           []int
	}{
		{1, 10, []int{1, 2, 3, 4, 5}},
		{3, 10, []int{1, 2, 3, 4, 5}},
		{5, 10, []int{3, 4, 5, 6, 7}},
		{8, 10, []int{6, 7, 8, 9, 10}},
		{10, 10, []int{6, 7, 8, 9, 10}},
		{2, 4, []int{1, 2, 3, 4}},
		{1, 1, []int{1}},
		{1, 0, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageWindow(tt.current, tt.total), "page %d of %d", tt.current, tt.total)
	}
}

func TestNewNav(t *testing.T) {
	nav := NewNav(model.NewPagination(1, 10, 35))
	assert.False(t, nav.First)
	assert.False(t, nav.Prev)
	assert.True(t, nav.Next)
	assert.True(t, nav.Last)
	assert.Equal(t, []int{1, 2, 3, 4}, nav.Pages)

	nav = NewNav(model.NewPagination(4, 10, 35))
	assert.True(t, nav.Prev)
	assert.False(t, nav.Next)

	assert.Empty(t, NewNav(model.Pagination{}).Pages)
}

func TestWriteCSV(t *testing.T) {
	rows := []model.LabRecord{{
		PatientName: `Anil "Andy" Kumar`,
		TestName:    "Lipid, fasting",
		Priority:    model.PriorityUrgent,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, LabColumns, rows))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `"Patient Name","Patient ID","Test Name"`))
	assert.True(t, strings.HasPrefix(lines[1], `"Anil ""Andy"" Kumar","","Lipid, fasting"`))
	assert.Contains(t, lines[1], `"Urgent"`)
}

func TestWriteXLSX(t *testing.T) {
	rows := []model.XrayRecord{{
		PatientName: "Walk In",
		TestName:    "Chest PA",
		Age:         41,
		Images:      model.Images{{Filename: "a.png"}, {Filename: "b.png"}},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "X-Rays", XrayColumns, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"X-Rays"}, f.GetSheetList())
	got, err := f.GetRows("X-Rays")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Patient Name", got[0][0])
	assert.Equal(t, "Walk In", got[1][0])
	assert.Equal(t, "41", got[1][2])
	assert.Equal(t, "2", got[1][len(XrayColumns)-1])
}

func TestRenderLabReport(t *testing.T) {
	rec := &model.LabRecord{
		PatientName:     "Meera <Iyer>",
		PatientUniqueID: "PAT-000123",
		TestName:        "CBC",
		Parameters: model.Parameters{
			{Name: "Haemoglobin", Value: "9.1", Unit: "g/dL", NormalRange: "12-16", Flag: model.FlagLow},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderLabReport(&buf, Letterhead{Hospital: "City Hospital"}, rec))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "Laboratory Report: CBC")
	assert.Contains(t, out, "Meera &lt;Iyer&gt;")
	assert.Contains(t, out, "Haemoglobin")
	assert.Contains(t, out, `class="flag-Low"`)
	assert.Contains(t, out, "</html>")

	assert.Error(t, RenderLabReport(&buf, Letterhead{}, nil))
}

func TestRenderXrayReport(t *testing.T) {
	rec := &model.XrayRecord{
		PatientName: "Walk In",
		TestName:    "Hand",
		WalkIn:      true,
		Images:      model.Images{{Filename: "hand.bmp", Note: "no fracture"}},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderXrayReport(&buf, Letterhead{Hospital: "City Hospital"}, rec))
	out := buf.String()

	assert.Contains(t, out, "Radiology Report: Hand")
	assert.Contains(t, out, "hand.bmp")
	assert.Contains(t, out, "no fracture")
	assert.Contains(t, out, "Walk-in patient")
}
