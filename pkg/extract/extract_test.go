package extract

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		fileName string
		expected models.DocumentType
		wantErr  bool
	}{
		{"declared text wins", "text", "report.xlsx", models.TypeText, false},
		{"declared pdf", "pdf", "report", models.TypePDF, false},
		{"declared spreadsheet", "spreadsheet", "data", models.TypeSpreadsheet, false},
		{"txt extension", "", "notes.txt", models.TypeText, false},
		{"markdown extension", "", "README.md", models.TypeText, false},
		{"pdf extension uppercase", "", "Annual.PDF", models.TypePDF, false},
		{"xlsx extension", "", "budget.xlsx", models.TypeSpreadsheet, false},
		{"csv extension", "", "sales.csv", models.TypeSpreadsheet, false},
		{"tsv extension", "", "export.tsv", models.TypeSpreadsheet, false},
		{"unknown extension", "", "photo.png", "", true},
		{"no extension", "", "mystery", "", true},
		{"bogus declared type", "image", "photo.png", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, err := Detect(tt.declared, tt.fileName)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, typ)
		})
	}
}

func TestExtractText(t *testing.T) {
	result, err := File([]byte("Quarterly summary.\nRevenue grew."), models.TypeText, "summary.txt")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly summary.\nRevenue grew.", result.Text)
	assert.Empty(t, result.Tables)
}

func TestExtractTextLatin1Fallback(t *testing.T) {
	// "liikevaihtoöä" in Latin-1, not valid UTF-8
	content := append([]byte("liikevaihto"), 0xF6, 0xE4)
	result, err := File(content, models.TypeText, "fi.txt")
	require.NoError(t, err)
	assert.Equal(t, "liikevaihtoöä", result.Text)
}

func TestExtractTextEmpty(t *testing.T) {
	_, err := File([]byte("   \n\t  "), models.TypeText, "blank.txt")
	assert.ErrorIs(t, err, types.ErrEmptyDocument)
}

func TestExtractUnsupportedType(t *testing.T) {
	_, err := File([]byte("data"), models.DocumentType("image"), "x.png")
	assert.ErrorIs(t, err, types.ErrUnsupportedType)
}

func TestExtractCSV(t *testing.T) {
	content := []byte("Month,Revenue,Costs\nJan,100,40\nFeb,120,45\nMar,90,50\n")
	result, err := File(content, models.TypeSpreadsheet, "kpis.csv")
	require.NoError(t, err)
	require.Len(t, result.Tables, 1)

	table := result.Tables[0]
	assert.Equal(t, "kpis", table.Sheet)
	assert.Equal(t, []string{"Month", "Revenue", "Costs"}, table.Headers)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"Jan", "100", "40"}, table.Rows[0])
	assert.Equal(t, []string{"Mar", "90", "50"}, table.Rows[2])
}

func TestExtractTSV(t *testing.T) {
	content := []byte("Name\tCount\nalpha\t3\nbeta\t7\n")
	result, err := File(content, models.TypeSpreadsheet, "export.tsv")
	require.NoError(t, err)
	require.Len(t, result.Tables, 1)
	assert.Equal(t, []string{"Name", "Count"}, result.Tables[0].Headers)
	assert.Len(t, result.Tables[0].Rows, 2)
}

func TestExtractCSVRaggedRows(t *testing.T) {
	// short rows get padded, long rows get cut to the header width
	content := []byte("A,B,C\n1,2\n4,5,6,7\n")
	result, err := File(content, models.TypeSpreadsheet, "ragged.csv")
	require.NoError(t, err)
	require.Len(t, result.Tables, 1)

	rows := result.Tables[0].Rows
	assert.Equal(t, []string{"1", "2", ""}, rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, rows[1])
}

func TestExtractCSVSkipsEmptyRows(t *testing.T) {
	content := []byte("\n,,\nA,B\n1,2\n,\n3,4\n")
	result, err := File(content, models.TypeSpreadsheet, "gaps.csv")
	require.NoError(t, err)
	require.Len(t, result.Tables, 1)

	table := result.Tables[0]
	assert.Equal(t, []string{"A", "B"}, table.Headers)
	assert.Len(t, table.Rows, 2)
}

func TestExtractCSVHeaderOnly(t *testing.T) {
	_, err := File([]byte("Month,Revenue\n"), models.TypeSpreadsheet, "empty.csv")
	assert.ErrorIs(t, err, types.ErrEmptyDocument)
}

func TestExtractWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Month", "Revenue"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Jan", 100}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"Feb", 120}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	result, err := File(buf.Bytes(), models.TypeSpreadsheet, "book.xlsx")
	require.NoError(t, err)
	require.Len(t, result.Tables, 1)

	table := result.Tables[0]
	assert.Equal(t, sheet, table.Sheet)
	assert.Equal(t, []string{"Month", "Revenue"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Jan", "100"}, table.Rows[0])
}

func TestExtractWorkbookGarbage(t *testing.T) {
	_, err := File([]byte("not a zip archive"), models.TypeSpreadsheet, "broken.xlsx")
	assert.ErrorIs(t, err, types.ErrEmptyDocument)
}

func TestExtractPDFGarbage(t *testing.T) {
	_, err := File([]byte("not a pdf"), models.TypePDF, "broken.pdf")
	assert.ErrorIs(t, err, types.ErrEmptyDocument)
}
