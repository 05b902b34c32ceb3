package extractor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// testGrid builds a rectangular SheetGrid from ragged row literals.
func testGrid(rows ...[]string) *SheetGrid {
	maxCol := 0
	for _, r := range rows {
		if len(r) > maxCol {
			maxCol = len(r)
		}
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = make([]string, maxCol)
		copy(cells[i], r)
	}
	return &SheetGrid{Sheet: "Лист1", Cells: cells}
}

func testPNG(t *testing.T, side int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 11), 0xCC, 0xFF})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractSampleRowBecomesSampleFields(t *testing.T) {
	g := testGrid(
		[]string{"Наименование", "Кол-во, шт", "Цена", "Валюта"},
		[]string{"Кардхолдер", "500", "12,50", "USD"},
		[]string{"", "1000", "10.00", "USD"},
		[]string{"Образец", "", "15.0", ""},
	)

	res, err := New(Options{}, nil).ExtractGrid(g)
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)

	require.Len(t, res.Products, 1)
	p := res.Products[0]
	assert.Equal(t, "Кардхолдер", p.Name)
	assert.Equal(t, 2, p.RowStart)
	assert.Equal(t, 4, p.RowEnd)
	require.NotNil(t, p.SamplePrice)
	assert.InDelta(t, 15.0, *p.SamplePrice, 1e-9)
	assert.Equal(t, CurrencyUSD, p.SampleCurrency)

	// The sample quote never shows up as a third volume tier.
	require.Len(t, res.Offers, 2)
	for _, o := range res.Offers {
		assert.False(t, o.IsSample)
		assert.Equal(t, CurrencyUSD, o.Currency)
	}
	require.NotNil(t, res.Offers[0].Quantity)
	assert.Equal(t, 500, *res.Offers[0].Quantity)
	assert.InDelta(t, 12.5, *res.Offers[0].Price, 1e-9)
	require.NotNil(t, res.Offers[1].Quantity)
	assert.Equal(t, 1000, *res.Offers[1].Quantity)
	assert.InDelta(t, 10.0, *res.Offers[1].Price, 1e-9)
}

func TestExtractMultipleProducts(t *testing.T) {
	g := testGrid(
		[]string{"Наименование", "Характеристики", "Тираж", "Цена"},
		[]string{"Ручка", "пластик, синяя", "100", "5"},
		[]string{"", "", "500", "4"},
		[]string{"Блокнот", "А5, 80 листов", "100", "20"},
	)

	res, err := New(Options{DefaultCurrency: CurrencyRUB}, nil).ExtractGrid(g)
	require.NoError(t, err)

	require.Len(t, res.Products, 2)
	assert.Equal(t, "Ручка", res.Products[0].Name)
	assert.Equal(t, "пластик, синяя", res.Products[0].Characteristics)
	assert.Equal(t, 2, res.Products[0].RowStart)
	assert.Equal(t, 3, res.Products[0].RowEnd)
	assert.Equal(t, "Блокнот", res.Products[1].Name)
	assert.Equal(t, 4, res.Products[1].RowStart)
	assert.Equal(t, 4, res.Products[1].RowEnd)

	require.Len(t, res.Offers, 3)
	assert.Equal(t, 0, res.Offers[0].ProductRef)
	assert.Equal(t, 0, res.Offers[1].ProductRef)
	assert.Equal(t, 1, res.Offers[2].ProductRef)
	for _, o := range res.Offers {
		assert.Equal(t, CurrencyRUB, o.Currency)
	}
}

func TestExtractUnknownCurrencySymbolFallsBack(t *testing.T) {
	g := testGrid(
		[]string{"Наименование", "Цена"},
		[]string{"Ручка", "1 234,56 ₱"},
	)

	res, err := New(Options{DefaultCurrency: CurrencyRUB}, nil).ExtractGrid(g)
	require.NoError(t, err)

	require.Len(t, res.Offers, 1)
	require.NotNil(t, res.Offers[0].Price)
	assert.InDelta(t, 1234.56, *res.Offers[0].Price, 1e-9)
	assert.Equal(t, CurrencyRUB, res.Offers[0].Currency)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, CodeUnknownCurrency, res.Diagnostics[0].Code)
	assert.Equal(t, SeverityWarning, res.Diagnostics[0].Severity)
}

func TestExtractUnparsableCellKeepsNilPrice(t *testing.T) {
	g := testGrid(
		[]string{"Наименование", "Тираж", "Цена"},
		[]string{"Ручка", "100", "договорная"},
	)

	res, err := New(Options{}, nil).ExtractGrid(g)
	require.NoError(t, err)

	require.Len(t, res.Offers, 1)
	assert.Nil(t, res.Offers[0].Price)

	var codes []string
	for _, d := range res.Diagnostics {
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, CodeCellParse)
}

func TestExtractNoiseRowClosesBlock(t *testing.T) {
	g := testGrid(
		[]string{"Наименование", "Цена"},
		[]string{"Ручка", "10"},
		[]string{"Итого", "100"},
		[]string{"", "55"},
	)

	res, err := New(Options{}, nil).ExtractGrid(g)
	require.NoError(t, err)

	require.Len(t, res.Products, 1)
	assert.Equal(t, 2, res.Products[0].RowEnd)
	require.Len(t, res.Offers, 1)

	var noise, orphans []Diagnostic
	for _, d := range res.Diagnostics {
		switch d.Code {
		case CodeNoiseRow:
			noise = append(noise, d)
		case CodeOrphanRow:
			orphans = append(orphans, d)
		}
	}
	require.Len(t, noise, 1)
	assert.Equal(t, 3, noise[0].Row)

	// the rejected noise row carries only its noise diagnostic; the stranded
	// tier row below it is the lone orphan
	require.Len(t, orphans, 1)
	assert.Equal(t, 4, orphans[0].Row)
}

func TestExtractHeaderContinuationIsNotOrphan(t *testing.T) {
	g := testGrid(
		[]string{"Наименование", "Тираж", ""},
		[]string{"", "", "Цена"},
		[]string{"Ручка", "100", "5.0"},
	)

	res, err := New(Options{}, nil).ExtractGrid(g)
	require.NoError(t, err)

	for _, d := range res.Diagnostics {
		assert.NotEqual(t, CodeOrphanRow, d.Code)
	}
	require.Len(t, res.Offers, 1)
	assert.InDelta(t, 5.0, *res.Offers[0].Price, 1e-9)
}

func TestExtractEmptyBlockWarning(t *testing.T) {
	g := testGrid(
		[]string{"Наименование", "Цена"},
		[]string{"Ручка", ""},
	)

	res, err := New(Options{}, nil).ExtractGrid(g)
	require.NoError(t, err)

	require.Len(t, res.Products, 1)
	assert.Empty(t, res.Offers)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, CodeEmptyBlock, res.Diagnostics[0].Code)
}

func TestResolveImages(t *testing.T) {
	g := testGrid(
		[]string{"Наименование", "Цена"},
		[]string{"Ручка", "10"},
		[]string{"", "9"},
		[]string{"Блокнот", "20"},
	)
	big := bytes.Repeat([]byte{0xAB}, 2048)
	g.Images = []SheetImage{
		{Row: 2, Col: 3, Extension: ".png", Data: big},
		{Row: 3, Col: 3, Extension: ".jpeg", Data: big},
		{Row: 4, Col: 3, Extension: ".png", Data: []byte{0x01, 0x02}},
		{Row: 47, Col: 1, Extension: ".png", Data: big},
	}

	res, err := New(Options{}, nil).ExtractGrid(g)
	require.NoError(t, err)
	require.Len(t, res.Images, 4)

	// First image of a block is main, the rest additional.
	require.NotNil(t, res.Images[0].ProductRef)
	assert.Equal(t, 0, *res.Images[0].ProductRef)
	assert.Equal(t, ImageTypeMain, res.Images[0].Type)
	require.NotNil(t, res.Images[1].ProductRef)
	assert.Equal(t, 0, *res.Images[1].ProductRef)
	assert.Equal(t, ImageTypeAdditional, res.Images[1].Type)

	// Undersized payload is flagged but still emitted.
	require.NotNil(t, res.Images[2].ProductRef)
	assert.Equal(t, 1, *res.Images[2].ProductRef)
	assert.True(t, res.Images[2].PossiblyCorrupt)

	// An anchor outside every block stays unbound for manual reassignment.
	assert.Nil(t, res.Images[3].ProductRef)
	assert.Equal(t, 47, res.Images[3].AnchorRow)

	var codes []string
	for _, d := range res.Diagnostics {
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, CodeImageTooSmall)
	assert.Contains(t, codes, CodeUnresolvedImage)
}

func TestExtractIsDeterministic(t *testing.T) {
	g := testGrid(
		[]string{"Наименование", "Тираж", "Цена", "Валюта"},
		[]string{"Кардхолдер", "500", "12,50", "USD"},
		[]string{"", "1000", "10.00", ""},
		[]string{"Худи", "50", "осталось уточнить", "руб"},
	)
	g.Images = []SheetImage{
		{Row: 2, Col: 5, Extension: ".png", Data: bytes.Repeat([]byte{0x7F}, 4096)},
	}

	e := New(Options{}, nil)
	first, err := e.ExtractGrid(g)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.ExtractGrid(g)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestExtractWorkbookRoundTrip(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	headers := []string{"Наименование", "Кол-во, шт", "Цена", "Валюта"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}

	// Vertically merged name cell spanning the tier rows and the sample row.
	require.NoError(t, f.MergeCell(sheet, "A2", "A4"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "Кардхолдер"))
	require.NoError(t, f.SetCellValue(sheet, "B2", 500))
	require.NoError(t, f.SetCellValue(sheet, "C2", "12,50"))
	require.NoError(t, f.SetCellValue(sheet, "D2", "USD"))
	require.NoError(t, f.SetCellValue(sheet, "B3", 1000))
	require.NoError(t, f.SetCellValue(sheet, "C3", "10.00"))
	require.NoError(t, f.SetCellValue(sheet, "D3", "USD"))
	require.NoError(t, f.SetCellValue(sheet, "B4", "Образец"))
	require.NoError(t, f.SetCellValue(sheet, "C4", "15.0"))

	require.NoError(t, f.AddPictureFromBytes(sheet, "E2", &excelize.Picture{
		Extension: ".png",
		File:      testPNG(t, 64),
	}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := New(Options{MinImageBytes: 1}, nil).Extract(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, sheet, res.SheetName)
	assert.Equal(t, 1, res.HeaderRow)

	require.Len(t, res.Products, 1)
	p := res.Products[0]
	assert.Equal(t, "Кардхолдер", p.Name)
	assert.Equal(t, 2, p.RowStart)
	assert.Equal(t, 4, p.RowEnd)
	require.NotNil(t, p.SamplePrice)
	assert.InDelta(t, 15.0, *p.SamplePrice, 1e-9)

	require.Len(t, res.Offers, 2)
	assert.Equal(t, 2, res.Offers[0].Row)
	assert.Equal(t, 3, res.Offers[1].Row)

	require.Len(t, res.Images, 1)
	require.NotNil(t, res.Images[0].ProductRef)
	assert.Equal(t, 0, *res.Images[0].ProductRef)
	assert.Equal(t, ImageTypeMain, res.Images[0].Type)
	assert.Equal(t, 2, res.Images[0].AnchorRow)
	assert.Equal(t, 5, res.Images[0].AnchorCol)
	assert.False(t, res.Images[0].PossiblyCorrupt)
}

func TestExtractUnrecognizedWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Свободный текст"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "ещё текст"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = New(Options{}, nil).Extract(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, ErrUnrecognizedLayout)
}
