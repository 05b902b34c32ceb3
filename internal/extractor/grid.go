package extractor

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"
)

// SheetImage is an embedded picture with its cell anchor. Coordinates are
// 1-based sheet coordinates.
type SheetImage struct {
	Row       int
	Col       int
	Extension string
	Data      []byte
}

// SheetGrid is the raw rectangular matrix of one worksheet plus its embedded
// images. It is immutable once loaded; extraction never mutates it.
type SheetGrid struct {
	Sheet  string
	Cells  [][]string // row-major, 0-based, rectangular
	Images []SheetImage
}

// Rows returns the number of rows in the grid.
func (g *SheetGrid) Rows() int { return len(g.Cells) }

// Cell returns the trimmed-right cell value at 1-based (row, col), or "" when
// out of range.
func (g *SheetGrid) Cell(row, col int) string {
	if row < 1 || row > len(g.Cells) {
		return ""
	}
	r := g.Cells[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return r[col-1]
}

// LoadGrid reads one worksheet of an XLSX workbook into a SheetGrid. Merged
// regions are filled down/right with the region's value so every covered cell
// sees the text a human sees. sheet selects a worksheet by name; empty picks
// the first one.
func LoadGrid(r io.Reader, sheet string) (*SheetGrid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	name := sheets[0]
	if sheet != "" {
		found := false
		for _, s := range sheets {
			if s == sheet {
				name = s
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("sheet %q not found in workbook", sheet)
		}
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}

	// Rectangularize: GetRows trims trailing empty cells per row.
	maxCol := 0
	for _, row := range rows {
		if len(row) > maxCol {
			maxCol = len(row)
		}
	}
	cells := make([][]string, len(rows))
	for i := range rows {
		cells[i] = make([]string, maxCol)
		copy(cells[i], rows[i])
	}

	if err := fillMergedRegions(f, name, cells); err != nil {
		return nil, err
	}

	images, err := loadImages(f, name)
	if err != nil {
		return nil, err
	}

	return &SheetGrid{Sheet: name, Cells: cells, Images: images}, nil
}

// fillMergedRegions copies each merged region's value into every cell the
// region covers. Header rows and tier rows routinely use vertical merges, and
// segmentation needs the value visible on every covered row.
func fillMergedRegions(f *excelize.File, sheet string, cells [][]string) error {
	merges, err := f.GetMergeCells(sheet)
	if err != nil {
		return fmt.Errorf("failed to read merged cells: %w", err)
	}
	for _, m := range merges {
		val := m.GetCellValue()
		startCol, startRow, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			continue
		}
		endCol, endRow, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			continue
		}
		for r := startRow; r <= endRow; r++ {
			for c := startCol; c <= endCol; c++ {
				if r-1 < len(cells) && c-1 < len(cells[r-1]) {
					cells[r-1][c-1] = val
				}
			}
		}
	}
	return nil
}

// loadImages collects every embedded picture with its anchor cell, ordered by
// (row, col) so downstream classification is deterministic.
func loadImages(f *excelize.File, sheet string) ([]SheetImage, error) {
	cellRefs, err := f.GetPictureCells(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate picture cells: %w", err)
	}

	var images []SheetImage
	for _, ref := range cellRefs {
		col, row, err := excelize.CellNameToCoordinates(ref)
		if err != nil {
			continue
		}
		pics, err := f.GetPictures(sheet, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read pictures at %s: %w", ref, err)
		}
		for _, pic := range pics {
			data := make([]byte, len(pic.File))
			copy(data, pic.File)
			images = append(images, SheetImage{
				Row:       row,
				Col:       col,
				Extension: pic.Extension,
				Data:      data,
			})
		}
	}

	sort.SliceStable(images, func(i, j int) bool {
		if images[i].Row != images[j].Row {
			return images[i].Row < images[j].Row
		}
		return images[i].Col < images[j].Col
	})
	return images, nil
}
