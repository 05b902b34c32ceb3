// Package extractor turns semi-structured supplier proposal spreadsheets into
// normalized product, price-offer and image records. It is the core of the
// service: everything else persists, uploads or reports on what comes out of
// here.
//
// Extraction is stateless and deterministic: the same workbook and options
// always produce byte-identical record sequences. Row- and cell-level
// problems degrade to diagnostics instead of aborting; only a sheet whose
// header cannot be recognized at all is rejected outright.
package extractor

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Extractor runs the extraction pipeline with a fixed set of options. One
// instance per template configuration; instances are safe for concurrent use
// because extraction never mutates shared state.
type Extractor struct {
	opts Options
	log  *logrus.Entry
}

// New builds an Extractor. logger may be nil for library use.
func New(opts Options, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Extractor{
		opts: opts.withDefaults(),
		log:  logger.WithField("component", "extractor"),
	}
}

// ExtractFile reads and extracts a workbook from disk.
func (e *Extractor) ExtractFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.Extract(bytes.NewReader(data))
}

// Extract reads one worksheet from r and runs the full pipeline: header and
// column-role detection, product block segmentation, offer extraction and
// image anchor resolution. Returns ErrUnrecognizedLayout when no usable
// header exists; in that case nothing is emitted for the sheet.
func (e *Extractor) Extract(r io.Reader) (*Result, error) {
	grid, err := LoadGrid(r, e.opts.Sheet)
	if err != nil {
		return nil, err
	}
	return e.ExtractGrid(grid)
}

// ExtractGrid runs the pipeline over an already-loaded grid.
func (e *Extractor) ExtractGrid(g *SheetGrid) (*Result, error) {
	det, err := detectHeader(g, e.opts)
	if err != nil {
		e.log.WithField("sheet", g.Sheet).Warn("no usable header row found")
		return nil, err
	}

	res := &Result{
		SheetName: g.Sheet,
		HeaderRow: det.headerRow,
		Columns:   det.columns,
	}

	blocks := segmentBlocks(g, det, e.opts, &res.Diagnostics)
	for i, blk := range blocks {
		product, offers := blockRecords(g, det, blk, i, e.opts, &res.Diagnostics)
		res.Products = append(res.Products, product)
		res.Offers = append(res.Offers, offers...)
	}

	e.reportOrphanRows(g, det, blocks, res)

	res.Images = resolveImages(g, res.Products, e.opts, &res.Diagnostics)

	e.log.WithFields(logrus.Fields{
		"sheet":    g.Sheet,
		"products": len(res.Products),
		"offers":   len(res.Offers),
		"images":   len(res.Images),
		"warnings": len(res.Diagnostics),
	}).Debug("extraction finished")

	return res, nil
}

// reportOrphanRows flags price-bearing rows that ended up outside every
// block (typically tier rows stranded below a rejected noise row). Their
// data is not guessed into a product, but it must stay visible. Rows already
// rejected as noise carry that diagnostic alone, not a second one.
func (e *Extractor) reportOrphanRows(g *SheetGrid, det *headerDetection, blocks []productBlock, res *Result) {
	priceCols := det.columnsOf(RolePrice)
	if len(priceCols) == 0 {
		return
	}
	noise := make(map[int]bool)
	for _, d := range res.Diagnostics {
		if d.Code == CodeNoiseRow {
			noise[d.Row] = true
		}
	}
	covered := func(row int) bool {
		for _, b := range blocks {
			if row >= b.rowStart && row <= b.rowEnd {
				return true
			}
		}
		return false
	}
	for row := det.headerRow + 1; row <= g.Rows(); row++ {
		if covered(row) || noise[row] {
			continue
		}
		for _, pc := range priceCols {
			cell := strings.TrimSpace(g.Cell(row, pc))
			if cell == "" {
				continue
			}
			// header continuation rows repeat column labels, not data
			if matchRole(cell, e.opts.RoleSynonyms) != RoleUnknown {
				continue
			}
			res.Diagnostics = append(res.Diagnostics, warnf(row, pc, CodeOrphanRow,
				"price-bearing row belongs to no product block"))
			break
		}
	}
}
