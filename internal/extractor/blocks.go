package extractor

import "strings"

// productBlock is a contiguous run of rows believed to describe one product:
// a name row plus zero or more tier rows below it.
type productBlock struct {
	rowStart int // 1-based, inclusive
	rowEnd   int
	name     string
}

// matchesAny reports whether the normalized value contains any of the
// normalized patterns.
func matchesAny(value string, patterns []string) bool {
	norm := normalizeLabel(value)
	if norm == "" {
		return false
	}
	for _, p := range patterns {
		np := normalizeLabel(p)
		if np != "" && strings.Contains(norm, np) {
			return true
		}
	}
	return false
}

// segmentBlocks walks the rows below the header. A block opens on a row whose
// NAME cell is non-blank and neither noise nor a sample token, and runs until
// the next such row or the end of the sheet. Rows with a blank NAME inside a
// block are that product's extra price tiers. Noise rows close the current
// block so stray template furniture never accretes tier rows.
func segmentBlocks(g *SheetGrid, det *headerDetection, opts Options, diags *[]Diagnostic) []productBlock {
	nameCol := det.firstColumnOf(RoleName)
	var blocks []productBlock

	close := func(end int) {
		if n := len(blocks); n > 0 && blocks[n-1].rowEnd == 0 {
			blocks[n-1].rowEnd = end
		}
	}

	inBlock := false
	for row := det.headerRow + 1; row <= g.Rows(); row++ {
		name := strings.TrimSpace(g.Cell(row, nameCol))
		if name == "" {
			continue
		}
		// Sample rows carry their label in the name column on some templates;
		// they belong to the current block, never open one of their own.
		if matchesAny(name, opts.SampleTokens) {
			continue
		}
		if matchesAny(name, opts.NoiseNamePatterns) {
			close(row - 1)
			inBlock = false
			*diags = append(*diags, warnf(row, nameCol, CodeNoiseRow,
				"row rejected: name %q matches a noise pattern", name))
			continue
		}
		// Merged name cells repeat the same value on every covered row; those
		// rows are tiers of the block already open for this product.
		if inBlock && len(blocks) > 0 && blocks[len(blocks)-1].name == name {
			continue
		}
		close(row - 1)
		blocks = append(blocks, productBlock{rowStart: row, name: name})
		inBlock = true
	}
	close(g.Rows())

	return blocks
}
