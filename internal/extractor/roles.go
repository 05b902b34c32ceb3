package extractor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// rolePriority fixes the order roles are considered in when several synonyms
// match one header cell, keeping detection deterministic. Sample roles come
// before PRICE so "цена образца" is not swallowed by the bare "цена" synonym
// on equal-length matches.
var rolePriority = []ColumnRole{
	RoleName,
	RoleSamplePrice,
	RoleSampleTime,
	RolePrice,
	RoleCurrency,
	RoleQuantity,
	RoleCharacteristics,
	RoleCustomDesign,
	RoleImage,
}

// minLabelMatchRatio is the minimum share of a header cell a synonym must
// cover to count as a label match. Keeps long free-text cells from matching
// on an incidental word.
const minLabelMatchRatio = 0.2

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeLabel lowercases, strips diacritics, folds ё to е and collapses
// internal whitespace so label comparison is tolerant of template typography.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(foldTransformer, s); err == nil {
		s = folded
	}
	s = strings.ReplaceAll(s, "ё", "е")
	return strings.Join(strings.Fields(s), " ")
}

// matchRole finds the role whose synonym best matches a header cell. The
// longest matching synonym wins; rolePriority breaks length ties. Returns
// RoleUnknown when nothing clears the confidence floor.
func matchRole(cell string, synonyms map[ColumnRole][]string) ColumnRole {
	normCell := normalizeLabel(cell)
	if normCell == "" {
		return RoleUnknown
	}
	cellLen := utf8.RuneCountInString(normCell)

	best := RoleUnknown
	bestLen := 0
	for _, role := range rolePriority {
		for _, syn := range synonyms[role] {
			normSyn := normalizeLabel(syn)
			if normSyn == "" || !strings.Contains(normCell, normSyn) {
				continue
			}
			synLen := utf8.RuneCountInString(normSyn)
			if float64(synLen)/float64(cellLen) < minLabelMatchRatio {
				continue
			}
			if synLen > bestLen {
				best = role
				bestLen = synLen
			}
		}
	}
	return best
}

// headerDetection is the outcome of scanning for a usable header row.
type headerDetection struct {
	headerRow int                // 1-based
	columns   map[int]ColumnRole // 1-based column index -> role, UNKNOWN omitted
}

// role returns the role assigned to a 1-based column, RoleUnknown if none.
func (h *headerDetection) role(col int) ColumnRole {
	if r, ok := h.columns[col]; ok {
		return r
	}
	return RoleUnknown
}

// columnsOf lists the 1-based columns carrying a role, in ascending order.
func (h *headerDetection) columnsOf(role ColumnRole) []int {
	var cols []int
	for c := 1; c <= h.maxColumn(); c++ {
		if h.columns[c] == role {
			cols = append(cols, c)
		}
	}
	return cols
}

func (h *headerDetection) maxColumn() int {
	max := 0
	for c := range h.columns {
		if c > max {
			max = c
		}
	}
	return max
}

// firstColumnOf returns the leftmost column with the given role, 0 if absent.
func (h *headerDetection) firstColumnOf(role ColumnRole) int {
	cols := h.columnsOf(role)
	if len(cols) == 0 {
		return 0
	}
	return cols[0]
}

// detectHeader scans the first scanRows rows for the row whose cells match the
// highest count of distinct roles. Ties prefer the earlier row. A usable
// header needs NAME plus at least one other role; otherwise the layout is
// unrecognized and the sheet is rejected wholesale rather than guessed at.
func detectHeader(g *SheetGrid, opts Options) (*headerDetection, error) {
	scanRows := opts.HeaderScanRows
	if scanRows > g.Rows() {
		scanRows = g.Rows()
	}

	bestRow := 0
	bestCount := 0
	var bestCols map[int]ColumnRole

	for row := 1; row <= scanRows; row++ {
		cols := make(map[int]ColumnRole)
		seen := make(map[ColumnRole]bool)
		for col := 1; col <= len(g.Cells[row-1]); col++ {
			role := matchRole(g.Cell(row, col), opts.RoleSynonyms)
			if role == RoleUnknown {
				continue
			}
			cols[col] = role
			seen[role] = true
		}
		if len(seen) > bestCount {
			bestCount = len(seen)
			bestRow = row
			bestCols = cols
		}
	}

	if bestRow == 0 || bestCount < 2 {
		return nil, ErrUnrecognizedLayout
	}
	det := &headerDetection{headerRow: bestRow, columns: bestCols}
	if det.firstColumnOf(RoleName) == 0 {
		return nil, ErrUnrecognizedLayout
	}

	// Label-less columns in merged-header layouts sometimes carry their label
	// one row below the detected header. Fill only columns still unassigned.
	if bestRow < g.Rows() {
		for col := 1; col <= len(g.Cells[bestRow]); col++ {
			if _, ok := det.columns[col]; ok {
				continue
			}
			if role := matchRole(g.Cell(bestRow+1, col), opts.RoleSynonyms); role != RoleUnknown {
				det.columns[col] = role
			}
		}
	}
	return det, nil
}
