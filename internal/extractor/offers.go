package extractor

import (
	"strings"
)

// blockRecords turns one segmented block into a Product plus its PriceOffers,
// appending cell-level diagnostics as it goes. Sample rows route their price
// into the product's sample fields instead of producing a tiered offer; that
// split is deliberate policy, volume pricing and one-off sample quotes are
// different facts.
func blockRecords(g *SheetGrid, det *headerDetection, blk productBlock, ref int, opts Options, diags *[]Diagnostic) (Product, []PriceOffer) {
	nameCol := det.firstColumnOf(RoleName)
	charCol := det.firstColumnOf(RoleCharacteristics)
	designCol := det.firstColumnOf(RoleCustomDesign)
	qtyCol := det.firstColumnOf(RoleQuantity)
	samplePriceCol := det.firstColumnOf(RoleSamplePrice)
	sampleTimeCol := det.firstColumnOf(RoleSampleTime)
	priceCols := det.columnsOf(RolePrice)

	product := Product{
		Ref:      ref,
		Name:     blk.name,
		RowStart: blk.rowStart,
		RowEnd:   blk.rowEnd,
	}

	var offers []PriceOffer

	for row := blk.rowStart; row <= blk.rowEnd; row++ {
		if charCol > 0 && product.Characteristics == "" {
			product.Characteristics = strings.TrimSpace(g.Cell(row, charCol))
		}
		if designCol > 0 && product.CustomDesign == "" {
			product.CustomDesign = strings.TrimSpace(g.Cell(row, designCol))
		}

		// Dedicated sample columns may sit on any row of the block.
		if samplePriceCol > 0 && product.SamplePrice == nil {
			if raw := strings.TrimSpace(g.Cell(row, samplePriceCol)); raw != "" {
				p := parseDecimal(raw)
				if p.failed {
					*diags = append(*diags, warnf(row, samplePriceCol, CodeCellParse,
						"sample price %q is not a number", raw))
				} else {
					product.SamplePrice = p.value
					product.SampleCurrency = resolveCurrency(g, det, row, p, opts, diags)
				}
			}
		}
		if sampleTimeCol > 0 && product.SampleTime == nil {
			if raw := strings.TrimSpace(g.Cell(row, sampleTimeCol)); raw != "" {
				product.SampleTime = &raw
			}
		}

		route, isSample := routeLabel(g, det, blk, row, opts)

		if isSample {
			// One-off sample quote: price lands in the sample fields, never in
			// a volume tier.
			if product.SamplePrice == nil {
				for _, pc := range priceCols {
					raw := strings.TrimSpace(g.Cell(row, pc))
					if raw == "" {
						continue
					}
					p := parseDecimal(raw)
					if p.failed {
						*diags = append(*diags, warnf(row, pc, CodeCellParse,
							"sample price %q is not a number", raw))
						continue
					}
					product.SamplePrice = p.value
					product.SampleCurrency = resolveCurrency(g, det, row, p, opts, diags)
					break
				}
			}
			continue
		}

		var qty *int
		if qtyCol > 0 {
			raw := strings.TrimSpace(g.Cell(row, qtyCol))
			if raw != "" && !strings.EqualFold(raw, route) {
				parsed, err := parseQuantity(raw)
				if err != nil {
					*diags = append(*diags, warnf(row, qtyCol, CodeCellParse,
						"quantity %q is not a whole number", raw))
				} else {
					qty = parsed
				}
			}
		}

		for _, pc := range priceCols {
			raw := strings.TrimSpace(g.Cell(row, pc))
			if raw == "" {
				continue
			}
			p := parseDecimal(raw)
			if p.failed {
				*diags = append(*diags, warnf(row, pc, CodeCellParse,
					"price %q is not a number", raw))
			}
			offers = append(offers, PriceOffer{
				ProductRef: ref,
				RouteName:  route,
				Quantity:   qty,
				Price:      p.value,
				Currency:   resolveCurrency(g, det, row, p, opts, diags),
				Row:        row,
			})
		}
	}

	if len(offers) == 0 && product.SamplePrice == nil {
		*diags = append(*diags, warnf(blk.rowStart, nameCol, CodeEmptyBlock,
			"product %q has no price offers", product.Name))
	}

	return product, offers
}

// routeLabel derives the tier's route name for a row and whether it marks a
// sample quote. Templates disagree on where the label lives: some put it in
// the name column of a tier row, others reuse the quantity column for text
// like "Образец". Both are checked; numeric quantity cells are never labels.
func routeLabel(g *SheetGrid, det *headerDetection, blk productBlock, row int, opts Options) (string, bool) {
	nameCol := det.firstColumnOf(RoleName)
	qtyCol := det.firstColumnOf(RoleQuantity)

	if name := strings.TrimSpace(g.Cell(row, nameCol)); name != "" && name != blk.name {
		if matchesAny(name, opts.SampleTokens) {
			return name, true
		}
	}
	if qtyCol > 0 {
		raw := strings.TrimSpace(g.Cell(row, qtyCol))
		if raw != "" {
			if p := parseDecimal(raw); p.failed || p.value == nil {
				return raw, matchesAny(raw, opts.SampleTokens)
			}
		}
	}
	return "", false
}

// resolveCurrency applies the precedence the sheets demand: an explicit
// currency column wins, then a symbol embedded in the price cell, then the
// configured sheet default. An unrecognized embedded symbol is reported but
// does not fail the numeric parse.
func resolveCurrency(g *SheetGrid, det *headerDetection, row int, p decimalParse, opts Options, diags *[]Diagnostic) Currency {
	if curCol := det.firstColumnOf(RoleCurrency); curCol > 0 {
		if raw := strings.TrimSpace(g.Cell(row, curCol)); raw != "" {
			if cur := parseCurrencyWord(raw); cur != "" {
				return cur
			}
			*diags = append(*diags, warnf(row, curCol, CodeUnknownCurrency,
				"currency designation %q not recognized, using %s", raw, opts.DefaultCurrency))
			return opts.DefaultCurrency
		}
	}
	if p.currency != "" {
		return p.currency
	}
	if p.unknownSymbol != "" {
		*diags = append(*diags, warnf(row, 0, CodeUnknownCurrency,
			"currency symbol %q not recognized, using %s", p.unknownSymbol, opts.DefaultCurrency))
	}
	return opts.DefaultCurrency
}
