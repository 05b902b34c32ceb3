package extractor

// resolveImages binds each embedded image to the product block covering its
// anchor row. The first image bound to a product (grid order: row, then
// column) is its main image, the rest are additional. Images falling outside
// every block are emitted unbound rather than dropped, so callers can
// re-attach them by hand. Undersized payloads are flagged possibly corrupt
// but still emitted; discarding is the caller's call.
func resolveImages(g *SheetGrid, products []Product, opts Options, diags *[]Diagnostic) []ProductImage {
	var out []ProductImage
	seen := make(map[int]bool, len(products))

	for _, img := range g.Images {
		pi := ProductImage{
			AnchorRow: img.Row,
			AnchorCol: img.Col,
			Extension: img.Extension,
			Data:      img.Data,
			Size:      len(img.Data),
			Type:      ImageTypeAdditional,
		}

		for i := range products {
			if img.Row >= products[i].RowStart && img.Row <= products[i].RowEnd {
				ref := products[i].Ref
				pi.ProductRef = &ref
				if !seen[ref] {
					pi.Type = ImageTypeMain
					seen[ref] = true
				}
				break
			}
		}
		if pi.ProductRef == nil {
			*diags = append(*diags, warnf(img.Row, img.Col, CodeUnresolvedImage,
				"image anchor falls outside every product block"))
		}

		if pi.Size < opts.MinImageBytes {
			pi.PossiblyCorrupt = true
			*diags = append(*diags, warnf(img.Row, img.Col, CodeImageTooSmall,
				"image payload is %d bytes, below the %d byte threshold", pi.Size, opts.MinImageBytes))
		}

		out = append(out, pi)
	}
	return out
}
