package extractor

// Options controls how a sheet is interpreted. Zero-value fields fall back to
// the defaults below, so callers only override the knobs their supplier's
// template needs.
type Options struct {
	// Sheet selects a worksheet by name; empty means the first sheet.
	Sheet string

	// RoleSynonyms maps each role to an ordered list of accepted header label
	// substrings (matched case- and diacritic-insensitively). More specific
	// labels should come first; when several roles match one cell the longest
	// matching synonym wins.
	RoleSynonyms map[ColumnRole][]string

	// NoiseNamePatterns are substrings that mark a non-blank NAME cell as
	// header noise ("Quantity, pcs", "Add Photos" and friends). Rows matching
	// them never start a product block.
	NoiseNamePatterns []string

	// SampleTokens mark a row as a one-off sample quote rather than a volume
	// tier ("Образец", "Sample"). Per-template concern, hence configurable.
	SampleTokens []string

	// DefaultCurrency is used when neither a currency column nor an embedded
	// currency symbol identifies the price currency.
	DefaultCurrency Currency

	// MinImageBytes flags smaller embedded images as possibly corrupt.
	MinImageBytes int

	// HeaderScanRows bounds the header search window from the top of the sheet.
	HeaderScanRows int
}

// DefaultRoleSynonyms covers the RU/EN label vocabulary seen across supplier
// proposal templates.
func DefaultRoleSynonyms() map[ColumnRole][]string {
	return map[ColumnRole][]string{
		RoleName: {
			"наименование", "название", "товар", "продукция", "модель",
			"product name", "description of goods", "item", "product",
		},
		RoleCharacteristics: {
			"характеристики", "описание", "материал", "размер",
			"characteristics", "specification", "material",
		},
		RoleCustomDesign: {
			"нанесение", "брендирование", "логотип", "индивидуальный дизайн",
			"custom design", "branding", "logo",
		},
		RoleSamplePrice: {
			"цена образца", "стоимость образца", "образец, цена", "sample price",
		},
		RoleSampleTime: {
			"срок образца", "срок изготовления образца", "sample time", "sample lead time",
		},
		RolePrice: {
			"цена за единицу", "цена", "стоимость", "unit price", "price", "cost",
		},
		RoleCurrency: {
			"валюта", "currency",
		},
		RoleQuantity: {
			"тираж", "количество", "кол-во", "quantity", "qty", "moq", "шт",
		},
		RoleImage: {
			"фото", "изображение", "картинка", "photo", "image", "picture",
		},
	}
}

// DefaultNoiseNamePatterns rejects rows whose NAME cell is leftover template
// furniture rather than a product.
func DefaultNoiseNamePatterns() []string {
	return []string{
		"количество, шт", "quantity, pcs", "add photos", "добавьте фото",
		"итого", "total", "наименование", "product name",
	}
}

// DefaultSampleTokens per the most common template convention.
func DefaultSampleTokens() []string {
	return []string{"образец", "sample"}
}

const (
	DefaultMinImageBytes  = 1000
	DefaultHeaderScanRows = 20
)

// withDefaults fills unset fields so the rest of the pipeline never checks
// for nil configuration.
func (o Options) withDefaults() Options {
	if o.RoleSynonyms == nil {
		o.RoleSynonyms = DefaultRoleSynonyms()
	}
	if o.NoiseNamePatterns == nil {
		o.NoiseNamePatterns = DefaultNoiseNamePatterns()
	}
	if o.SampleTokens == nil {
		o.SampleTokens = DefaultSampleTokens()
	}
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = CurrencyUSD
	}
	if o.MinImageBytes <= 0 {
		o.MinImageBytes = DefaultMinImageBytes
	}
	if o.HeaderScanRows <= 0 {
		o.HeaderScanRows = DefaultHeaderScanRows
	}
	return o
}
