package extractor

// ColumnRole is the semantic meaning assigned to a spreadsheet column after
// header detection.
type ColumnRole string

const (
	RoleName            ColumnRole = "NAME"
	RoleCharacteristics ColumnRole = "CHARACTERISTICS"
	RoleCustomDesign    ColumnRole = "CUSTOM_DESIGN"
	RolePrice           ColumnRole = "PRICE"
	RoleCurrency        ColumnRole = "CURRENCY"
	RoleQuantity        ColumnRole = "QUANTITY"
	RoleSamplePrice     ColumnRole = "SAMPLE_PRICE"
	RoleSampleTime      ColumnRole = "SAMPLE_TIME"
	RoleImage           ColumnRole = "IMAGE"
	RoleUnknown         ColumnRole = "UNKNOWN"
)

// Currency codes supported by proposal sheets
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyRUB Currency = "RUB"
	CurrencyCNY Currency = "CNY"
	CurrencyAED Currency = "AED"
)

// ImageType classifies an extracted image relative to its product
type ImageType string

const (
	ImageTypeMain       ImageType = "main"
	ImageTypeAdditional ImageType = "additional"
)

// Product is one extracted product. Ref is its index within the run's Products
// slice; offers and images point back at it through that index.
type Product struct {
	Ref             int      `json:"ref"`
	Name            string   `json:"name"`
	Characteristics string   `json:"characteristics,omitempty"`
	CustomDesign    string   `json:"customDesign,omitempty"`
	RowStart        int      `json:"rowStart"` // 1-based sheet rows, inclusive
	RowEnd          int      `json:"rowEnd"`
	SamplePrice     *float64 `json:"samplePrice,omitempty"`
	SampleCurrency  Currency `json:"sampleCurrency,omitempty"`
	SampleTime      *string  `json:"sampleTime,omitempty"`
}

// PriceOffer is one (quantity, price) tier of a product.
type PriceOffer struct {
	ProductRef int      `json:"productRef"`
	RouteName  string   `json:"routeName,omitempty"`
	Quantity   *int     `json:"quantity,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Currency   Currency `json:"currency"`
	IsSample   bool     `json:"isSample"`
	Row        int      `json:"row"` // source row, 1-based
}

// ProductImage is an embedded picture pulled out of the sheet. ProductRef is
// nil when no product block covers the anchor row; such images are kept for
// manual reassignment.
type ProductImage struct {
	ProductRef      *int      `json:"productRef,omitempty"`
	AnchorRow       int       `json:"anchorRow"` // 1-based
	AnchorCol       int       `json:"anchorCol"`
	Type            ImageType `json:"type"`
	Extension       string    `json:"extension"`
	Data            []byte    `json:"-"`
	Size            int       `json:"size"`
	PossiblyCorrupt bool      `json:"possiblyCorrupt"`
}

// Result is the full output of one extraction run over one sheet.
type Result struct {
	SheetName   string             `json:"sheetName"`
	HeaderRow   int                `json:"headerRow"` // 1-based
	Columns     map[int]ColumnRole `json:"columns"`   // 1-based column index -> role
	Products    []Product          `json:"products"`
	Offers      []PriceOffer       `json:"offers"`
	Images      []ProductImage     `json:"images"`
	Diagnostics []Diagnostic       `json:"diagnostics"`
}

// HasErrors reports whether any diagnostic is error-severity. Callers that
// persist results should treat this as "needs human review".
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
