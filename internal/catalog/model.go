package catalog

// Entry is the read-model row the pricing engine consumes: the live price and
// stock of a product or one of its variants.
type Entry struct {
	ProductID  uint
	VariantID  *string
	Name       string
	PricePaise int64
	Stock      int
}

// Key identifies a priceable unit. VariantID empty means the base product.
type Key struct {
	ProductID uint
	VariantID string
}
