package dynamodb

// PK/SK prefix constants. One partition per extraction target, one item per
// symbol, so the (target, symbol) uniqueness constraint is the table key.
const (
	prefixWatermark = "WATERMARK#"
	prefixSymbol    = "SYM#"
)

func watermarkPK(target string) string { return prefixWatermark + target }
func symbolSK(symbol string) string    { return prefixSymbol + symbol }
