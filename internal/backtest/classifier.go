package backtest

import "strings"

// AssetClass buckets a fund for risk-profile banded allocation.
type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetDebt   AssetClass = "debt"
	AssetHybrid AssetClass = "hybrid"
	AssetOther  AssetClass = "other"
)

// AssetClassifier infers an asset class from fund metadata. The default
// implementation matches substrings in free-text category names; a
// stricter taxonomy can replace it without touching allocation logic.
type AssetClassifier interface {
	Classify(category, subCategory string) AssetClass
}

// CategoryTextClassifier classifies on category/sub-category text.
type CategoryTextClassifier struct{}

// NewCategoryTextClassifier returns the default substring classifier.
func NewCategoryTextClassifier() *CategoryTextClassifier {
	return &CategoryTextClassifier{}
}

func (c *CategoryTextClassifier) Classify(category, subCategory string) AssetClass {
	text := strings.ToLower(category + " " + subCategory)

	switch {
	case strings.Contains(text, "hybrid"), strings.Contains(text, "balanced"),
		strings.Contains(text, "aggressive allocation"), strings.Contains(text, "dynamic asset"):
		return AssetHybrid
	case strings.Contains(text, "debt"), strings.Contains(text, "liquid"),
		strings.Contains(text, "gilt"), strings.Contains(text, "bond"),
		strings.Contains(text, "duration"), strings.Contains(text, "money market"):
		return AssetDebt
	case strings.Contains(text, "equity"), strings.Contains(text, "cap"),
		strings.Contains(text, "elss"), strings.Contains(text, "index"),
		strings.Contains(text, "sectoral"), strings.Contains(text, "thematic"):
		return AssetEquity
	default:
		return AssetOther
	}
}
