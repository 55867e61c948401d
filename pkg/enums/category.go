package enums

import "fmt"

type Category string

const (
	CategoryStreaming Category = "streaming"
	CategorySoftware  Category = "software"
	CategoryMusic     Category = "music"
	CategoryNews      Category = "news"
	CategoryGaming    Category = "gaming"
	CategoryFitness   Category = "fitness"
	CategoryFood      Category = "food"
	CategoryShopping  Category = "shopping"
	CategoryCloud     Category = "cloud"
	CategoryEducation Category = "education"
	CategoryFinance   Category = "finance"
	CategoryUtilities Category = "utilities"
	CategoryOther     Category = "other"
)

var validCategories = []Category{
	CategoryStreaming,
	CategorySoftware,
	CategoryMusic,
	CategoryNews,
	CategoryGaming,
	CategoryFitness,
	CategoryFood,
	CategoryShopping,
	CategoryCloud,
	CategoryEducation,
	CategoryFinance,
	CategoryUtilities,
	CategoryOther,
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Category.
func (c Category) IsValid() bool {
	for _, candidate := range validCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCategory converts raw input into a Category.
func ParseCategory(value string) (Category, error) {
	for _, candidate := range validCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid category %q", value)
}
