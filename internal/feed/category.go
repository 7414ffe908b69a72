package feed

import "strings"

// Uncategorized is assigned when no keyword matches the hint.
const Uncategorized = "Uncategorized"

// categoryKeyword maps a lower-case keyword to the shop category it
// implies. The table is ordered: the first keyword contained in the
// hint wins, so e.g. "oil filter" classifies as Cooling & Lubrication
// because "oil" is checked before "filter".
type categoryKeyword struct {
	keyword  string
	category string
}

var categoryTable = []categoryKeyword{
	{"brake", "Brakes & ABS"},
	{"suspension", "Suspension & Steering"},
	{"shock", "Suspension & Steering"},
	{"steering", "Suspension & Steering"},
	{"electrical", "Electrical & Lighting"},
	{"lighting", "Electrical & Lighting"},
	{"light", "Electrical & Lighting"},
	{"bulb", "Electrical & Lighting"},
	{"engine", "Engine & Performance"},
	{"performance", "Engine & Performance"},
	{"exhaust", "Engine & Performance"},
	{"transmission", "Transmission & Clutch"},
	{"clutch", "Transmission & Clutch"},
	{"chain", "Transmission & Clutch"},
	{"sprocket", "Transmission & Clutch"},
	{"wheel", "Wheels & Tyres"},
	{"tyre", "Wheels & Tyres"},
	{"tire", "Wheels & Tyres"},
	{"rim", "Wheels & Tyres"},
	{"body", "Body & Fairings"},
	{"fairing", "Body & Fairings"},
	{"panel", "Body & Fairings"},
	{"cooling", "Cooling & Lubrication"},
	{"radiator", "Cooling & Lubrication"},
	{"oil", "Cooling & Lubrication"},
	{"fuel", "Fuel & Air"},
	{"air", "Fuel & Air"},
	{"filter", "Fuel & Air"},
	{"battery", "Batteries & Charging"},
	{"charging", "Batteries & Charging"},
	{"tool", "Tools & Maintenance"},
	{"maintenance", "Tools & Maintenance"},
	{"security", "Security & Locks"},
	{"lock", "Security & Locks"},
	{"luggage", "Luggage & Storage"},
	{"storage", "Luggage & Storage"},
	{"bag", "Luggage & Storage"},
	{"clothing", "Clothing & Protection"},
	{"protection", "Clothing & Protection"},
	{"helmet", "Clothing & Protection"},
	{"glove", "Clothing & Protection"},
	{"cover", "Covers & Accessories"},
	{"accessory", "Covers & Accessories"},
}

// Categorize derives a shop category from the supplier's free-text
// category hint.
func Categorize(hint string) string {
	if hint == "" {
		return Uncategorized
	}
	hint = strings.ToLower(hint)
	for _, entry := range categoryTable {
		if strings.Contains(hint, entry.keyword) {
			return entry.category
		}
	}
	return Uncategorized
}
