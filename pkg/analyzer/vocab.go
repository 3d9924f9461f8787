package analyzer

import "strings"

// KPICategory is the closed set of business metric categories a column
// header can map to.
type KPICategory string

const (
	CategoryRevenue KPICategory = "revenue"
	CategoryProfit  KPICategory = "profit"
	CategoryCost    KPICategory = "cost"
	CategoryGrowth  KPICategory = "growth"
	CategoryCount   KPICategory = "count"
	CategoryRatio   KPICategory = "ratio"
	CategoryPeriod  KPICategory = "period"
	CategoryGeneric KPICategory = "generic"
)

// VocabularyVersion identifies the header-to-category mapping below. Bump it
// whenever keywords are added or moved so stored narratives can be traced to
// the vocabulary that produced them.
const VocabularyVersion = 2

// vocabulary maps normalized header substrings to categories, Finnish and
// English. Entry order is match precedence: "Growth Rate" must resolve to
// growth before the ratio keywords see "rate", and "Monthly Revenue" to
// revenue before the period keywords see "month".
var vocabulary = []struct {
	category KPICategory
	keywords []string
}{
	{CategoryRevenue, []string{
		"liikevaihto", "myynti", "tulot", "revenue", "sales", "income", "turnover",
	}},
	{CategoryProfit, []string{
		"voitto", "tulos", "kate", "profit", "ebit", "ebitda", "margin",
	}},
	{CategoryCost, []string{
		"kulut", "kustannukset", "menot", "cost", "expense", "cogs", "overhead",
	}},
	{CategoryGrowth, []string{
		"kasvu", "muutos", "growth", "change", "increase", "delta", "variance", "yoy", "mom",
	}},
	{CategoryCount, []string{
		"lukumäärä", "määrä", "kpl", "count", "units", "quantity", "volume", "headcount",
	}},
	{CategoryRatio, []string{
		"suhde", "osuus", "ratio", "rate", "share", "percent", "pct",
	}},
	{CategoryPeriod, []string{
		"päivämäärä", "kuukausi", "kvartaali", "neljännes", "vuosi", "viikko", "jakso", "aika",
		"date", "month", "quarter", "year", "week", "period", "day",
	}},
}

// Classify maps a column header to its KPI category. Matching is
// case-insensitive substring matching over the vocabulary; headers that hit
// nothing are generic: still eligible for trend and anomaly analysis but
// excluded from KPI-labeled narratives.
func Classify(header string) KPICategory {
	h := strings.ToLower(strings.TrimSpace(header))
	if h == "" {
		return CategoryGeneric
	}
	for _, entry := range vocabulary {
		for _, kw := range entry.keywords {
			if strings.Contains(h, kw) {
				return entry.category
			}
		}
	}
	return CategoryGeneric
}

// kpiCategory reports whether a category names a business metric, as opposed
// to a period axis or an unclassified numeric column.
func kpiCategory(c KPICategory) bool {
	switch c {
	case CategoryRevenue, CategoryProfit, CategoryCost, CategoryGrowth, CategoryCount, CategoryRatio:
		return true
	}
	return false
}
