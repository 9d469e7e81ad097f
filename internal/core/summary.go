package core

// CategoryTotal is spend aggregated under one category.
type CategoryTotal struct {
	CategoryID int64
	Name       string
	Amount     Money
}

// MonthOverview is a compact spending summary for one user in one
// year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Total      Money
	ByCategory []CategoryTotal
}
