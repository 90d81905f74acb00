package domain

// SortOrder is ascending or descending.
type SortOrder int

const (
	Desc SortOrder = iota
	Asc
)

func ParseSortOrder(raw string) (SortOrder, bool) {
	switch raw {
	case "", "desc", "-1":
		return Desc, true
	case "asc", "1":
		return Asc, true
	}
	return Desc, false
}

// Page is an offset window: skip = (Number-1)*Limit.
type Page struct {
	Number int
	Limit  int
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// TotalPages returns ceil(total/limit).
func (p Page) TotalPages(total int64) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}
