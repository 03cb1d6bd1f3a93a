package repository

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Pagination holds pagination parameters for listing entities.
type Pagination struct {
	PageNo   int32
	PageSize int32
}

// Normalize fills in the default page and caps the page size.
func (p *Pagination) Normalize() {
	if p.PageNo <= 0 {
		p.PageNo = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

// Offset is the number of items before the current page. It is computed in
// int64 so large page numbers cannot wrap.
func (p *Pagination) Offset() int64 {
	return (int64(p.PageNo) - 1) * int64(p.PageSize)
}

type FilterOrder struct {
	Filter  string
	OrderBy string
}

func (fo *FilterOrder) GetFilter() string { return fo.Filter }

func (fo *FilterOrder) GetOrderBy() string { return fo.OrderBy }
