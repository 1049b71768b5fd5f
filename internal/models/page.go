package models

// Page selects a window of a listing. A zero Size means everything.
type Page struct {
	Number int64
	Size   int64
}

func (p Page) Skip() int64 {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}
