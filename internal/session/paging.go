package session

// Reconciliation is the outcome of checking a requested page against a
// freshly reported total.
type Reconciliation struct {
	Page       int
	TotalPages int
	// Adjusted is set when the requested page was out of range. The result
	// fetched for it must be dropped and Page fetched instead.
	Adjusted bool
}

// Reconcile clamps the requested page to [1, max(1, ceil(total/pageSize))].
// Reconciling the returned page against the same total never adjusts again.
func Reconcile(p Paging, total int) Reconciliation {
	pageSize := p.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}

	totalPages := max(1, (total+pageSize-1)/pageSize)

	switch {
	case p.Page > totalPages:
		return Reconciliation{Page: totalPages, TotalPages: totalPages, Adjusted: true}
	case p.Page < 1:
		return Reconciliation{Page: 1, TotalPages: totalPages, Adjusted: true}
	default:
		return Reconciliation{Page: p.Page, TotalPages: totalPages}
	}
}
