package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		paging Paging
		total  int
		expect Reconciliation
	}{
		{name: "in range", paging: Paging{Page: 3, PageSize: 10}, total: 95, expect: Reconciliation{Page: 3, TotalPages: 10}},
		{name: "past the end", paging: Paging{Page: 11, PageSize: 10}, total: 95, expect: Reconciliation{Page: 10, TotalPages: 10, Adjusted: true}},
		{name: "exact multiple", paging: Paging{Page: 10, PageSize: 10}, total: 100, expect: Reconciliation{Page: 10, TotalPages: 10}},
		{name: "no results", paging: Paging{Page: 4, PageSize: 10}, total: 0, expect: Reconciliation{Page: 1, TotalPages: 1, Adjusted: true}},
		{name: "no results first page", paging: Paging{Page: 1, PageSize: 10}, total: 0, expect: Reconciliation{Page: 1, TotalPages: 1}},
		{name: "page below one", paging: Paging{Page: 0, PageSize: 10}, total: 30, expect: Reconciliation{Page: 1, TotalPages: 3, Adjusted: true}},
		{name: "default page size", paging: Paging{Page: 2}, total: 30, expect: Reconciliation{Page: 2, TotalPages: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, Reconcile(tt.paging, tt.total))
		})
	}
}

func TestReconcileConverges(t *testing.T) {
	t.Parallel()

	for total := 0; total <= 120; total += 7 {
		for pageSize := 1; pageSize <= 30; pageSize += 4 {
			for page := -1; page <= 40; page += 3 {
				rec := Reconcile(Paging{Page: page, PageSize: pageSize}, total)

				want := max(1, (total+pageSize-1)/pageSize)
				assert.Equal(t, want, rec.TotalPages)
				assert.GreaterOrEqual(t, rec.Page, 1)
				assert.LessOrEqual(t, rec.Page, rec.TotalPages)

				again := Reconcile(Paging{Page: rec.Page, PageSize: pageSize}, total)
				assert.False(t, again.Adjusted, "resubmitting page %d adjusted again", rec.Page)
				assert.Equal(t, rec.Page, again.Page)
			}
		}
	}
}
