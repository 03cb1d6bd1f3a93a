package repository

import (
	"math"
	"testing"
)

func TestPaginationOffset(t *testing.T) {
	tests := []struct {
		in   Pagination
		want int64
	}{
		{Pagination{}, 0},
		{Pagination{PageNo: 3, PageSize: 10}, 20},
		{Pagination{PageNo: math.MaxInt32, PageSize: 1000}, (math.MaxInt32 - 1) * MaxPageSize},
	}
	for _, tt := range tests {
		p := tt.in
		p.Normalize()
		if got := p.Offset(); got != tt.want {
			t.Fatalf("Offset(%+v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
