package repository

import "github.com/eslsoft/masteryctx/pkg/filterexpr"

var listSnapshotsSchema = filterexpr.ResourceSchema{
	Filter: map[string]filterexpr.FilterField{
		"student_id": {
			Kind: filterexpr.KindNumber,
			Ops:  map[filterexpr.Op]string{filterexpr.OpEQ: "StudentID"},
		},
		"as_of": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpGTE: "AsOfFrom",
				filterexpr.OpLTE: "AsOfTo",
			},
		},
	},
	Order: filterexpr.OrderSchema{
		DefaultPrimary:     "created_at",
		DefaultPrimaryDesc: true,
		FallbackKey:        "id",
		FallbackDesc:       false,
		Fields: map[string]filterexpr.OrderField{
			"created_at": {Expr: "created_at", Nulls: "last"},
			"as_of":      {Expr: "as_of", Nulls: "last"},
			"student_id": {Expr: "student_id", Nulls: "last"},
			"id":         {Expr: "id", Nulls: "last"},
		},
	},
}
