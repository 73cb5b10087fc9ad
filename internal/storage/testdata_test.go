package storage

import (
	"time"

	"github.com/Benny93/reachgraph/internal/index"
)

func testSnapshot() *Snapshot {
	order := index.ClassInfo{
		ClassHeader: index.ClassHeader{Path: "example.com/shop", Name: "Order", Kind: index.KindClass, FilePath: "order.go"},
		Fields: []index.FieldInfo{
			{Name: "ID", Type: index.TypeExpr{Display: "string", Primitive: true}, Exported: true},
		},
		Methods: []index.MethodInfo{{
			Name:      "Total",
			Signature: "Total()",
			Exported:  true,
			Calls: []index.CallInfo{{
				Target: index.MethodRef{Class: index.ClassRef{Path: "example.com/shop", Name: "Item"}, Signature: "Price()"},
			}},
		}},
	}
	item := index.ClassInfo{
		ClassHeader: index.ClassHeader{Path: "example.com/shop", Name: "Item", Kind: index.KindClass, FilePath: "item.go"},
		Methods:     []index.MethodInfo{{Name: "Price", Signature: "Price()", Exported: true}},
	}
	stringer := index.ClassInfo{
		ClassHeader: index.ClassHeader{Path: "fmt", Name: "Stringer", Kind: index.KindInterface, External: true},
	}

	return &Snapshot{
		Module:    "example.com/shop",
		IndexedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Classes:   []index.ClassInfo{order, item, stringer},
	}
}
