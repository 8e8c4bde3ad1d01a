package commerce_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vendo/commerce-engine/commerce"
)

func qty(v string) decimal.Decimal { return commerce.MustDecimal(v) }

func item(id commerce.ProductID, quantity string) commerce.SaleItem {
	pid := id
	return commerce.SaleItem{ProductID: &pid, Quantity: qty(quantity)}
}

func input(id commerce.ProductID, quantity string) commerce.SaleItemInput {
	return commerce.SaleItemInput{ProductID: id, Quantity: qty(quantity)}
}

// =============================================================================
// STOCK DIFF TESTS
// =============================================================================

func TestStockDiff_Create(t *testing.T) {
	// GIVEN: No old items
	// WHEN: A sale commits 3 of P1 and 2 of P2
	// THEN: Both products are debited

	diff := commerce.StockDiff(nil, []commerce.SaleItemInput{
		input("p1", "3"),
		input("p2", "2"),
	})

	if len(diff) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(diff))
	}
	if !diff["p1"].Equal(qty("-3")) {
		t.Errorf("expected p1 delta -3, got %v", diff["p1"])
	}
	if !diff["p2"].Equal(qty("-2")) {
		t.Errorf("expected p2 delta -2, got %v", diff["p2"])
	}
}

func TestStockDiff_Delete(t *testing.T) {
	// GIVEN: A sale holding 3 of P1
	// WHEN: The sale is removed (no new items)
	// THEN: P1 is credited back

	diff := commerce.StockDiff([]commerce.SaleItem{item("p1", "3")}, nil)

	if !diff["p1"].Equal(qty("3")) {
		t.Errorf("expected p1 delta +3, got %v", diff["p1"])
	}
}

func TestStockDiff_QuantityChange(t *testing.T) {
	// GIVEN: A sale holding 3 of P1
	// WHEN: The item list is replaced with 5 of P1
	// THEN: The net delta is -2

	diff := commerce.StockDiff(
		[]commerce.SaleItem{item("p1", "3")},
		[]commerce.SaleItemInput{input("p1", "5")},
	)

	if len(diff) != 1 {
		t.Fatalf("expected 1 delta, got %d", len(diff))
	}
	if !diff["p1"].Equal(qty("-2")) {
		t.Errorf("expected p1 delta -2, got %v", diff["p1"])
	}
}

func TestStockDiff_UnchangedItemsCancelOut(t *testing.T) {
	// GIVEN: A sale holding 3 of P1 and 1 of P2
	// WHEN: The replacement keeps P1 x3 but drops P2 and adds P3 x4
	// THEN: P1 is pruned; only P2 (+1) and P3 (-4) remain

	diff := commerce.StockDiff(
		[]commerce.SaleItem{item("p1", "3"), item("p2", "1")},
		[]commerce.SaleItemInput{input("p1", "3"), input("p3", "4")},
	)

	if len(diff) != 2 {
		t.Fatalf("expected 2 deltas, got %d: %v", len(diff), diff)
	}
	if _, ok := diff["p1"]; ok {
		t.Error("zero delta for p1 should be pruned")
	}
	if !diff["p2"].Equal(qty("1")) {
		t.Errorf("expected p2 delta +1, got %v", diff["p2"])
	}
	if !diff["p3"].Equal(qty("-4")) {
		t.Errorf("expected p3 delta -4, got %v", diff["p3"])
	}
}

func TestStockDiff_DuplicateProductLinesSum(t *testing.T) {
	// GIVEN: Two new lines referencing the same product
	// WHEN: The diff is computed
	// THEN: Their quantities net into one entry

	diff := commerce.StockDiff(nil, []commerce.SaleItemInput{
		input("p1", "2"),
		input("p1", "1.5"),
	})

	if !diff["p1"].Equal(qty("-3.5")) {
		t.Errorf("expected p1 delta -3.5, got %v", diff["p1"])
	}
}

func TestStockDiff_ClearedReferenceContributesNothing(t *testing.T) {
	// GIVEN: An old item whose product reference was cleared
	// WHEN: The sale is deleted
	// THEN: The orphaned item credits nothing

	orphan := commerce.SaleItem{ProductID: nil, Quantity: qty("4")}
	diff := commerce.StockDiff([]commerce.SaleItem{orphan, item("p1", "2")}, nil)

	if len(diff) != 1 {
		t.Fatalf("expected 1 delta, got %d", len(diff))
	}
	if !diff["p1"].Equal(qty("2")) {
		t.Errorf("expected p1 delta +2, got %v", diff["p1"])
	}
}

func TestStockDiff_FractionalQuantities(t *testing.T) {
	// Decimal arithmetic: 0.1+0.2 style drift must not appear.
	diff := commerce.StockDiff(
		[]commerce.SaleItem{item("p1", "0.1"), item("p1", "0.2")},
		[]commerce.SaleItemInput{input("p1", "0.3")},
	)

	if len(diff) != 0 {
		t.Errorf("expected exact cancellation, got %v", diff)
	}
}

func TestSortedDeltas_Deterministic(t *testing.T) {
	diff := map[commerce.ProductID]decimal.Decimal{
		"c": qty("1"),
		"a": qty("-2"),
		"b": qty("3"),
	}

	out := commerce.SortedDeltas(diff)

	want := []commerce.ProductID{"a", "b", "c"}
	for i, id := range want {
		if out[i].ProductID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, out[i].ProductID)
		}
	}
}
