package buf

import (
	"math"
	"testing"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxInt, 1); ok {
		t.Fatalf("expected overflow when adding to MaxInt")
	}
	if _, ok := AddOverflowSafe(math.MinInt, -1); ok {
		t.Fatalf("expected underflow when subtracting from MinInt")
	}
}

func TestMulOverflowSafe(t *testing.T) {
	if p, ok := MulOverflowSafe(6, 7); !ok || p != 42 {
		t.Fatalf("MulOverflowSafe(6,7)=%d,%v want 42,true", p, ok)
	}
	if p, ok := MulOverflowSafe(0, math.MaxInt); !ok || p != 0 {
		t.Fatalf("MulOverflowSafe with zero should be 0,true")
	}
	if _, ok := MulOverflowSafe(math.MaxInt/2+1, 2); ok {
		t.Fatalf("expected overflow")
	}
	if _, ok := MulOverflowSafe(-1, 2); ok {
		t.Fatalf("negative operands are rejected")
	}
}

func TestCheckListBounds(t *testing.T) {
	end, err := CheckListBounds(64, 16, 4, 8)
	if err != nil || end != 48 {
		t.Fatalf("CheckListBounds = %d,%v want 48,nil", end, err)
	}
	if _, err := CheckListBounds(64, 16, 7, 8); err == nil {
		t.Fatalf("expected bounds error")
	}
	if _, err := CheckListBounds(64, 0, math.MaxInt, 8); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestSlice(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}
	if got, ok := Slice(data, 1, 3); !ok || len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Slice returned unexpected result: %v, %v", got, ok)
	}
	if _, ok := Slice(data, 4, 2); ok {
		t.Fatalf("Slice should fail when extending beyond len")
	}
	if got, ok := Slice(data, 5, 0); !ok || len(got) != 0 {
		t.Fatalf("Slice should allow an empty range at len")
	}
	if _, ok := Slice(data, -1, 1); ok {
		t.Fatalf("Slice should reject negative offset")
	}
}

func TestAlign(t *testing.T) {
	if got := AlignUp(0x1001, 0x1000); got != 0x2000 {
		t.Fatalf("AlignUp = 0x%x", got)
	}
	if got := AlignUp(0x2000, 0x1000); got != 0x2000 {
		t.Fatalf("AlignUp aligned = 0x%x", got)
	}
	if got := AlignDown(0x2fff, 0x1000); got != 0x2000 {
		t.Fatalf("AlignDown = 0x%x", got)
	}
}
