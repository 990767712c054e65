package buf

import "testing"

func TestEndianHelpers(t *testing.T) {
	data := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}

	if got := U32LE(data); got != 0x67452301 {
		t.Fatalf("U32LE = 0x%x, want 0x67452301", got)
	}
	if got, ok := U32At(data, 4); !ok || got != 0xefcdab89 {
		t.Fatalf("U32At(4) = 0x%x,%v want 0xefcdab89,true", got, ok)
	}
	if _, ok := U32At(data, 5); ok {
		t.Fatalf("U32At(5) should fail on an 8-byte buffer")
	}

	short := []byte{0xAA}
	if U32LE(short) != 0 {
		t.Fatalf("short reads should return 0")
	}
	if PutU32LE(short, 1) {
		t.Fatalf("PutU32LE should refuse a short buffer")
	}
}

func TestPutU32At(t *testing.T) {
	data := make([]byte, 8)
	if !PutU32At(data, 4, 0xdeadbeef) {
		t.Fatalf("PutU32At failed in bounds")
	}
	if data[4] != 0xef || data[7] != 0xde {
		t.Fatalf("PutU32At wrote % x", data)
	}
	if PutU32At(data, 6, 1) {
		t.Fatalf("PutU32At should fail past the end")
	}
	if PutU32At(data, -1, 1) {
		t.Fatalf("PutU32At should reject negative offset")
	}
}
