package domain

import "testing"

func TestParseLookupKey(t *testing.T) {
	cases := []struct {
		in   string
		raw  string
		kind KeyKind
		ok   bool
	}{
		{in: "111222333444", raw: "111222333444", kind: KeyBarcode, ok: true},
		{in: " 4 974365 60101 ", raw: "497436560101", kind: KeyBarcode, ok: true},
		{in: "Alex Kidd in Miracle World", raw: "Alex Kidd in Miracle World", kind: KeyName, ok: true},
		{in: "spy   vs spy", raw: "spy vs spy", kind: KeyName, ok: true},
		{in: "1942", raw: "1942", kind: KeyName, ok: true},
		{in: "   ", ok: false},
	}
	for _, tc := range cases {
		k, ok := ParseLookupKey(tc.in)
		if ok != tc.ok {
			t.Fatalf("ParseLookupKey(%q) ok=%v，期望 %v", tc.in, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if k.Raw != tc.raw || k.Kind != tc.kind {
			t.Fatalf("ParseLookupKey(%q)=%+v，期望 raw=%q kind=%s", tc.in, k, tc.raw, tc.kind)
		}
	}

	k, _ := ParseLookupKey("Sonic")
	if k.Barcode() != "" {
		t.Fatalf("名称键不应返回条形码")
	}
}
