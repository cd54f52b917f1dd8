package domain

import "testing"

func TestParsePartialDate_PrecisionAndPadding(t *testing.T) {
	cases := []struct {
		in        string
		wantValue string
		wantPrec  Precision
	}{
		{in: "1998", wantValue: "1998-01-01", wantPrec: PrecisionYear},
		{in: "1998-03", wantValue: "1998-03-01", wantPrec: PrecisionMonth},
		{in: "1998-03-15", wantValue: "1998-03-15", wantPrec: PrecisionDay},
		{in: " 1991-12 ", wantValue: "1991-12-01", wantPrec: PrecisionMonth},
	}
	for _, tc := range cases {
		d, err := ParsePartialDate(tc.in)
		if err != nil {
			t.Fatalf("ParsePartialDate(%q) 不期望错误：%v", tc.in, err)
		}
		if d.Value() != tc.wantValue || d.Precision() != tc.wantPrec {
			t.Fatalf("ParsePartialDate(%q)=%s，期望 %s(%s)", tc.in, d, tc.wantValue, tc.wantPrec)
		}
	}
}

func TestParsePartialDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "1998-03-15-01", "1998--01", "-03"} {
		if _, err := ParsePartialDate(in); err == nil {
			t.Fatalf("ParsePartialDate(%q) 期望错误", in)
		}
	}
}

func TestStripAnnotations(t *testing.T) {
	cases := map[string]string{
		"1998-03 [1]":    "1998-03",
		"1998-03[1][2]":  "1998-03",
		"1998":           "1998",
		" 1990-10-20 ":   "1990-10-20",
		"1998 [note a] ": "1998",
	}
	for in, want := range cases {
		if got := StripAnnotations(in); got != want {
			t.Fatalf("StripAnnotations(%q)=%q，期望 %q", in, got, want)
		}
	}

	d, err := ParsePartialDate(StripAnnotations("1998-03 [1]"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if d.Value() != "1998-03-01" || d.Precision() != PrecisionMonth {
		t.Fatalf("解析结果不符合预期：%s", d)
	}
}
