package domain

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want Amount
	}{
		{"0", 0},
		{"1", 1_000_000},
		{"1.0", 1_000_000},
		{"0.01", 10_000},
		{"0.99", 990_000},
		{".5", 500_000},
		{"12.345678", 12_345_678},
		// Extra precision truncates toward zero.
		{"0.0000019", 1},
		{"1.9999999", 1_999_999},
		// Exactly the int64 micro ceiling.
		{"9223372036854.775807", 9_223_372_036_854_775_807},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseAmountRejects(t *testing.T) {
	// The last two sit just past the int64 micro ceiling: one in the integer
	// part, one smuggled in through the fraction.
	for _, in := range []string{"", "-1", "1.2.3", "abc", "1..2", "9223372036855", "9223372036854.999999"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q): expected error, got nil", in)
		}
	}
}

func TestAmountString(t *testing.T) {
	cases := []struct {
		in   Amount
		want string
	}{
		{0, "0"},
		{1_000_000, "1"},
		{990_000, "0.99"},
		{10_000, "0.01"},
		{12_345_678, "12.345678"},
		{1, "0.000001"},
	}
	for _, tc := range cases {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("Amount(%d).String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAmountRoundTrip(t *testing.T) {
	for _, a := range []Amount{0, 1, 10_000, 990_000, 123_456_789} {
		got, err := ParseAmount(a.String())
		if err != nil {
			t.Fatalf("round trip %d: %v", a, err)
		}
		if got != a {
			t.Errorf("round trip %d: got %d", a, got)
		}
	}
}
