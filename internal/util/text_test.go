package util

import "testing"

func TestCompanyKey(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "Acme, Inc.", want: "acme"},
		{input: "Stripe", want: "stripe"},
		{input: "Goldman Sachs & Co", want: "goldmansachs"},
		{input: "  Data-Dog LLC ", want: "datadog"},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			if got := CompanyKey(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestTitleWords(t *testing.T) {
	if got := TitleWords("jane  o doe"); got != "Jane O Doe" {
		t.Fatalf("got %q", got)
	}
	if got := TitleWords(""); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestNonEmptyPtr(t *testing.T) {
	if NonEmptyPtr("   ") != nil {
		t.Fatal("blank should be nil")
	}
	if v := NonEmptyPtr(" x "); v == nil || *v != "x" {
		t.Fatalf("got %v", v)
	}
}

func TestDiceCoefficient(t *testing.T) {
	if DiceCoefficient("night", "night") != 1 {
		t.Fatal("identical strings should score 1")
	}
	if DiceCoefficient("a", "b") != 0 {
		t.Fatal("single runes have no bigrams")
	}
	got := DiceCoefficient("night", "nacht")
	if got != 0.25 {
		t.Fatalf("got %v", got)
	}
}
