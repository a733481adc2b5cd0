package pipeline

import "testing"

const linkedInBanner = "Notes:\n" +
	"\"When exporting your connection data, you may notice that some of the email addresses are missing. You will only see email addresses for connections who have allowed their connections to see or download it.\"\n" +
	"\n"

func TestDetectDelimiter(t *testing.T) {
	cases := []struct {
		name string
		text string
		want rune
	}{
		{
			name: "linkedin export with banner",
			text: linkedInBanner + "First Name,Last Name,URL,Email Address,Company,Position,Connected On\nAda,Lovelace,https://www.linkedin.com/in/ada,,Engines,Programmer,05 Mar 2024\n",
			want: ',',
		},
		{
			name: "semicolon",
			text: "First Name;Last Name;Email\nAda;Lovelace;ada@x.com\nAlan;Turing;alan@x.com\n",
			want: ';',
		},
		{
			name: "tab",
			text: "Name\tEmail\tCompany\nAda Lovelace\tada@x.com\tEngines, Ltd\n",
			want: '\t',
		},
		{
			name: "pipe",
			text: "name|email|company|title\nAda|ada@x.com|Engines|Programmer\n",
			want: '|',
		},
		{
			name: "comma inside quoted values",
			text: "Name,Company\n\"Lovelace; Ada\",\"Engines; Ltd\"\n\"Turing; Alan\",Bletchley\n",
			want: ',',
		},
		{
			name: "single column defaults to comma",
			text: "name\nAda\nAlan\n",
			want: ',',
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectDelimiter(splitRecords(tc.text)); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
