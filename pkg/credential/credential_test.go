package credential

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Parsed
		wantErr bool
	}{
		{
			name: "well formed",
			in:   "sk-proj.acme.k_2J6Hqk3.some-secret-value",
			want: Parsed{ProjectID: "acme", KeyID: "k_2J6Hqk3", Secret: "some-secret-value"},
		},
		{
			name: "secret containing dots",
			in:   "sk-proj.acme.k_2J6Hqk3.part1.part2.part3",
			want: Parsed{ProjectID: "acme", KeyID: "k_2J6Hqk3", Secret: "part1.part2.part3"},
		},
		{name: "wrong prefix", in: "sk-live.acme.kid.secret", wantErr: true},
		{name: "too few segments", in: "sk-proj.acme.kid", wantErr: true},
		{name: "empty secret", in: "sk-proj.acme.kid.", wantErr: true},
		{name: "empty project", in: "sk-proj..kid.secret", wantErr: true},
		{name: "empty string", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	cases := []string{
		"sk-proj.acme.k_2J6Hqk3.some-secret-value",
		"sk-proj.p1.k1.s1",
	}
	for _, s := range cases {
		p, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", s, err)
		}
		if got := Format(p); got != s {
			t.Errorf("Format(Parse(%q)) = %q, want %q", s, got, s)
		}
	}
}
