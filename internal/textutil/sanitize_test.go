package textutil

import "testing"

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "unknown"},
		{"   ", "unknown"},
		{"Scene-01", "scene-01"},
		{"Café Opening", "cafe_opening"},
		{"a/b\\c:d", "a_b_c_d"},
		{"__hello__", "hello"},
		{"3f2a9c1e-uuid", "3f2a9c1e-uuid"},
		{"日本", "unknown"},
		{"x  &&  y", "x_y"},
	}
	for _, tc := range cases {
		if got := SanitizeToken(tc.in); got != tc.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
