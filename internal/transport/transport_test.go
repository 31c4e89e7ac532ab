package transport

import "testing"

func TestSchemeFor(t *testing.T) {
	cases := []struct {
		scheme  string
		want    string
		wantErr bool
	}{
		{"https", WebTransportALPN, false},
		{"moqt", NativeALPN, false},
		{"ftp", "", true},
	}
	for _, c := range cases {
		got, err := SchemeFor(c.scheme)
		if c.wantErr {
			if err == nil {
				t.Errorf("SchemeFor(%q): expected error", c.scheme)
			}
			continue
		}
		if err != nil {
			t.Errorf("SchemeFor(%q): unexpected error: %v", c.scheme, err)
		}
		if got != c.want {
			t.Errorf("SchemeFor(%q) = %q, want %q", c.scheme, got, c.want)
		}
	}
}
