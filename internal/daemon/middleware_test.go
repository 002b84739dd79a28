package daemon

import "testing"

func TestSanitizePathCollapsesParameterizedSegments(t *testing.T) {
	cases := map[string]string{
		"/v1/status":        "/v1/status",
		"/v1/peers":         "/v1/peers",
		"/v1/group/create":  "/v1/group/:id",
		"/v1/group/create/": "/v1/group/:id",
	}
	for in, want := range cases {
		if got := sanitizePath(in); got != want {
			t.Errorf("sanitizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
