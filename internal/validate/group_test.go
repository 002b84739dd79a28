package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestGroupName(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrInvalidGroupName},
		{name: "valid ascii", input: "friends", wantErr: nil},
		{name: "exactly at budget", input: strings.Repeat("a", MaxGroupNameBytes), wantErr: nil},
		{name: "exceeds budget by one byte", input: strings.Repeat("a", MaxGroupNameBytes+1), wantErr: ErrInvalidGroupName},
		{name: "multi-byte rune pushes past budget", input: strings.Repeat("a", MaxGroupNameBytes-1) + "é", wantErr: ErrInvalidGroupName},
		{name: "invalid utf8", input: "abc\xff\xfe", wantErr: ErrInvalidGroupName},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := GroupName(tc.input)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("GroupName(%q) = %v, want nil", tc.input, err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("GroupName(%q) = %v, want %v", tc.input, err, tc.wantErr)
			}
		})
	}
}

func TestAccessCode(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrInvalidAccessCode},
		{name: "non-empty", input: "s3cret", wantErr: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AccessCode(tc.input)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("AccessCode(%q) = %v, want nil", tc.input, err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("AccessCode(%q) = %v, want %v", tc.input, err, tc.wantErr)
			}
		})
	}
}
