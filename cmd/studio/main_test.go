package main

import (
	"strings"
	"testing"
)

func TestMaskKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", "*****"},
		{"AIzaSyABCDEFGH1234", "AIza**********1234"},
	}
	for _, tc := range tests {
		if got := maskKey(tc.in); got != tc.want {
			t.Fatalf("maskKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCredentialSetRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"credential", "set"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing key")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Fatalf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestCredentialStatusRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"credential", "status"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}
