package auth

import (
	"testing"
	"time"
)

func TestLegacyTokenRoundTrip(t *testing.T) {
	token, err := IssueLegacyToken("user-1", "ana@example.com", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ValidateLegacyToken(token, "secret")
	if err != nil {
		t.Fatalf("ValidateLegacyToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "ana@example.com" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ValidateLegacyToken(token, "other"); err == nil {
		t.Error("token accepted with the wrong secret")
	}
}

func TestLegacyTokenExpired(t *testing.T) {
	token, err := IssueLegacyToken("user-1", "", "secret", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateLegacyToken(token, "secret"); err == nil {
		t.Error("expired token accepted")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v", tt.header, got, ok)
		}
	}
}
