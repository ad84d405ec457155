package steamguard

import (
	"strings"
	"testing"
	"time"
)

const secret = "c2VjcmV0LXNoYXJlZC1rZXk="

func TestGenerateAuthCode_Shape(t *testing.T) {
	code, err := GenerateAuthCode(secret, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("GenerateAuthCode: %v", err)
	}
	if len(code) != codeLength {
		t.Fatalf("len(code) = %d, want %d", len(code), codeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q contains %q outside the alphabet", code, r)
		}
	}
}

func TestGenerateAuthCode_StableWithinPeriod(t *testing.T) {
	start := time.Unix(1700000010, 0) // 1700000010 is a multiple of 30
	a, _ := GenerateAuthCode(secret, start)
	b, _ := GenerateAuthCode(secret, start.Add(29*time.Second))
	if a != b {
		t.Errorf("codes differ within one period: %q vs %q", a, b)
	}
}

func TestGenerateAuthCode_DependsOnSecret(t *testing.T) {
	at := time.Unix(1700000010, 0)
	a, _ := GenerateAuthCode(secret, at)
	b, _ := GenerateAuthCode("b3RoZXItc2VjcmV0", at)
	if a == b {
		t.Errorf("different secrets produced the same code %q", a)
	}
}

func TestGenerateAuthCode_BadSecret(t *testing.T) {
	if _, err := GenerateAuthCode("not base64!", time.Now()); err == nil {
		t.Fatal("expected error for invalid base64 secret")
	}
}

func TestValidSecret(t *testing.T) {
	if !ValidSecret(secret) {
		t.Error("ValidSecret(valid) = false")
	}
	if ValidSecret("") {
		t.Error("ValidSecret(\"\") = true")
	}
	if ValidSecret("your_shared_secret_1_here") {
		t.Error("ValidSecret(placeholder) = true")
	}
}
