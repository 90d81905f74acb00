package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordAndCheckPassword(t *testing.T) {
	hash, err := HashPasswordWithCost("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "s3cret" {
		t.Fatalf("expected opaque hash, got %q", hash)
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatalf("expected password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected password check to fail")
	}
	if CheckPassword("s3cret", "") {
		t.Fatalf("empty hash must never match")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	a, _ := HashPasswordWithCost("same-password", bcrypt.MinCost)
	b, _ := HashPasswordWithCost("same-password", bcrypt.MinCost)
	if a == b {
		t.Fatalf("expected distinct salts per hash")
	}
}

func TestHashPasswordDefaultCost(t *testing.T) {
	hash, err := HashPasswordWithCost("s3cret", 0)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("read cost: %v", err)
	}
	if cost != DefaultCost {
		t.Fatalf("expected cost %d, got %d", DefaultCost, cost)
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("secret"); err != nil {
		t.Fatalf("expected 6 char password to pass, got: %v", err)
	}
	if err := ValidatePassword("abc"); err != ErrPasswordTooShort {
		t.Fatalf("expected short password to fail, got %v", err)
	}
	if err := ValidatePassword(strings.Repeat("a", 73)); err != ErrPasswordTooLong {
		t.Fatalf("expected long password to fail, got %v", err)
	}
	if err := ValidatePassword("abc\x00defg"); err == nil {
		t.Fatalf("expected NUL byte to fail")
	}
}
