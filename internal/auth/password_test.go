package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordEnforcesMinimumCost(t *testing.T) {
	hash, err := HashPassword("s3cret!", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost: %v", err)
	}
	if cost != MinCost {
		t.Fatalf("expected cost %d, got %d", MinCost, cost)
	}
	if err := VerifyPassword(hash, "s3cret!"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword("", MinCost); err == nil {
		t.Fatal("expected error")
	}
	if err := VerifyPassword("", "x"); err == nil {
		t.Fatal("expected error for empty hash")
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	if !NeedsRehash(string(weak), MinCost) {
		t.Fatal("expected weak hash to need rehash")
	}
	if !NeedsRehash("garbage", MinCost) {
		t.Fatal("expected garbage hash to need rehash")
	}
}
