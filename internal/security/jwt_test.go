package security

import (
	"testing"
	"time"

	"github.com/mtandao-wifi/hotspot-portal/internal/models"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	admin := &models.Admin{ID: 7, Username: "root", Role: models.RoleAdmin}

	token, errSign := NewAdminToken("secret", time.Hour, admin)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}

	claims, errParse := ParseAdminToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.AdminID != 7 || claims.Username != "root" || claims.Role != models.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAdminTokenWrongSecret(t *testing.T) {
	admin := &models.Admin{ID: 7, Username: "root", Role: models.RoleAdmin}
	token, errSign := NewAdminToken("secret", time.Hour, admin)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	if _, errParse := ParseAdminToken("other-secret", token); errParse == nil {
		t.Fatal("expected parse to fail with the wrong secret")
	}
}

func TestAdminTokenExpired(t *testing.T) {
	admin := &models.Admin{ID: 7, Username: "root", Role: models.RoleAdmin}
	token, errSign := NewAdminToken("secret", -time.Minute, admin)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	if _, errParse := ParseAdminToken("secret", token); errParse == nil {
		t.Fatal("expected parse to fail for an expired token")
	}
}

func TestAdminTokenEmptySecret(t *testing.T) {
	if _, errSign := NewAdminToken("", time.Hour, &models.Admin{ID: 1}); errSign == nil {
		t.Fatal("expected an error for an empty secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hashed, errHash := HashPassword("correct horse")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if !CheckPassword(hashed, "correct horse") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hashed, "wrong") {
		t.Fatal("expected mismatched password to fail")
	}
}
