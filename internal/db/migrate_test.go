package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(Migrations(), "*.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) < 2 {
		t.Fatalf("expected embedded migrations, got %v", files)
	}

	body, err := fs.ReadFile(Migrations(), "001_wallet_state.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "wallet_state") {
		t.Error("001 must create wallet_state")
	}
}
