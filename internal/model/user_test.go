package model

import (
	"encoding/json"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestShowReward(t *testing.T) {
	reward := 500.0
	zero := 0.0
	tests := []struct {
		name     string
		item     Item
		expected bool
	}{
		{"lost with reward", Item{ItemType: ItemTypeLost, Reward: &reward}, true},
		{"found with reward", Item{ItemType: ItemTypeFound, Reward: &reward}, false},
		{"lost zero reward", Item{ItemType: ItemTypeLost, Reward: &zero}, false},
		{"lost no reward", Item{ItemType: ItemTypeLost}, false},
	}

	for _, tt := range tests {
		if got := tt.item.ShowReward(); got != tt.expected {
			t.Errorf("%s: ShowReward() = %v, want %v", tt.name, got, tt.expected)
		}
	}
}

func TestOwnerUnmarshal(t *testing.T) {
	var item Item
	if err := json.Unmarshal([]byte(`{"_id":"a","user":"u1"}`), &item); err != nil {
		t.Fatalf("unmarshal bare id: %v", err)
	}
	if item.User.ID != "u1" {
		t.Errorf("expected user id u1, got %q", item.User.ID)
	}

	if err := json.Unmarshal([]byte(`{"_id":"b","user":{"_id":"u2","name":"Ana","email":"ana@example.com"}}`), &item); err != nil {
		t.Fatalf("unmarshal embedded user: %v", err)
	}
	if item.User.ID != "u2" || item.User.Name != "Ana" || item.User.Email != "ana@example.com" {
		t.Errorf("unexpected user: %+v", item.User)
	}
}

func TestFiltersNormalize(t *testing.T) {
	got := Filters{Search: "  wallet ", Category: "Bags", City: "all", Province: ""}.Normalize()
	want := Filters{Search: "wallet", Category: "Bags"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestParseItemType(t *testing.T) {
	tests := map[string]string{
		"found":   ItemTypeFound,
		"FOUND":   ItemTypeFound,
		"lost":    ItemTypeLost,
		"unknown": ItemTypeLost,
		"":        ItemTypeLost,
	}
	for in, want := range tests {
		if got := ParseItemType(in); got != want {
			t.Errorf("ParseItemType(%q) = %q, want %q", in, got, want)
		}
	}
}
