package models

import (
	"encoding/json"
	"testing"

	"github.com/atinyakov/EnrollKeeper/internal/catalog"
)

func TestAccounts_NextID(t *testing.T) {
	cases := []struct {
		name string
		in   Accounts
		want int64
	}{
		{"empty", nil, 1},
		{"sequential", Accounts{{ID: 1}, {ID: 2}}, 3},
		{"gap", Accounts{{ID: 1}, {ID: 7}, {ID: 3}}, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.NextID(); got != tc.want {
				t.Errorf("NextID() = %d; want %d", got, tc.want)
			}
		})
	}
}

func TestAccounts_Find(t *testing.T) {
	accs := Accounts{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}}

	got, ok := accs.Find("bob")
	if !ok || got.ID != 2 {
		t.Fatalf("Find(bob) = %+v, %v; want id 2", got, ok)
	}
	if _, ok := accs.Find("Alice"); ok {
		t.Error("Find must be case-sensitive")
	}
}

func TestEnrollments_Has(t *testing.T) {
	e := Enrollments{"alice": {{Course: "Основы Git"}}}
	if !e.Has("alice", "Основы Git") {
		t.Error("expected alice to have the course")
	}
	if e.Has("alice", "Docker") || e.Has("bob", "Основы Git") {
		t.Error("unexpected match")
	}
}

func TestEnrollment_UnmarshalLegacy(t *testing.T) {
	var e Enrollments
	raw := `{"alice":["Основы Git",{"course":"Docker для начинающих","description":"d","price":"100","progress":3}]}`
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(e["alice"]) != 2 {
		t.Fatalf("got %d entries; want 2", len(e["alice"]))
	}
	legacy := e["alice"][0]
	if legacy.Course != "Основы Git" || legacy.Price != UnspecifiedPrice || legacy.Progress != 0 {
		t.Errorf("legacy entry = %+v", legacy)
	}
	if legacy.Description != catalog.Describe("Основы Git") {
		t.Errorf("legacy description = %q", legacy.Description)
	}
	if got := e["alice"][1]; got.Price != "100" || got.Progress != 3 {
		t.Errorf("object entry = %+v", got)
	}
}

func TestEnrollment_UnmarshalRejectsOtherShapes(t *testing.T) {
	var e Enrollments
	if err := json.Unmarshal([]byte(`{"alice":[42]}`), &e); err == nil {
		t.Fatal("expected error for numeric entry")
	}
}
