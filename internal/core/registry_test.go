package core

import (
	"strings"
	"testing"

	"github.com/JonMunkholm/labtrack/internal/records"
)

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(
		Sheet{Key: "sao-lucas", Label: "São Lucas", Kind: records.KindExam, SpreadsheetID: "book-1", Public: true},
		Sheet{Key: "sao-joao", Kind: records.KindExam, SpreadsheetID: "book-2"},
		Sheet{Key: "recoleta", Kind: records.KindRecoleta, SpreadsheetID: "book-3"},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	if s, ok := r.Get("sao-joao"); !ok || s.Label != "sao-joao" {
		t.Errorf("Get(sao-joao) = %+v, %v; want label defaulted to key", s, ok)
	}
	if got := r.ByKind(records.KindExam); len(got) != 2 {
		t.Errorf("ByKind(exam) returned %d sheets, want 2", len(got))
	}
	if got := r.Public(); len(got) != 1 || got[0].Key != "sao-lucas" {
		t.Errorf("Public() = %+v, want only sao-lucas", got)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}
}

func TestNewRegistry_Errors(t *testing.T) {
	_, err := NewRegistry(
		Sheet{Key: "", Kind: records.KindExam, SpreadsheetID: "a"},
		Sheet{Key: "x", Kind: "lab", SpreadsheetID: "a"},
		Sheet{Key: "y", Kind: records.KindExam},
		Sheet{Key: "z", Kind: records.KindExam, SpreadsheetID: "shared"},
		Sheet{Key: "z", Kind: records.KindExam, SpreadsheetID: "other"},
		Sheet{Key: "w", Kind: records.KindRecoleta, SpreadsheetID: "shared"},
	)
	if err == nil {
		t.Fatal("NewRegistry() should fail")
	}
	for _, want := range []string{"empty key", `unknown kind "lab"`, "y: missing spreadsheet id", "z: registered twice", "w: spreadsheet already holds exam records"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err.Error(), want)
		}
	}
}
