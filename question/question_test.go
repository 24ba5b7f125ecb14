package question

import (
	"testing"
	"time"
)

func rec(text string, own int) Record {
	return Record{
		Text:       text,
		Choices:    []string{"yes", "no"},
		OwnAnswer:  own,
		Acceptable: []bool{own == 0, own == 1},
		Importance: 1,
	}
}

func TestMerge_EmptyFreshKeepsPrev(t *testing.T) {
	prev := []Record{rec("Q1", 0), rec("Q2", 1)}

	got := Merge(prev, nil)
	if len(got) != 2 {
		t.Fatalf("Merge(prev, nil): got %d records, want 2", len(got))
	}
	if got[0].Text != "Q1" || got[1].Text != "Q2" {
		t.Errorf("Merge(prev, nil) lost or reordered records: %+v", got)
	}
}

func TestMerge_FreshWinsOnCollision(t *testing.T) {
	prev := []Record{rec("Q1", 0)}
	fresh := []Record{rec("Q1", 1)}

	got := Merge(prev, fresh)
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].OwnAnswer != 1 {
		t.Errorf("OwnAnswer = %d, want 1 (fresh copy must win)", got[0].OwnAnswer)
	}
}

func TestMerge_Union(t *testing.T) {
	prev := []Record{rec("A", 0), rec("B", 1)}
	fresh := []Record{rec("C", 0)}

	got := Merge(prev, fresh)
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	seen := map[string]bool{}
	for _, r := range got {
		seen[r.Text] = true
	}
	for _, want := range []string{"A", "B", "C"} {
		if !seen[want] {
			t.Errorf("missing %q in merged set", want)
		}
	}
}

func TestMerge_DuplicateWithinFresh(t *testing.T) {
	fresh := []Record{rec("Q1", 0), rec("Q1", 1)}

	got := Merge(nil, fresh)
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].OwnAnswer != 1 {
		t.Errorf("OwnAnswer = %d, want 1 (last write wins)", got[0].OwnAnswer)
	}
}

func TestMerge_IdentityIsExactText(t *testing.T) {
	// Whitespace and case differences are distinct questions.
	prev := []Record{rec("Do you smoke?", 0)}
	fresh := []Record{rec("do you smoke?", 1), rec("Do you smoke? ", 1)}

	got := Merge(prev, fresh)
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3 (no fuzzy matching)", len(got))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"valid", rec("Q", 0), false},
		{"empty text", Record{Choices: []string{"a"}, Acceptable: []bool{true}}, true},
		{"no choices", Record{Text: "Q"}, true},
		{"own answer out of range", Record{Text: "Q", Choices: []string{"a"}, OwnAnswer: 1, Acceptable: []bool{true}}, true},
		{"negative own answer", Record{Text: "Q", Choices: []string{"a"}, OwnAnswer: -1, Acceptable: []bool{true}}, true},
		{"mask length mismatch", Record{Text: "Q", Choices: []string{"a", "b"}, OwnAnswer: 0, Acceptable: []bool{true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewLabel_SortsChronologically(t *testing.T) {
	a := NewLabel(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	b := NewLabel(time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC))
	if !(a < b) {
		t.Errorf("labels not chronologic: %q >= %q", a, b)
	}
	if a != "20260301_100000" {
		t.Errorf("label format: got %q", a)
	}
}
