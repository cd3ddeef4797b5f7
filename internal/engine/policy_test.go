package engine

import (
	"errors"
	"testing"

	"github.com/facefinder/facefinder/internal/face"
)

func records(refIndices ...int) []face.MatchRecord {
	out := make([]face.MatchRecord, 0, len(refIndices))
	for _, idx := range refIndices {
		out = append(out, face.MatchRecord{
			Box:      face.BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10},
			Score:    0.9,
			RefIndex: idx,
		})
	}
	return out
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{"individually", ModeIndividually, false},
		{"together", ModeTogether, false},
		{"", ModeIndividually, false},
		{"both", "", true},
		{"Individually", "", true},
	}

	for _, tc := range tests {
		t.Run("input="+tc.input, func(t *testing.T) {
			mode, err := ParseMode(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrUnknownPolicy) {
					t.Fatalf("expected ErrUnknownPolicy, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mode != tc.expected {
				t.Errorf("ParseMode(%q) = %q; want %q", tc.input, mode, tc.expected)
			}
		})
	}
}

func TestQualifiesIndividually(t *testing.T) {
	tests := []struct {
		name     string
		records  []face.MatchRecord
		refCount int
		expected bool
	}{
		{"no records", nil, 2, false},
		{"one record", records(0), 2, true},
		{"only second reference", records(1), 2, true},
		{"empty reference set", nil, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ModeIndividually.Qualifies(tc.records, tc.refCount)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Qualifies() = %v; want %v", got, tc.expected)
			}
		})
	}
}

func TestQualifiesTogether(t *testing.T) {
	tests := []struct {
		name     string
		records  []face.MatchRecord
		refCount int
		expected bool
	}{
		{"all references present", records(0, 1), 2, true},
		{"missing one reference", records(0), 2, false},
		{"duplicate matches still complete", records(0, 0, 1), 2, true},
		{"no records", nil, 2, false},
		{"empty reference set never qualifies", records(0), 0, false},
		{"single reference matched", records(0), 1, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ModeTogether.Qualifies(tc.records, tc.refCount)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Qualifies() = %v; want %v", got, tc.expected)
			}
		})
	}
}

func TestQualifiesUnknownMode(t *testing.T) {
	_, err := Mode("nearest").Qualifies(records(0), 1)
	if !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("expected ErrUnknownPolicy, got %v", err)
	}
}

// An image that qualifies under "together" must always qualify under
// "individually" for the same records.
func TestTogetherImpliesIndividually(t *testing.T) {
	cases := [][]face.MatchRecord{records(0, 1), records(0, 1, 1), records(0)}
	for _, recs := range cases {
		together, _ := ModeTogether.Qualifies(recs, 2)
		individually, _ := ModeIndividually.Qualifies(recs, 2)
		if together && !individually {
			t.Errorf("records %v qualify together but not individually", recs)
		}
	}
}
