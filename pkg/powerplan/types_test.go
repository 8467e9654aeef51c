package powerplan

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTarget(t *testing.T) {
	tests := []struct {
		mode Mode
		ac   bool
		want Plan
	}{
		{Standard, true, Balanced},
		{Standard, false, Balanced},
		{Optimized, true, High},
		{Optimized, false, Balanced},
		{AlwaysHigh, true, High},
		{AlwaysHigh, false, High},
	}
	for _, tt := range tests {
		if got := Target(tt.mode, tt.ac); got != tt.want {
			t.Errorf("Target(%s, %t) = %s, want %s", tt.mode, tt.ac, got, tt.want)
		}
	}
}

func TestParsePlan(t *testing.T) {
	for _, p := range Plans {
		got, err := ParsePlan(string(p))
		if err != nil || got != p {
			t.Errorf("ParsePlan(%q) = %q, %v", p, got, err)
		}
	}

	for _, s := range []string{"", "bogus", "High", "ultimate"} {
		_, err := ParsePlan(s)
		if !errors.Is(err, ErrInvalidPlan) {
			t.Errorf("ParsePlan(%q) error = %v, want ErrInvalidPlan", s, err)
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(string(m))
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %q, %v", m, got, err)
		}
	}

	_, err := ParseMode("always_high")
	if !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode error = %v, want ErrInvalidMode", err)
	}
}

func TestPlanJSON(t *testing.T) {
	var body struct {
		Plan Plan `json:"plan"`
	}
	if err := json.Unmarshal([]byte(`{"plan":"high"}`), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Plan != High {
		t.Fatalf("got %q, want high", body.Plan)
	}

	err := json.Unmarshal([]byte(`{"plan":"bogus"}`), &body)
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("got %v, want ErrInvalidPlan", err)
	}
}

func TestPlanFromGUID(t *testing.T) {
	p, ok := PlanFromGUID("8C5E7FDA-E8BF-4A96-9A85-A6E23A8C635C")
	if !ok || p != High {
		t.Fatalf("got %q %t, want high", p, ok)
	}
	if _, ok := PlanFromGUID("e9a42b02-d5df-448d-aa00-03f14749eb61"); ok {
		t.Fatalf("ultimate performance should not resolve")
	}
}

func TestOrLastKnown(t *testing.T) {
	if got := OrLastKnown(High, nil, Balanced); got != High {
		t.Errorf("got %s, want high", got)
	}
	if got := OrLastKnown("", &ProbeError{Err: ErrToolNotFound}, Balanced); got != Balanced {
		t.Errorf("got %s, want balanced", got)
	}
	if got := OrLastKnown(Plan("weird"), nil, PowerSaver); got != PowerSaver {
		t.Errorf("got %s, want powersaver", got)
	}
}

func TestApplyErrorUnwrap(t *testing.T) {
	err := error(&ApplyError{Plan: High, Kind: ErrPermissionDenied, Detail: "Access denied."})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected errors.Is(ErrPermissionDenied)")
	}
	var ae *ApplyError
	if !errors.As(err, &ae) || ae.Plan != High {
		t.Fatalf("expected errors.As to find ApplyError")
	}
}
