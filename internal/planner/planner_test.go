package planner

import "testing"

func TestDayWindow(t *testing.T) {
	tests := []struct {
		tf       TimeFilter
		wantDays int
		wantOK   bool
	}{
		{TimeLast30Days, 30, true},
		{TimeLast60Days, 60, true},
		{TimeLast90Days, 90, true},
		{TimeLastYear, 365, true},
		{TimeAllTime, 0, false},
	}
	for _, tc := range tests {
		days, ok := DayWindow(tc.tf)
		if ok != tc.wantOK || days != tc.wantDays {
			t.Errorf("DayWindow(%q) = (%d, %v), want (%d, %v)", tc.tf, days, ok, tc.wantDays, tc.wantOK)
		}
	}
}

func TestParseResponseValidatesDecision(t *testing.T) {
	if _, err := ParseResponse(`{"intent_summary": "missing decision"}`); err == nil {
		t.Error("expected error for missing decision")
	}

	if _, err := ParseResponse(`{"decision": "proceed", "selections": []}`); err == nil {
		t.Error("expected error for proceed decision with no selections")
	}

	out, err := ParseResponse("```json\n" + `{"decision": "refuse", "intent_summary": "cannot answer"}` + "\n```")
	if err != nil {
		t.Fatalf("expected refuse decision to parse, got %v", err)
	}
	if out.Decision != DecisionRefuse {
		t.Errorf("expected refuse decision, got %q", out.Decision)
	}
}

func TestCountTokensNonZero(t *testing.T) {
	if CountTokens("hello world") <= 0 {
		t.Error("expected positive token count")
	}
}
