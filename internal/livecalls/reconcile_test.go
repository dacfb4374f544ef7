package livecalls

import "testing"

func TestParseExtension(t *testing.T) {
	cases := []struct {
		channel string
		ext     string
		ok      bool
	}{
		{"PJSIP/1001-00000a2f", "1001", true},
		{"PJSIP/42-0001", "42", true},
		{"Local/1001@from-internal", "", false},
		{"PJSIP/abc-0001", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		ext, ok := ParseExtension(c.channel)
		if ok != c.ok || ext != c.ext {
			t.Fatalf("ParseExtension(%q) = %q, %v; want %q, %v", c.channel, ext, ok, c.ext, c.ok)
		}
	}
}

func TestMapState(t *testing.T) {
	if MapState("Ring") != StateRinging {
		t.Fatalf("Ring should map to ringing")
	}
	if MapState("Up") != StateTalking {
		t.Fatalf("Up should map to talking")
	}
	// Unknown raw states pass through so anomalies stay visible.
	if MapState("Busy") != State("Busy") {
		t.Fatalf("unknown state should pass through")
	}
}

func TestReconcile_TenantScoping(t *testing.T) {
	legs := []Leg{
		{Channel: "PJSIP/1001-0001", AccountCode: "T1", State: StateTalking},
		{Channel: "PJSIP/2001-0002", AccountCode: "T2", State: StateTalking},
		{Channel: "PJSIP/1002-0003", AccountCode: "T1", State: StateRinging},
	}

	out := Reconcile(legs, "T1", "")
	if len(out) != 2 {
		t.Fatalf("expected 2 legs for T1, got %d", len(out))
	}
	for _, l := range out {
		if l.AccountCode != "T1" {
			t.Fatalf("leg from wrong account leaked: %+v", l)
		}
	}
}

func TestReconcile_AgentExtensionScoping(t *testing.T) {
	legs := []Leg{
		{Channel: "PJSIP/1001-0001", AccountCode: "T1"},
		{Channel: "PJSIP/1002-0002", AccountCode: "T1"},
	}

	out := Reconcile(legs, "T1", "1001")
	if len(out) != 1 {
		t.Fatalf("expected 1 leg for extension 1001, got %d", len(out))
	}
	if out[0].Extension != "1001" {
		t.Fatalf("expected parsed extension 1001, got %q", out[0].Extension)
	}
}

func TestReconcile_DropsUnparseableChannels(t *testing.T) {
	legs := []Leg{
		{Channel: "PJSIP/1001-0001", AccountCode: "T1"},
		{Channel: "Local/1001@from-internal", AccountCode: "T1"},
	}
	out := Reconcile(legs, "T1", "")
	if len(out) != 1 {
		t.Fatalf("expected unparseable channel to be dropped, got %d legs", len(out))
	}
}

func TestReconcile_IsPure(t *testing.T) {
	legs := []Leg{
		{Channel: "PJSIP/1001-0001", AccountCode: "T1"},
		{Channel: "PJSIP/2001-0002", AccountCode: "T2"},
	}
	a := Reconcile(legs, "T1", "")
	b := Reconcile(legs, "T1", "")
	if len(a) != len(b) || a[0].Channel != b[0].Channel {
		t.Fatalf("same input must yield same output")
	}
	// Input must not be mutated.
	if legs[0].Extension != "" {
		t.Fatalf("reconcile mutated its input")
	}
}

func TestStats(t *testing.T) {
	legs := []Leg{
		{Channel: "PJSIP/1001-0001", State: StateRinging},
		{Channel: "PJSIP/1002-0002", State: StateTalking},
		{Channel: "PJSIP/1003-0003", State: StateTalking},
		{Channel: "PJSIP/1004-0004", State: State("Busy")},
	}
	s := Stats(legs)
	if s.Total != 4 || s.Ringing != 1 || s.Talking != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
