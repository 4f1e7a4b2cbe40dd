package offers

import "testing"

func TestMapStatusKnownCodes(t *testing.T) {
	cases := []struct {
		code string
		want Status
	}{
		{"pendiente", StatusPending},
		{"contraoferta", StatusPending},
		{"aceptada", StatusAccepted},
		{"rechazada", StatusRejected},
		{"completada", StatusCompleted},
		{"vendida", StatusCompleted},
	}
	for _, tc := range cases {
		if got := MapStatus(tc.code); got != tc.want {
			t.Errorf("MapStatus(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestMapStatusUnknownPassesThrough(t *testing.T) {
	if got := MapStatus("en_revision"); got != Status("en_revision") {
		t.Errorf("unknown code mangled: %q", got)
	}
	if got := MapStatus(""); got != Status("") {
		t.Errorf("empty code mangled: %q", got)
	}
}

func TestIsTerminal(t *testing.T) {
	if !StatusRejected.IsTerminal() || !StatusCompleted.IsTerminal() {
		t.Error("rejected and completed are terminal")
	}
	if StatusPending.IsTerminal() || StatusAccepted.IsTerminal() {
		t.Error("pending and accepted are not terminal")
	}
	if Status("en_revision").IsTerminal() {
		t.Error("unknown codes are not terminal")
	}
}
