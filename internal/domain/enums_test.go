package domain

import "testing"

func TestSignalType_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  SignalType
		want bool
	}{
		{SignalTypeFollowed, true},
		{SignalTypeSuspiciousActivity, true},
		{SignalTypeHarassment, true},
		{SignalTypeUnsafeArea, true},
		{SignalTypeOther, true},
		{SignalType("FOLLOWED"), false},
		{SignalType(""), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			t.Parallel()
			if got := tt.typ.IsValid(); got != tt.want {
				t.Errorf("SignalType(%q).IsValid() = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestSignalStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status SignalStatus
		want   bool
	}{
		{SignalStatusPending, false},
		{SignalStatusVerified, false},
		{SignalStatusDisputed, false},
		{SignalStatusExpired, true},
		{SignalStatusDeleted, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("SignalStatus(%q).IsTerminal() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestConfidenceLabel_IsValid(t *testing.T) {
	t.Parallel()
	if !ConfidenceMedium.IsValid() {
		t.Error("MEDIUM should be valid")
	}
	if ConfidenceLabel("medium").IsValid() {
		t.Error("lowercase label should be invalid")
	}
}
