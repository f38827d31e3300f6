package domain

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusInit, StatusProgress, true},
		{StatusWait, StatusInit, true},
		{StatusWait, StatusProgress, false},
		{StatusProgress, StatusSuccess, true},
		{StatusProgress, StatusFail, true},
		{StatusSuccess, StatusProgress, true},
		{StatusSuccess, StatusWait, false},
		{StatusFail, StatusProgress, false},
		{StatusFail, StatusInit, true},
		{StatusWait, StatusFail, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestModeSelects(t *testing.T) {
	tests := []struct {
		mode   Mode
		name   Name
		status Status
		want   bool
	}{
		{ModeAll, NameUpdate, StatusSuccess, true},
		{ModeAll, NameFetch, StatusWait, false},
		{ModeUpdate, NameFetch, StatusInit, false},
		{ModeUpdate, NameUpdate, StatusInit, true},
		{ModeFetch, NameFetch, StatusSuccess, true},
		{ModeSelect, NameUpdate, StatusSuccess, false},
		{ModeSelect, NameUpdate, StatusInit, true},
		{ModeSelect, NameFetch, StatusSuccess, true},
		{ModeAll, NameUpdate, StatusFail, false},
		{ModeAll, NameUpdate, StatusProgress, false},
	}
	for _, tt := range tests {
		if got := tt.mode.Selects(tt.name, tt.status); got != tt.want {
			t.Errorf("%s.Selects(%s, %s) = %v, want %v", tt.mode, tt.name, tt.status, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"all", "update", "fetch", "select"} {
		if m, err := ParseMode(s); err != nil || string(m) != s {
			t.Errorf("ParseMode(%q) = %q, %v", s, m, err)
		}
	}
	if _, err := ParseMode("everything"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}
