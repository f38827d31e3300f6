package cli

import (
	"testing"

	taskdomain "github.com/jan-janssen/gmailsorter/internal/task/domain"
)

func TestDaemonMode(t *testing.T) {
	tests := []struct {
		name                      string
		update, filter, scheduled bool
		want                      taskdomain.Mode
		wantErr                   bool
	}{
		{"update and filter", true, true, false, taskdomain.ModeAll, false},
		{"update and filter win over scheduled", true, true, true, taskdomain.ModeAll, false},
		{"update only", true, false, false, taskdomain.ModeUpdate, false},
		{"update beats scheduled", true, false, true, taskdomain.ModeUpdate, false},
		{"scheduled", false, false, true, taskdomain.ModeSelect, false},
		{"scheduled beats filter", false, true, true, taskdomain.ModeSelect, false},
		{"filter only", false, true, false, taskdomain.ModeFetch, false},
		{"nothing", false, false, false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := daemonMode(tt.update, tt.filter, tt.scheduled)
			if (err != nil) != tt.wantErr {
				t.Fatalf("daemonMode error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("daemonMode = %q, want %q", got, tt.want)
			}
		})
	}
}
