package state

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name                     string
		curLocal, curRemote      string
		snapLocal, snapRemote    string
		want                     SyncState
	}{
		{"missing local snapshot", "a", "b", "", "b", Unknown},
		{"missing remote snapshot", "a", "b", "a", "", Unknown},
		{"missing both snapshots", "a", "b", "", "", Unknown},
		{"nothing changed", "a", "b", "a", "b", InSync},
		{"local changed", "a2", "b", "a", "b", NeedsPush},
		{"remote changed", "a", "b2", "a", "b", NeedsPull},
		{"both changed", "a2", "b2", "a", "b", Conflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.curLocal, tt.curRemote, tt.snapLocal, tt.snapRemote)
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := Classify("x", "y", "x", "y"); got != InSync {
			t.Fatalf("iteration %d: got %v", i, got)
		}
	}
}
