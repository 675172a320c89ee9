package idhash

import (
	"testing"
)

func TestComputeAttemptID(t *testing.T) {
	tests := []struct {
		name        string
		mint        string
		amount      uint64
		triggeredAt int64
	}{
		{
			name:        "default buy",
			mint:        "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
			amount:      50_000_000,
			triggeredAt: 1704067234567,
		},
		{
			name:        "one sol",
			mint:        "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
			amount:      1_000_000_000,
			triggeredAt: 1704067300000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeAttemptID(tt.mint, tt.amount, tt.triggeredAt, 1)

			if len(got) != 64 {
				t.Errorf("ComputeAttemptID() length = %d, want 64", len(got))
			}

			again := ComputeAttemptID(tt.mint, tt.amount, tt.triggeredAt, 1)
			if got != again {
				t.Errorf("ComputeAttemptID() not deterministic: %s != %s", got, again)
			}
		})
	}
}

func TestComputeAttemptID_Distinct(t *testing.T) {
	base := ComputeAttemptID("mint", 1, 1000, 1)

	if ComputeAttemptID("mint", 1, 1001, 1) == base {
		t.Error("different trigger time should produce different ID")
	}
	if ComputeAttemptID("mint", 2, 1000, 1) == base {
		t.Error("different amount should produce different ID")
	}
	if ComputeAttemptID("other", 1, 1000, 1) == base {
		t.Error("different mint should produce different ID")
	}
	if ComputeAttemptID("mint", 1, 1000, 2) == base {
		t.Error("different sequence should produce different ID")
	}
}

func TestComputeSnapshotID(t *testing.T) {
	a := ComputeSnapshotID("mint", 1000, 27958993476)
	b := ComputeSnapshotID("mint", 1000, 27958993476)
	c := ComputeSnapshotID("mint", 1000, 27958993477)

	if a != b {
		t.Error("expected deterministic snapshot ID")
	}
	if a == c {
		t.Error("different market cap should produce different ID")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
