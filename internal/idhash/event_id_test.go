package idhash

import "testing"

func TestComputeEventID(t *testing.T) {
	tests := []struct {
		name       string
		seq        uint64
		eventIndex int
		kind       string
	}{
		{name: "first event", seq: 1, eventIndex: 0, kind: "SegmentCreated"},
		{name: "later index", seq: 42, eventIndex: 3, kind: "Transfer"},
		{name: "large seq", seq: 1 << 62, eventIndex: 0, kind: "Withdrawal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeEventID(tt.seq, tt.eventIndex, tt.kind)

			if len(got) != 64 {
				t.Errorf("ComputeEventID() length = %d, want 64", len(got))
			}

			// Verify determinism: same inputs should produce same output
			if got2 := ComputeEventID(tt.seq, tt.eventIndex, tt.kind); got != got2 {
				t.Errorf("ComputeEventID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeEventID_DifferentInputs(t *testing.T) {
	base := ComputeEventID(1, 0, "SegmentPurchased")

	if base == ComputeEventID(2, 0, "SegmentPurchased") {
		t.Error("Different seq should produce different hash")
	}
	if base == ComputeEventID(1, 1, "SegmentPurchased") {
		t.Error("Different index should produce different hash")
	}
	if base == ComputeEventID(1, 0, "Transfer") {
		t.Error("Different kind should produce different hash")
	}
	// Separator prevents ambiguous concatenation
	if ComputeEventID(11, 1, "X") == ComputeEventID(1, 11, "X") {
		t.Error("Ambiguous seq/index concatenation")
	}
}

func TestComputeRequestHash(t *testing.T) {
	base := ComputeRequestHash("POST", "/v1/segments/1/buy", "caller", []byte(`{}`))

	if len(base) != 64 {
		t.Errorf("ComputeRequestHash() length = %d, want 64", len(base))
	}
	if base != ComputeRequestHash("POST", "/v1/segments/1/buy", "caller", []byte(`{}`)) {
		t.Error("ComputeRequestHash() not deterministic")
	}
	if base == ComputeRequestHash("POST", "/v1/segments/1/buy", "other", []byte(`{}`)) {
		t.Error("Different caller should produce different hash")
	}
	if base == ComputeRequestHash("POST", "/v1/segments/1/buy", "caller", []byte(`{"a":1}`)) {
		t.Error("Different body should produce different hash")
	}
}
