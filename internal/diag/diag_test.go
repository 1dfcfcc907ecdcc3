package diag

import "testing"

func TestRecordBestEffortAccumulates(t *testing.T) {
	d := New(Options{Mode: ModeBestEffort})
	if err := d.Record(SoftAnalysis, 0x1000, "no region at %#x", 0x1000); err != nil {
		t.Fatalf("Record: %v", err)
	}
	events := d.Events()
	if len(events) != 1 || events[0].Address != 0x1000 || events[0].Kind != SoftAnalysis {
		t.Errorf("Events() = %+v, unexpected", events)
	}
}

func TestRecordStrictReturnsErrorInsteadOfAccumulating(t *testing.T) {
	d := New(Options{Mode: ModeStrict})
	if err := d.Record(SoftAnalysis, 0x1000, "boom"); err == nil {
		t.Error("Record in ModeStrict: want error, got nil")
	}
	if len(d.Events()) != 0 {
		t.Errorf("Events() = %v, want empty in ModeStrict", d.Events())
	}
}

func TestGuessCountsAndCapsAtMaxGuesses(t *testing.T) {
	d := New(Options{Mode: ModeBestEffort, MaxGuesses: 2})
	if err := d.Guess(0x1, "guess 1"); err != nil {
		t.Fatalf("Guess 1: %v", err)
	}
	if err := d.Guess(0x2, "guess 2"); err != nil {
		t.Fatalf("Guess 2: %v", err)
	}
	if err := d.Guess(0x3, "guess 3"); err == nil {
		t.Error("Guess exceeding MaxGuesses: want error, got nil")
	}
	if d.GuessCount() != 3 {
		t.Errorf("GuessCount() = %d, want 3", d.GuessCount())
	}
}

func TestGuessUnboundedWhenMaxGuessesZero(t *testing.T) {
	d := New(Options{Mode: ModeBestEffort})
	for i := 0; i < 50; i++ {
		if err := d.Guess(uint32(i), "guess"); err != nil {
			t.Fatalf("Guess %d: %v", i, err)
		}
	}
	if d.GuessCount() != 50 {
		t.Errorf("GuessCount() = %d, want 50", d.GuessCount())
	}
}
