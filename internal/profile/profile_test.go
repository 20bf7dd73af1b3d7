package profile

import "testing"

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()

	got, err := m.Load("default")
	if err != nil {
		t.Fatalf("Load(default): %v", err)
	}
	if got != Default {
		t.Fatalf("default record mismatch: got %+v want %+v", got, Default)
	}

	custom := Record{Name: "aggressive", LeftStickScale: 1.0, TriggerThreshold: 120}
	if err := m.Save("aggressive", custom); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = m.Load("aggressive")
	if err != nil {
		t.Fatalf("Load(aggressive): %v", err)
	}
	if got != custom {
		t.Fatalf("saved record mismatch: got %+v want %+v", got, custom)
	}

	names, err := m.Names()
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d: %v", len(names), names)
	}
}

func TestMemoryLoadMissing(t *testing.T) {
	m := NewMemory()
	if _, err := m.Load("nonexistent"); err == nil {
		t.Fatal("expected error loading missing profile")
	}
}

func TestRecordToGameCubeProfile(t *testing.T) {
	r := Record{Name: "custom", LeftStickScale: 0.75, TriggerThreshold: 180}
	p := r.ToGameCubeProfile()
	if p.LeftStickScale != 0.75 || p.TriggerThreshold != 180 {
		t.Fatalf("conversion mismatch: %+v", p)
	}
}
