package params

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetValidatesRangeAndRejectsOutOfBounds(t *testing.T) {
	r := New()
	r.Register(Def{Name: "x", Kind: KindFloat, Min: floatPtr(0), Max: floatPtr(1), Default: 0.5, Mutable: MutableRuntime})

	if err := r.Set("x", 0.9); err != nil {
		t.Fatalf("expected in-range set to succeed, got %v", err)
	}
	if err := r.Set("x", 5.0); err == nil {
		t.Fatal("expected out-of-range set to be rejected")
	}
	d, _ := r.Get("x")
	if d.Value != 0.9 {
		t.Fatalf("expected prior value retained after rejected set, got %v", d.Value)
	}
}

func TestSetBootOnlyAlwaysRejected(t *testing.T) {
	r := New()
	r.Register(Def{Name: "boot", Kind: KindInt, Default: int64(1), Mutable: MutableBootOnly})
	if err := r.Set("boot", int64(2)); err == nil {
		t.Fatal("expected boot_only param to reject any Set")
	}
}

func TestBulkSetIsTransactional(t *testing.T) {
	r := New()
	r.Register(Def{Name: "a", Kind: KindFloat, Min: floatPtr(0), Max: floatPtr(1), Default: 0.5, Mutable: MutableRuntime})
	r.Register(Def{Name: "b", Kind: KindFloat, Min: floatPtr(0), Max: floatPtr(1), Default: 0.5, Mutable: MutableRuntime})

	results := r.BulkSet(map[string]any{"a": 0.9, "b": 5.0})
	if results["a"] == nil {
		t.Fatal("expected the whole bulk set to fail since b is invalid")
	}
	da, _ := r.Get("a")
	if da.Value != 0.5 {
		t.Fatalf("expected a unchanged after failed bulk set, got %v", da.Value)
	}
}

func TestOnChangeFiresAfterSuccessfulSet(t *testing.T) {
	r := New()
	r.Register(Def{Name: "x", Kind: KindBool, Default: false, Mutable: MutableRuntime})
	var got string
	var gotVal any
	r.OnChange(func(name string, value any) { got = name; gotVal = value })
	if err := r.Set("x", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "x" || gotVal != true {
		t.Fatalf("expected callback fired with (x, true), got (%v, %v)", got, gotVal)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.json")
	store := NewStore(path, nil)

	r := New()
	r.Register(Def{Name: "x", Kind: KindFloat, Min: floatPtr(0), Max: floatPtr(1), Default: 0.1, Mutable: MutableRuntime})
	r.OnChange(store.OnChange)
	if err := r.Set("x", 0.7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected params file written, got %v", err)
	}

	r2 := New()
	r2.Register(Def{Name: "x", Kind: KindFloat, Min: floatPtr(0), Max: floatPtr(1), Default: 0.1, Mutable: MutableRuntime})
	store.Load(r2)
	d, _ := r2.Get("x")
	if d.Value != 0.7 {
		t.Fatalf("expected loaded value 0.7, got %v", d.Value)
	}
}

func TestStoreLoadSkipsBootOnlyAndUnknown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.json")
	if err := os.WriteFile(path, []byte(`{"boot":5,"unknown":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(path, nil)

	r := New()
	r.Register(Def{Name: "boot", Kind: KindInt, Default: int64(1), Mutable: MutableBootOnly})
	store.Load(r)
	d, _ := r.Get("boot")
	if d.Value != int64(1) {
		t.Fatalf("expected boot_only param unchanged, got %v", d.Value)
	}
}
