// Package params implements the typed parameter registry and its
// atomic JSON persistence (spec.md §2's component table and §6,
// supplemented per SPEC_FULL.md §4.20), grounded in
// _examples/original_source/supervisor/api/param_registry.py and
// param_persistence.py.
package params

import (
	"fmt"
	"sort"
	"sync"
)

// Kind is the value type a Def accepts.
type Kind string

const (
	KindFloat  Kind = "float"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
	KindString Kind = "string"
)

// Mutable controls whether a param can change at runtime.
type Mutable string

const (
	MutableRuntime  Mutable = "runtime"
	MutableBootOnly Mutable = "boot_only"
)

// Def is one parameter's definition plus its current value.
type Def struct {
	Name    string
	Kind    Kind
	Min     *float64
	Max     *float64
	Default any
	Value   any
	Owner   string
	Mutable Mutable
	Doc     string
}

// validate checks value against this Def's type/range/mutability
// constraints without mutating Value.
func (d *Def) validate(value any) (any, error) {
	if d.Mutable == MutableBootOnly {
		return nil, fmt.Errorf("params: %s is boot_only", d.Name)
	}
	switch d.Kind {
	case KindInt:
		n, ok := toInt(value)
		if !ok {
			return nil, fmt.Errorf("params: %s must be int", d.Name)
		}
		if d.Min != nil && float64(n) < *d.Min {
			return nil, fmt.Errorf("params: %s below min (%v)", d.Name, *d.Min)
		}
		if d.Max != nil && float64(n) > *d.Max {
			return nil, fmt.Errorf("params: %s above max (%v)", d.Name, *d.Max)
		}
		return n, nil
	case KindFloat:
		f, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("params: %s must be numeric", d.Name)
		}
		if d.Min != nil && f < *d.Min {
			return nil, fmt.Errorf("params: %s below min (%v)", d.Name, *d.Min)
		}
		if d.Max != nil && f > *d.Max {
			return nil, fmt.Errorf("params: %s above max (%v)", d.Name, *d.Max)
		}
		return f, nil
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("params: %s must be bool", d.Name)
		}
		return b, nil
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("params: %s must be string", d.Name)
		}
		return s, nil
	}
	return nil, fmt.Errorf("params: %s has unknown kind %q", d.Name, d.Kind)
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ChangeFunc is invoked after a successful Set or BulkSet.
type ChangeFunc func(name string, value any)

// Registry is a thread-safe parameter store with validation,
// transactional bulk updates, and change subscribers.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]*Def
	onChange []ChangeFunc
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*Def)}
}

// OnChange registers cb to fire after every successful Set/BulkSet.
func (r *Registry) OnChange(cb ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, cb)
}

// Register adds d to the registry, defaulting Value to Default.
func (r *Registry) Register(d Def) {
	if d.Value == nil {
		d.Value = d.Default
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := d
	r.defs[d.Name] = &cp
}

// Get returns a copy of the named Def, or ok=false if unknown.
func (r *Registry) Get(name string) (Def, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	if !ok {
		return Def{}, false
	}
	return *d, true
}

// GetValue returns the named param's current value, or def if unknown.
func (r *Registry) GetValue(name string, def any) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	if !ok {
		return def
	}
	return d.Value
}

// GetAll returns every Def, sorted by name.
func (r *Registry) GetAll() []Def {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Def, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Set validates and applies one param change, firing subscribers on
// success (spec.md §7: "Configuration errors: rejected with a reason,
// registry unchanged").
func (r *Registry) Set(name string, value any) error {
	r.mu.Lock()
	d, ok := r.defs[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("params: unknown param: %s", name)
	}
	coerced, err := d.validate(value)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	d.Value = coerced
	cbs := append([]ChangeFunc(nil), r.onChange...)
	r.mu.Unlock()

	for _, cb := range cbs {
		cb(name, coerced)
	}
	return nil
}

// BulkSet validates every update first; if any fails, nothing is
// applied (transactional, matching param_registry.py's bulk_set).
func (r *Registry) BulkSet(updates map[string]any) map[string]error {
	r.mu.Lock()
	results := make(map[string]error, len(updates))
	coerced := make(map[string]any, len(updates))
	for name, value := range updates {
		d, ok := r.defs[name]
		if !ok {
			results[name] = fmt.Errorf("params: unknown param: %s", name)
			continue
		}
		v, err := d.validate(value)
		if err != nil {
			results[name] = err
			continue
		}
		coerced[name] = v
	}

	for _, err := range results {
		if err != nil {
			for name := range coerced {
				results[name] = fmt.Errorf("params: %s not applied: another update in the bulk set failed", name)
			}
			r.mu.Unlock()
			return results
		}
	}

	for name, v := range coerced {
		r.defs[name].Value = v
		results[name] = nil
	}
	cbs := append([]ChangeFunc(nil), r.onChange...)
	r.mu.Unlock()

	for name, v := range coerced {
		for _, cb := range cbs {
			cb(name, v)
		}
	}
	return results
}

func floatPtr(f float64) *float64 { return &f }

// DefaultRegistry returns a Registry pre-populated with the
// supervisor-owned tunables (speed-cap scales, vision-staleness
// thresholds, telemetry rate) plus a small
// representative set of boot_only reflex kinematics params, grounded
// in param_registry.py's create_default_registry. The vision camera/ISP
// and HSV-threshold params (~50 entries) belong to the vision worker's
// own param bridge, which is out of this module's scope; only the
// safety-relevant vision.* thresholds this core's safety cascade reads
// are carried over. Of the supervisor-owned entries, only vision.* is
// read by the running supervisor: the safety cascade uses fixed
// 0.25/0.50 speed-cap scales, and the telemetry rate comes from the
// -telemetry-hz flag, so speed_cap_* and telemetry_hz are stored and
// persisted but not consumed.
func DefaultRegistry() *Registry {
	r := New()

	r.Register(Def{Name: "telemetry_hz", Kind: KindInt, Min: floatPtr(1), Max: floatPtr(50), Default: int64(20), Owner: "supervisor", Mutable: MutableRuntime, Doc: "Telemetry broadcast rate"})
	r.Register(Def{Name: "speed_cap_close_scale", Kind: KindFloat, Min: floatPtr(0), Max: floatPtr(1), Default: 0.25, Owner: "supervisor", Mutable: MutableRuntime, Doc: "Speed scale when range < 300mm"})
	r.Register(Def{Name: "speed_cap_medium_scale", Kind: KindFloat, Min: floatPtr(0), Max: floatPtr(1), Default: 0.50, Owner: "supervisor", Mutable: MutableRuntime, Doc: "Speed scale when range < 500mm"})
	r.Register(Def{Name: "speed_cap_stale_scale", Kind: KindFloat, Min: floatPtr(0), Max: floatPtr(1), Default: 0.50, Owner: "supervisor", Mutable: MutableRuntime, Doc: "Speed scale when range sensor stale"})

	r.Register(Def{Name: "vision.stale_ms", Kind: KindFloat, Min: floatPtr(100), Max: floatPtr(2000), Default: 500.0, Owner: "vision", Mutable: MutableRuntime, Doc: "Vision age (ms) above which stale speed cap applies"})
	r.Register(Def{Name: "vision.clear_low", Kind: KindFloat, Min: floatPtr(0.01), Max: floatPtr(1), Default: 0.3, Owner: "vision", Mutable: MutableRuntime, Doc: "clear_conf below this -> 25% speed cap"})
	r.Register(Def{Name: "vision.clear_high", Kind: KindFloat, Min: floatPtr(0.01), Max: floatPtr(1), Default: 0.6, Owner: "vision", Mutable: MutableRuntime, Doc: "clear_conf below this -> 50% speed cap"})

	r.Register(Def{Name: "reflex.wheelbase_mm", Kind: KindFloat, Min: floatPtr(1), Max: floatPtr(1000), Default: 150.0, Owner: "reflex", Mutable: MutableBootOnly, Doc: "Wheelbase between wheel centers"})
	r.Register(Def{Name: "reflex.wheel_diameter_mm", Kind: KindFloat, Min: floatPtr(1), Max: floatPtr(500), Default: 65.0, Owner: "reflex", Mutable: MutableBootOnly, Doc: "Wheel diameter"})
	r.Register(Def{Name: "reflex.max_v_mm_s", Kind: KindInt, Min: floatPtr(0), Max: floatPtr(2000), Default: int64(500), Owner: "reflex", Mutable: MutableRuntime, Doc: "Max linear velocity"})
	r.Register(Def{Name: "reflex.max_w_mrad_s", Kind: KindInt, Min: floatPtr(0), Max: floatPtr(10000), Default: int64(2000), Owner: "reflex", Mutable: MutableRuntime, Doc: "Max angular velocity"})
	r.Register(Def{Name: "reflex.cmd_timeout_ms", Kind: KindInt, Min: floatPtr(50), Max: floatPtr(5000), Default: int64(400), Owner: "reflex", Mutable: MutableRuntime, Doc: "Command watchdog timeout"})

	return r
}
