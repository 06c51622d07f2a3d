package srf01

// unitTracker remembers, per address, the unit of the last ranging command
// the driver sent. The sensor reports its last range in whatever unit it was
// last asked for, so CmdGetRange replies can only be attributed correctly by
// tracking what we sent. Lifetime is tied to the owning Bus; nothing is
// persisted.
type unitTracker struct {
	units map[int]Unit
}

func newUnitTracker() *unitTracker {
	return &unitTracker{units: make(map[int]Unit, MaxAddr)}
}

func (t *unitTracker) set(addr int, unit Unit) {
	t.units[addr] = unit
}

// setAll records a broadcast ranging command. Every sensor on the bus acted
// on it, so every tracked address switches unit symmetrically.
func (t *unitTracker) setAll(unit Unit) {
	for addr := MinAddr; addr <= MaxAddr; addr++ {
		t.units[addr] = unit
	}
}

// get returns the last requested unit for addr, defaulting to centimeters
// for addresses that were never ranged.
func (t *unitTracker) get(addr int) Unit {
	if u, ok := t.units[addr]; ok {
		return u
	}
	return Centimeters
}
