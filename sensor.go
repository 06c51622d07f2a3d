package srf01

import "context"

// Sensor provides a high-level interface to a single rangefinder.
type Sensor struct {
	bus  *Bus
	addr int
}

// NewSensor creates a Sensor bound to the given bus address.
func NewSensor(bus *Bus, addr int) *Sensor {
	return &Sensor{bus: bus, addr: addr}
}

// Addr returns the sensor's bus address.
func (s *Sensor) Addr() int {
	return s.addr
}

// Detect verifies communication with the sensor and returns its firmware
// version, or NoReading if it did not respond.
func (s *Sensor) Detect(ctx context.Context) (int, error) {
	return s.bus.SoftwareVersion(ctx, s.addr)
}

// SoftwareVersion reads the firmware version.
func (s *Sensor) SoftwareVersion(ctx context.Context) (int, error) {
	return s.bus.SoftwareVersion(ctx, s.addr)
}

// Status reads the mode/lock status byte.
func (s *Sensor) Status(ctx context.Context) (Status, error) {
	return s.bus.Status(ctx, s.addr)
}

// Range performs a blocking ranging and returns the distance in unit.
func (s *Sensor) Range(ctx context.Context, unit Unit) (int, error) {
	return s.bus.Range(ctx, s.addr, unit)
}

// FakeRange is Range without the ultrasonic burst.
func (s *Sensor) FakeRange(ctx context.Context, unit Unit) (int, error) {
	return s.bus.FakeRange(ctx, s.addr, unit)
}

// DoRange starts a ranging without waiting for the result.
func (s *Sensor) DoRange(ctx context.Context, unit Unit) error {
	return s.bus.DoRange(ctx, s.addr, unit)
}

// DoFakeRange starts a burst-less ranging without waiting for the result.
func (s *Sensor) DoFakeRange(ctx context.Context, unit Unit) error {
	return s.bus.DoFakeRange(ctx, s.addr, unit)
}

// LastRange reads the result of the most recent ranging.
func (s *Sensor) LastRange(ctx context.Context) (int, error) {
	return s.bus.LastRange(ctx, s.addr)
}

// LastUnit returns the unit the last ranging command requested.
func (s *Sensor) LastUnit() (Unit, error) {
	return s.bus.LastUnit(s.addr)
}

// Burst transmits an ultrasonic burst without ranging.
func (s *Sensor) Burst(ctx context.Context) error {
	return s.bus.Burst(ctx, s.addr)
}

// SetAdvancedMode enables ranging down to zero distance.
func (s *Sensor) SetAdvancedMode(ctx context.Context) error {
	return s.bus.SetAdvancedMode(ctx, s.addr)
}

// ClearAdvancedMode restores standard mode.
func (s *Sensor) ClearAdvancedMode(ctx context.Context) error {
	return s.bus.ClearAdvancedMode(ctx, s.addr)
}

// Sleep puts the sensor into low-power sleep.
func (s *Sensor) Sleep(ctx context.Context) error {
	return s.bus.Sleep(ctx, s.addr)
}

// Wake wakes the sensor from sleep.
func (s *Sensor) Wake(ctx context.Context) error {
	return s.bus.Wake(ctx, s.addr)
}
