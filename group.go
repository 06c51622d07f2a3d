package srf01

import (
	"context"
	"time"
)

// Group manages coordinated operations across multiple sensors on one bus.
// Its broadcast methods exploit the fact that fire-and-forget commands
// never collide on the shared reply line: all sensors can range at once,
// and the results are collected one address at a time afterwards.
type Group struct {
	bus     *Bus
	sensors []*Sensor
	addrs   []int
}

// NewGroup creates a new group from the given sensors.
func NewGroup(bus *Bus, sensors ...*Sensor) *Group {
	addrs := make([]int, len(sensors))
	for i, s := range sensors {
		addrs[i] = s.Addr()
	}
	return &Group{
		bus:     bus,
		sensors: sensors,
		addrs:   addrs,
	}
}

// NewGroupByAddrs creates sensors with the given addresses and groups them.
func NewGroupByAddrs(bus *Bus, addrs ...int) *Group {
	sensors := make([]*Sensor, len(addrs))
	for i, addr := range addrs {
		sensors[i] = NewSensor(bus, addr)
	}
	return NewGroup(bus, sensors...)
}

// Sensors returns the sensors in this group.
func (g *Group) Sensors() []*Sensor {
	return g.sensors
}

// Addrs returns the sensor addresses in this group.
func (g *Group) Addrs() []int {
	return g.addrs
}

// SensorByAddr returns the sensor with the given address, or nil if not in
// the group.
func (g *Group) SensorByAddr(addr int) *Sensor {
	for _, s := range g.sensors {
		if s.Addr() == addr {
			return s
		}
	}
	return nil
}

// ReadingMap maps sensor address to a measured distance. Sensors that did
// not respond carry NoReading.
type ReadingMap map[int]int

// RangeAll broadcasts a ranging command, waits out the ranging cycle, and
// collects the result from every sensor in the group. Non-responding
// sensors are reported as NoReading rather than failing the whole sweep.
func (g *Group) RangeAll(ctx context.Context, unit Unit) (ReadingMap, error) {
	if err := g.bus.DoRange(ctx, BroadcastAddr, unit); err != nil {
		return nil, err
	}

	if err := g.waitCycle(ctx); err != nil {
		return nil, err
	}

	return g.collect(ctx)
}

// FakeRangeAll is RangeAll with one real burst: the first sensor in the
// group transmits, and every sensor measures the echo of that single burst.
func (g *Group) FakeRangeAll(ctx context.Context, unit Unit) (ReadingMap, error) {
	if len(g.sensors) == 0 {
		return ReadingMap{}, nil
	}

	if err := g.sensors[0].Burst(ctx); err != nil {
		return nil, err
	}
	if err := g.bus.DoFakeRange(ctx, BroadcastAddr, unit); err != nil {
		return nil, err
	}

	if err := g.waitCycle(ctx); err != nil {
		return nil, err
	}

	return g.collect(ctx)
}

// SetAdvancedModeAll switches every sensor on the bus to advanced mode with
// a single broadcast.
func (g *Group) SetAdvancedModeAll(ctx context.Context) error {
	return g.bus.SetAdvancedMode(ctx, BroadcastAddr)
}

// ClearAdvancedModeAll restores standard mode on every sensor on the bus.
func (g *Group) ClearAdvancedModeAll(ctx context.Context) error {
	return g.bus.ClearAdvancedMode(ctx, BroadcastAddr)
}

func (g *Group) waitCycle(ctx context.Context) error {
	timer := time.NewTimer(RangeCycle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *Group) collect(ctx context.Context) (ReadingMap, error) {
	readings := make(ReadingMap, len(g.sensors))
	for _, s := range g.sensors {
		r, err := s.LastRange(ctx)
		if err != nil {
			return readings, err
		}
		readings[s.Addr()] = r
	}
	return readings, nil
}
