package srf01

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattcip/srf01/transports"
)

// Defaults for bus configuration. The SRF01 talks 9600 8N1 out of the box;
// a ranging cycle takes up to ~70ms for the echo to return, so the read
// window must be at least that.
const (
	DefaultBaudRate = 9600
	DefaultTimeout  = 100 * time.Millisecond

	// RangeCycle is how long a sensor needs to complete a ranging command
	// before its result can be collected with LastRange.
	RangeCycle = 70 * time.Millisecond
)

// Bus manages communication with SRF01 sensors on a shared half-duplex
// serial line. Up to 16 sensors can share one bus, each with its own
// address in [1,16]; address 0 broadcasts to all of them.
//
// A Bus is not safe for concurrent use. The underlying line is a single
// half-duplex resource with one owner; callers invoking operations from
// multiple goroutines must serialize access themselves.
type Bus struct {
	transport Transport
	timeout   time.Duration
	units     *unitTracker
	closed    bool
}

// Config holds configuration for creating a new Bus.
type Config struct {
	// Transport is the underlying communication transport.
	// If nil, Port must be specified to open a serial connection.
	Transport Transport

	// Port is the serial port path (e.g., "/dev/ttyUSB0").
	// Ignored if Transport is provided.
	Port string

	// BaudRate is the communication speed. Default is 9600.
	BaudRate int

	// Timeout bounds every blocking read. Default is 100ms, which covers
	// the ~70ms ranging cycle.
	Timeout time.Duration
}

// NewBus creates a new sensor bus with the given configuration.
func NewBus(cfg Config) (*Bus, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := cfg.Transport
	if transport == nil {
		if cfg.Port == "" {
			return nil, errors.New("either Transport or Port must be specified")
		}
		var err error
		transport, err = transports.OpenSerial(transports.SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port: %w", err)
		}
	}

	return &Bus{
		transport: transport,
		timeout:   cfg.Timeout,
		units:     newUnitTracker(),
	}, nil
}

// Close closes the bus and releases resources.
func (b *Bus) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	return b.transport.Close()
}

// ChangeAddress reprograms the sensor at current to respond at next. The
// unlock sequence is recognized by every sensor that hears it, so exactly
// one sensor may be attached to the bus when this is called; with more than
// one, all of them would take the new address. That precondition cannot be
// checked in software.
func (b *Bus) ChangeAddress(ctx context.Context, current, next int) error {
	if err := validateAddr(current); err != nil {
		return err
	}
	if err := validateAddr(next); err != nil {
		return err
	}
	if b.closed {
		return ErrBusClosed
	}

	b.transport.Flush()

	// Three unlock frames then the new address, each as its own write with
	// nothing interleaved. The sensor aborts the sequence on any other
	// traffic.
	seq := []byte{cmdChangeAddr1, cmdChangeAddr2, cmdChangeAddr3, byte(next)}
	for _, cmd := range seq {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.write(byte(current), cmd); err != nil {
			return &CommError{Op: "change_address", Err: err}
		}
	}

	return nil
}

// SoftwareVersion reads the firmware version of the sensor at addr.
// Returns NoReading if the sensor did not respond within the timeout.
func (b *Bus) SoftwareVersion(ctx context.Context, addr int) (int, error) {
	if err := validateAddr(addr); err != nil {
		return NoReading, err
	}

	data, err := b.query(ctx, byte(addr), CmdSoftwareVersion, 1)
	if err != nil {
		return b.reading(nil, err)
	}
	return int(data[0]), nil
}

// Status reads the mode/lock status byte of the sensor at addr.
// Returns Status(NoReading) if the sensor did not respond within the timeout.
func (b *Bus) Status(ctx context.Context, addr int) (Status, error) {
	if err := validateAddr(addr); err != nil {
		return NoReading, err
	}

	data, err := b.query(ctx, byte(addr), CmdStatus, 1)
	if err != nil {
		v, err := b.reading(nil, err)
		return Status(v), err
	}
	return Status(data[0]), nil
}

// LastRange reads the result of the most recent ranging performed by the
// sensor at addr. The value is in whatever unit the sensor was last asked
// to range in; LastUnit reports what this driver last requested. Returns
// NoReading if the sensor did not respond within the timeout.
func (b *Bus) LastRange(ctx context.Context, addr int) (int, error) {
	if err := validateAddr(addr); err != nil {
		return NoReading, err
	}

	data, err := b.query(ctx, byte(addr), CmdGetRange, 2)
	return b.reading(data, err)
}

// DoRange starts a ranging on the sensor at addr, or on every sensor when
// addr is 0. The command does not produce a reply; wait RangeCycle and then
// collect the result with LastRange.
func (b *Bus) DoRange(ctx context.Context, addr int, unit Unit) error {
	return b.castRange(ctx, addr, unit, false)
}

// DoFakeRange is DoRange without the ultrasonic burst, for sensors
// listening to a burst another sensor already transmitted.
func (b *Bus) DoFakeRange(ctx context.Context, addr int, unit Unit) error {
	return b.castRange(ctx, addr, unit, true)
}

// Burst transmits an 8-cycle ultrasonic burst without ranging, on the
// sensor at addr or on every sensor when addr is 0.
func (b *Bus) Burst(ctx context.Context, addr int) error {
	return b.cast(ctx, "burst", addr, CmdBurst)
}

// Range performs a blocking ranging on the sensor at addr and returns the
// measured distance in the requested unit. The call takes ~70ms while the
// sensor waits for the echo. Broadcast is not allowed: every sensor would
// write its result onto the shared line at once. Returns NoReading if the
// sensor did not respond within the timeout.
func (b *Bus) Range(ctx context.Context, addr int, unit Unit) (int, error) {
	return b.queryRange(ctx, addr, unit, false)
}

// FakeRange is Range without the ultrasonic burst.
func (b *Bus) FakeRange(ctx context.Context, addr int, unit Unit) (int, error) {
	return b.queryRange(ctx, addr, unit, true)
}

// SetAdvancedMode switches the sensor at addr (or all sensors, addr 0) to
// advanced mode, allowing measurement all the way down to zero distance.
func (b *Bus) SetAdvancedMode(ctx context.Context, addr int) error {
	return b.cast(ctx, "set_advanced_mode", addr, CmdSetAdvancedMode)
}

// ClearAdvancedMode restores standard mode and its ~18cm minimum range on
// the sensor at addr, or on all sensors when addr is 0.
func (b *Bus) ClearAdvancedMode(ctx context.Context, addr int) error {
	return b.cast(ctx, "clear_advanced_mode", addr, CmdClearAdvancedMode)
}

// Sleep puts the sensor at addr (or all sensors, addr 0) into low-power
// sleep. Wake resumes operation.
func (b *Bus) Sleep(ctx context.Context, addr int) error {
	return b.cast(ctx, "sleep", addr, CmdSleep)
}

// Wake wakes the sensor at addr (or all sensors, addr 0) from sleep.
func (b *Bus) Wake(ctx context.Context, addr int) error {
	return b.cast(ctx, "wake", addr, CmdWakeup)
}

// Unlock forces the transducer check that locks advanced-mode sensors onto
// the ringing frequency of their transducer.
func (b *Bus) Unlock(ctx context.Context, addr int) error {
	return b.cast(ctx, "unlock", addr, CmdUnlock)
}

// SetBaudRate switches the sensor at addr (or all sensors, addr 0) to a new
// baud rate. Only 19200 and 38400 are supported by the hardware. The host
// port keeps its current speed; reopen the bus at the new rate afterwards.
func (b *Bus) SetBaudRate(ctx context.Context, addr, baud int) error {
	var cmd byte
	switch baud {
	case 19200:
		cmd = CmdBaud19200
	case 38400:
		cmd = CmdBaud38400
	default:
		return fmt.Errorf("%w: got %d", ErrInvalidBaudRate, baud)
	}
	return b.cast(ctx, "set_baud_rate", addr, cmd)
}

// LastUnit returns the unit of the last ranging command this driver sent to
// addr, defaulting to centimeters. Use it to attribute LastRange results.
func (b *Bus) LastUnit(addr int) (Unit, error) {
	if err := validateAddr(addr); err != nil {
		return Centimeters, err
	}
	return b.units.get(addr), nil
}

// Scan probes every address from 1 to 16 with a version read and returns
// the addresses that responded.
func (b *Bus) Scan(ctx context.Context) ([]int, error) {
	var found []int

	for addr := MinAddr; addr <= MaxAddr; addr++ {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		default:
		}

		v, err := b.SoftwareVersion(ctx, addr)
		if err != nil {
			return found, err
		}
		if v != NoReading {
			found = append(found, addr)
		}
	}

	return found, nil
}

// Internal methods

func validateAddr(addr int) error {
	if addr < MinAddr || addr > MaxAddr {
		return fmt.Errorf("%w: got %d", ErrInvalidAddress, addr)
	}
	return nil
}

func validateBroadcastAddr(addr int) error {
	if addr != BroadcastAddr && (addr < MinAddr || addr > MaxAddr) {
		return fmt.Errorf("%w: got %d", ErrInvalidBroadcastAddress, addr)
	}
	return nil
}

// write sends one 2-byte command frame.
func (b *Bus) write(addr, cmd byte) error {
	frame := Command(addr, cmd)
	n, err := b.transport.Write(frame)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("incomplete write: %d of %d bytes", n, len(frame))
	}
	return nil
}

// cast sends a fire-and-forget command. The transmit and receive lines are
// tied together on the SRF01, so our own command bytes appear as input; the
// pre-write Flush of the next operation discards them.
func (b *Bus) cast(ctx context.Context, op string, addr int, cmd byte) error {
	if err := validateBroadcastAddr(addr); err != nil {
		return err
	}
	if b.closed {
		return ErrBusClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	b.transport.Flush()
	if err := b.write(byte(addr), cmd); err != nil {
		return &CommError{Op: op, Err: err}
	}
	return nil
}

func (b *Bus) castRange(ctx context.Context, addr int, unit Unit, fake bool) error {
	if err := validateBroadcastAddr(addr); err != nil {
		return err
	}
	if !unit.valid() {
		return fmt.Errorf("%w: got %d", ErrInvalidUnit, unit)
	}

	op := "do_range"
	if fake {
		op = "do_fake_range"
	}
	if err := b.cast(ctx, op, addr, rangeCommand(unit, false, fake)); err != nil {
		return err
	}

	// Every sensor that heard the command now ranges in this unit.
	if addr == BroadcastAddr {
		b.units.setAll(unit)
	} else {
		b.units.set(addr, unit)
	}
	return nil
}

func (b *Bus) queryRange(ctx context.Context, addr int, unit Unit, fake bool) (int, error) {
	if err := validateAddr(addr); err != nil {
		return NoReading, err
	}
	if !unit.valid() {
		return NoReading, fmt.Errorf("%w: got %d", ErrInvalidUnit, unit)
	}

	data, err := b.query(ctx, byte(addr), rangeCommand(unit, true, fake), 2)
	if err == nil || isCommFailure(err) {
		// The command reached the wire either way; the sensor ranged in
		// this unit even if its reply got lost.
		b.units.set(addr, unit)
	}
	return b.reading(data, err)
}

// query sends a command expecting a reply: write the frame, consume the
// 2-byte echo of our own transmission, then read exactly n reply bytes
// within the timeout window.
func (b *Bus) query(ctx context.Context, addr, cmd byte, n int) ([]byte, error) {
	if b.closed {
		return nil, ErrBusClosed
	}

	b.transport.Flush()
	if err := b.write(addr, cmd); err != nil {
		return nil, &CommError{Op: "query", Err: err}
	}

	if _, err := b.readFull(ctx, 2); err != nil {
		return nil, err
	}

	return b.readFull(ctx, n)
}

// reading translates the outcome of a query into the driver's result
// convention: sensor silence is the NoReading sentinel, not an error; only
// invalid inputs, cancellation, and use-after-close are errors.
func (b *Bus) reading(data []byte, err error) (int, error) {
	if err != nil {
		if isCommFailure(err) {
			return NoReading, nil
		}
		return NoReading, err
	}
	return DecodeRange(data), nil
}

func isCommFailure(err error) bool {
	var commErr *CommError
	return errors.Is(err, errTimeout) || errors.Is(err, errNoResponse) || errors.As(err, &commErr)
}

// readFull reads exactly expectedLen bytes, accumulating partial reads
// until the deadline. Sensor silence and truncated replies come back as
// errNoResponse and errTimeout respectively; partial data is never
// returned.
func (b *Bus) readFull(ctx context.Context, expectedLen int) ([]byte, error) {
	buffer := make([]byte, expectedLen)
	totalRead := 0
	deadline := time.Now().Add(b.timeout)

	for totalRead < expectedLen {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			if totalRead == 0 {
				return nil, errNoResponse
			}
			return nil, fmt.Errorf("%w: read %d of %d expected bytes", errTimeout, totalRead, expectedLen)
		}

		remaining := max(time.Until(deadline), 5*time.Millisecond)
		b.transport.SetReadTimeout(remaining)

		n, err := b.transport.Read(buffer[totalRead:])
		if err != nil {
			// A zero-byte read is how transports report a poll timeout.
			if n == 0 {
				time.Sleep(time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("read error: %w", err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		totalRead += n
	}

	return buffer, nil
}
