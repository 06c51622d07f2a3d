package srf01

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mattcip/srf01/transports"
)

func newTestBus(t *testing.T, mock *transports.MockTransport) *Bus {
	t.Helper()

	bus, err := NewBus(Config{
		Transport: mock,
		Timeout:   30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}
	t.Cleanup(func() { bus.Close() })

	return bus
}

func TestBus_SoftwareVersion(t *testing.T) {
	// Echo of our own frame first, then the 1-byte version reply.
	mock := &transports.MockTransport{
		ReadData: []byte{0x05, CmdSoftwareVersion, 0x02},
	}
	bus := newTestBus(t, mock)

	v, err := bus.SoftwareVersion(context.Background(), 5)
	if err != nil {
		t.Fatalf("SoftwareVersion failed: %v", err)
	}
	if v != 2 {
		t.Errorf("version: got %d, want 2", v)
	}

	if !bytes.Equal(mock.WriteData, []byte{0x05, CmdSoftwareVersion}) {
		t.Errorf("wrote %X, want [05 %02X]", mock.WriteData, CmdSoftwareVersion)
	}
}

func TestBus_SoftwareVersion_Timeout(t *testing.T) {
	mock := &transports.MockTransport{} // no bytes ever arrive
	bus := newTestBus(t, mock)

	v, err := bus.SoftwareVersion(context.Background(), 3)
	if err != nil {
		t.Fatalf("comm failure must not be an error, got: %v", err)
	}
	if v != NoReading {
		t.Errorf("version on timeout: got %d, want %d", v, NoReading)
	}
}

func TestBus_Status(t *testing.T) {
	mock := &transports.MockTransport{
		ReadData: []byte{0x08, CmdStatus, 0x03},
	}
	bus := newTestBus(t, mock)

	st, err := bus.Status(context.Background(), 8)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !st.Advanced() || !st.Locked() {
		t.Errorf("status 3 should be advanced and locked, got %v", st)
	}
}

func TestBus_Status_Timeout(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	st, err := bus.Status(context.Background(), 8)
	if err != nil {
		t.Fatalf("comm failure must not be an error, got: %v", err)
	}
	if st != NoReading {
		t.Errorf("status on timeout: got %d, want %d", st, NoReading)
	}
}

func TestBus_Range(t *testing.T) {
	// Echo, then 2-byte reply 0x01 0x2C = 300cm.
	mock := &transports.MockTransport{
		ReadData: []byte{0x04, CmdRangeCMReply, 0x01, 0x2C},
	}
	bus := newTestBus(t, mock)

	r, err := bus.Range(context.Background(), 4, Centimeters)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if r != 300 {
		t.Errorf("range: got %d, want 300", r)
	}

	if !bytes.Equal(mock.WriteData, []byte{0x04, CmdRangeCMReply}) {
		t.Errorf("wrote %X, want [04 %02X]", mock.WriteData, CmdRangeCMReply)
	}

	// Unit is tracked for the queried address.
	u, err := bus.LastUnit(4)
	if err != nil {
		t.Fatalf("LastUnit failed: %v", err)
	}
	if u != Centimeters {
		t.Errorf("tracked unit: got %v, want cm", u)
	}
}

func TestBus_Range_Timeout(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	r, err := bus.Range(context.Background(), 4, Inches)
	if err != nil {
		t.Fatalf("comm failure must not be an error, got: %v", err)
	}
	if r != NoReading {
		t.Errorf("range on timeout: got %d, want %d", r, NoReading)
	}
}

func TestBus_Range_BroadcastRejected(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	_, err := bus.Range(context.Background(), BroadcastAddr, Centimeters)
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress for broadcast range, got %v", err)
	}
	if len(mock.WriteData) != 0 {
		t.Errorf("nothing may be written on invalid input, wrote %X", mock.WriteData)
	}
}

func TestBus_LastRange(t *testing.T) {
	mock := &transports.MockTransport{
		ReadData: []byte{0x07, CmdGetRange, 0x00, 0x64},
	}
	bus := newTestBus(t, mock)

	r, err := bus.LastRange(context.Background(), 7)
	if err != nil {
		t.Fatalf("LastRange failed: %v", err)
	}
	if r != 100 {
		t.Errorf("last range: got %d, want 100", r)
	}
}

func TestBus_DoRange_Broadcast(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	if err := bus.DoRange(context.Background(), BroadcastAddr, Inches); err != nil {
		t.Fatalf("DoRange failed: %v", err)
	}

	if !bytes.Equal(mock.WriteData, []byte{0x00, CmdRangeInches}) {
		t.Errorf("wrote %X, want [00 %02X]", mock.WriteData, CmdRangeInches)
	}

	// A broadcast ranging switches every sensor on the bus, so the tracked
	// unit flips for all 16 addresses.
	for addr := MinAddr; addr <= MaxAddr; addr++ {
		u, err := bus.LastUnit(addr)
		if err != nil {
			t.Fatalf("LastUnit(%d) failed: %v", addr, err)
		}
		if u != Inches {
			t.Errorf("addr %d tracked unit: got %v, want in", addr, u)
		}
	}
}

func TestBus_DoRange_SingleTarget(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	if err := bus.DoRange(context.Background(), 9, Inches); err != nil {
		t.Fatalf("DoRange failed: %v", err)
	}

	u, _ := bus.LastUnit(9)
	if u != Inches {
		t.Errorf("addr 9 tracked unit: got %v, want in", u)
	}

	// Untouched addresses keep the centimeter default.
	u, _ = bus.LastUnit(10)
	if u != Centimeters {
		t.Errorf("addr 10 tracked unit: got %v, want cm", u)
	}
}

func TestBus_DoRange_InvalidUnit(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	err := bus.DoRange(context.Background(), BroadcastAddr, Unit(7))
	if !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("expected ErrInvalidUnit, got %v", err)
	}
	if len(mock.WriteData) != 0 {
		t.Errorf("nothing may be written on invalid input, wrote %X", mock.WriteData)
	}
}

func TestBus_DoFakeRange(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	if err := bus.DoFakeRange(context.Background(), BroadcastAddr, Centimeters); err != nil {
		t.Fatalf("DoFakeRange failed: %v", err)
	}

	if !bytes.Equal(mock.WriteData, []byte{0x00, CmdFakeRangeCM}) {
		t.Errorf("wrote %X, want [00 %02X]", mock.WriteData, CmdFakeRangeCM)
	}
}

func TestBus_Burst(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	if err := bus.Burst(context.Background(), BroadcastAddr); err != nil {
		t.Fatalf("Burst failed: %v", err)
	}

	if !bytes.Equal(mock.WriteData, []byte{0x00, CmdBurst}) {
		t.Errorf("wrote %X, want [00 %02X]", mock.WriteData, CmdBurst)
	}
}

func TestBus_AdvancedMode(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	ctx := context.Background()
	if err := bus.SetAdvancedMode(ctx, 2); err != nil {
		t.Fatalf("SetAdvancedMode failed: %v", err)
	}
	if err := bus.ClearAdvancedMode(ctx, BroadcastAddr); err != nil {
		t.Fatalf("ClearAdvancedMode failed: %v", err)
	}

	want := []byte{0x02, CmdSetAdvancedMode, 0x00, CmdClearAdvancedMode}
	if !bytes.Equal(mock.WriteData, want) {
		t.Errorf("wrote %X, want %X", mock.WriteData, want)
	}
}

func TestBus_InvalidAddress(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	ctx := context.Background()

	singleTarget := map[string]func() error{
		"SoftwareVersion": func() error { _, err := bus.SoftwareVersion(ctx, 17); return err },
		"Status":          func() error { _, err := bus.Status(ctx, 0); return err },
		"LastRange":       func() error { _, err := bus.LastRange(ctx, -1); return err },
		"Range":           func() error { _, err := bus.Range(ctx, 17, Centimeters); return err },
		"FakeRange":       func() error { _, err := bus.FakeRange(ctx, 17, Centimeters); return err },
		"ChangeAddress":   func() error { return bus.ChangeAddress(ctx, 0, 5) },
		"LastUnit":        func() error { _, err := bus.LastUnit(17); return err },
	}
	for name, op := range singleTarget {
		if err := op(); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("%s: expected ErrInvalidAddress, got %v", name, err)
		}
	}

	broadcast := map[string]func() error{
		"DoRange":           func() error { return bus.DoRange(ctx, 17, Centimeters) },
		"DoFakeRange":       func() error { return bus.DoFakeRange(ctx, -2, Centimeters) },
		"Burst":             func() error { return bus.Burst(ctx, 20) },
		"SetAdvancedMode":   func() error { return bus.SetAdvancedMode(ctx, 17) },
		"ClearAdvancedMode": func() error { return bus.ClearAdvancedMode(ctx, 17) },
		"Sleep":             func() error { return bus.Sleep(ctx, 17) },
		"Wake":              func() error { return bus.Wake(ctx, 17) },
	}
	for name, op := range broadcast {
		if err := op(); !errors.Is(err, ErrInvalidBroadcastAddress) {
			t.Errorf("%s: expected ErrInvalidBroadcastAddress, got %v", name, err)
		}
	}

	if len(mock.WriteData) != 0 {
		t.Errorf("nothing may be written on invalid input, wrote %X", mock.WriteData)
	}
	if mock.Reads != 0 {
		t.Errorf("nothing may be read on invalid input, read %d times", mock.Reads)
	}
}

func TestBus_ChangeAddress(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	if err := bus.ChangeAddress(context.Background(), 1, 5); err != nil {
		t.Fatalf("ChangeAddress failed: %v", err)
	}

	// Three unlock frames plus the address-set frame, each its own write.
	want := [][]byte{
		{0x01, 0xA0},
		{0x01, 0xAA},
		{0x01, 0xA5},
		{0x01, 0x05},
	}
	if len(mock.Writes) != len(want) {
		t.Fatalf("write count: got %d, want %d", len(mock.Writes), len(want))
	}
	for i, frame := range want {
		if !bytes.Equal(mock.Writes[i], frame) {
			t.Errorf("write %d: got %X, want %X", i, mock.Writes[i], frame)
		}
	}

	if mock.Reads != 0 {
		t.Errorf("no reads may interleave the sequence, read %d times", mock.Reads)
	}
}

func TestBus_SetBaudRate(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)

	ctx := context.Background()
	if err := bus.SetBaudRate(ctx, BroadcastAddr, 19200); err != nil {
		t.Fatalf("SetBaudRate failed: %v", err)
	}
	if err := bus.SetBaudRate(ctx, 3, 38400); err != nil {
		t.Fatalf("SetBaudRate failed: %v", err)
	}

	want := []byte{0x00, CmdBaud19200, 0x03, CmdBaud38400}
	if !bytes.Equal(mock.WriteData, want) {
		t.Errorf("wrote %X, want %X", mock.WriteData, want)
	}

	if err := bus.SetBaudRate(ctx, 3, 115200); !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("expected ErrInvalidBaudRate, got %v", err)
	}
}

func TestBus_Scan(t *testing.T) {
	// Addresses 2 and 11 respond, everything else stays silent.
	responders := map[byte][]byte{
		2:  {0x02, CmdSoftwareVersion, 0x02},
		11: {0x0B, CmdSoftwareVersion, 0x01},
	}
	mock := &transports.MockTransport{}
	var pending []byte
	served := -1
	mock.ReadFunc = func(p []byte) (int, error) {
		// Queue the reply for the most recent probe, once per write.
		if len(pending) == 0 && len(mock.Writes)-1 != served {
			served = len(mock.Writes) - 1
			frame := mock.Writes[served]
			if data, ok := responders[frame[0]]; ok {
				pending = append(pending, data...)
			}
		}
		if len(pending) == 0 {
			return 0, nil
		}
		n := copy(p, pending)
		pending = pending[n:]
		return n, nil
	}

	bus, err := NewBus(Config{
		Transport: mock,
		Timeout:   10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}
	defer bus.Close()

	found, err := bus.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []int{2, 11}
	if len(found) != len(want) || found[0] != want[0] || found[1] != want[1] {
		t.Errorf("scan: got %v, want %v", found, want)
	}
}

func TestBus_Close(t *testing.T) {
	mock := &transports.MockTransport{}
	bus, _ := NewBus(Config{Transport: mock})

	if err := bus.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !mock.Closed {
		t.Error("transport not closed")
	}

	// Closing again should be safe
	if err := bus.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestBus_ClosedOperations(t *testing.T) {
	mock := &transports.MockTransport{}
	bus, _ := NewBus(Config{Transport: mock})
	bus.Close()

	ctx := context.Background()

	if _, err := bus.SoftwareVersion(ctx, 1); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
	if err := bus.Burst(ctx, BroadcastAddr); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
	if err := bus.ChangeAddress(ctx, 1, 2); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}

func TestBus_ContextCancellation(t *testing.T) {
	// Simulate slow transport
	mock := &transports.MockTransport{
		ReadFunc: func(p []byte) (int, error) {
			time.Sleep(200 * time.Millisecond)
			return 0, nil
		},
	}

	bus, _ := NewBus(Config{
		Transport: mock,
		Timeout:   time.Second,
	})
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := bus.Range(ctx, 1, Centimeters)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context cancellation error, got %v", err)
	}
}
