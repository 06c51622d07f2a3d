package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/mattcip/srf01"
)

func commands(bus *srf01.Bus) []*ishell.Cmd {
	ctx := context.Background()

	return []*ishell.Cmd{
		{
			Name: "scan",
			Help: "probe addresses 1-16 and list responding sensors",
			Func: func(c *ishell.Context) {
				found, err := bus.Scan(ctx)
				if err != nil {
					c.Err(err)
					return
				}
				if len(found) == 0 {
					c.Println("no sensors found")
					return
				}
				c.Printf("sensors at %v\n", found)
			},
		},
		{
			Name: "version",
			Help: "ADDR - read firmware version",
			Func: func(c *ishell.Context) {
				addr, ok := argAddr(c, 0)
				if !ok {
					return
				}
				v, err := bus.SoftwareVersion(ctx, addr)
				if err != nil {
					c.Err(err)
					return
				}
				if v == srf01.NoReading {
					c.Println("no response")
					return
				}
				c.Printf("software version %d\n", v)
			},
		},
		{
			Name: "status",
			Help: "ADDR - read mode/lock status",
			Func: func(c *ishell.Context) {
				addr, ok := argAddr(c, 0)
				if !ok {
					return
				}
				st, err := bus.Status(ctx, addr)
				if err != nil {
					c.Err(err)
					return
				}
				if st == srf01.NoReading {
					c.Println("no response")
					return
				}
				c.Println(st.String())
			},
		},
		{
			Name: "range",
			Help: "ADDR [cm|in] - blocking range measurement",
			Func: func(c *ishell.Context) {
				addr, ok := argAddr(c, 0)
				if !ok {
					return
				}
				unit, ok := argUnit(c, 1)
				if !ok {
					return
				}
				r, err := bus.Range(ctx, addr, unit)
				if err != nil {
					c.Err(err)
					return
				}
				printReading(c, addr, r, unit)
			},
		},
		{
			Name: "fakerange",
			Help: "ADDR [cm|in] - blocking range without burst",
			Func: func(c *ishell.Context) {
				addr, ok := argAddr(c, 0)
				if !ok {
					return
				}
				unit, ok := argUnit(c, 1)
				if !ok {
					return
				}
				r, err := bus.FakeRange(ctx, addr, unit)
				if err != nil {
					c.Err(err)
					return
				}
				printReading(c, addr, r, unit)
			},
		},
		{
			Name: "dorange",
			Help: "[ADDR] [cm|in] - start ranging, default broadcast",
			Func: func(c *ishell.Context) {
				addr, ok := argAddrDefault(c, 0, srf01.BroadcastAddr)
				if !ok {
					return
				}
				unit, ok := argUnit(c, 1)
				if !ok {
					return
				}
				if err := bus.DoRange(ctx, addr, unit); err != nil {
					c.Err(err)
					return
				}
				waitCycle()
				c.Println("ranging started; use lastrange to collect results")
			},
		},
		{
			Name: "lastrange",
			Help: "ADDR - read result of the most recent ranging",
			Func: func(c *ishell.Context) {
				addr, ok := argAddr(c, 0)
				if !ok {
					return
				}
				r, err := bus.LastRange(ctx, addr)
				if err != nil {
					c.Err(err)
					return
				}
				unit, _ := bus.LastUnit(addr)
				printReading(c, addr, r, unit)
			},
		},
		{
			Name: "burst",
			Help: "[ADDR] - transmit a burst without ranging, default broadcast",
			Func: func(c *ishell.Context) {
				addr, ok := argAddrDefault(c, 0, srf01.BroadcastAddr)
				if !ok {
					return
				}
				if err := bus.Burst(ctx, addr); err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "adv",
			Help: "[ADDR] - set advanced mode, default broadcast",
			Func: func(c *ishell.Context) {
				addr, ok := argAddrDefault(c, 0, srf01.BroadcastAddr)
				if !ok {
					return
				}
				if err := bus.SetAdvancedMode(ctx, addr); err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "noadv",
			Help: "[ADDR] - clear advanced mode, default broadcast",
			Func: func(c *ishell.Context) {
				addr, ok := argAddrDefault(c, 0, srf01.BroadcastAddr)
				if !ok {
					return
				}
				if err := bus.ClearAdvancedMode(ctx, addr); err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "sleep",
			Help: "[ADDR] - enter low-power sleep, default broadcast",
			Func: func(c *ishell.Context) {
				addr, ok := argAddrDefault(c, 0, srf01.BroadcastAddr)
				if !ok {
					return
				}
				if err := bus.Sleep(ctx, addr); err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "wake",
			Help: "[ADDR] - wake from sleep, default broadcast",
			Func: func(c *ishell.Context) {
				addr, ok := argAddrDefault(c, 0, srf01.BroadcastAddr)
				if !ok {
					return
				}
				if err := bus.Wake(ctx, addr); err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "chaddr",
			Help: "CUR NEW - change a sensor's address (sole sensor on bus!)",
			Func: func(c *ishell.Context) {
				cur, ok := argAddr(c, 0)
				if !ok {
					return
				}
				next, ok := argAddr(c, 1)
				if !ok {
					return
				}
				if err := bus.ChangeAddress(ctx, cur, next); err != nil {
					c.Err(err)
					return
				}
				c.Printf("sensor %d is now address %d\n", cur, next)
			},
		},
		{
			Name: "baud",
			Help: "ADDR RATE - switch sensor baud rate (19200 or 38400)",
			Func: func(c *ishell.Context) {
				addr, ok := argAddrDefault(c, 0, srf01.BroadcastAddr)
				if !ok {
					return
				}
				if len(c.Args) < 2 {
					c.Err(fmt.Errorf("RATE required"))
					return
				}
				rate, err := strconv.Atoi(c.Args[1])
				if err != nil {
					c.Err(fmt.Errorf("invalid RATE: %v", err))
					return
				}
				if err := bus.SetBaudRate(ctx, addr, rate); err != nil {
					c.Err(err)
					return
				}
				c.Println("sensor switched; reopen the console at the new rate")
			},
		},
	}
}

func argAddr(c *ishell.Context, i int) (int, bool) {
	if len(c.Args) <= i {
		c.Err(fmt.Errorf("ADDR required"))
		return 0, false
	}
	addr, err := strconv.Atoi(c.Args[i])
	if err != nil {
		c.Err(fmt.Errorf("invalid ADDR: %v", err))
		return 0, false
	}
	return addr, true
}

func argAddrDefault(c *ishell.Context, i, def int) (int, bool) {
	if len(c.Args) <= i {
		return def, true
	}
	addr, err := strconv.Atoi(c.Args[i])
	if err != nil {
		c.Err(fmt.Errorf("invalid ADDR: %v", err))
		return 0, false
	}
	return addr, true
}

func argUnit(c *ishell.Context, i int) (srf01.Unit, bool) {
	if len(c.Args) <= i {
		return srf01.Centimeters, true
	}
	unit, err := srf01.ParseUnit(c.Args[i])
	if err != nil {
		c.Err(err)
		return srf01.Centimeters, false
	}
	return unit, true
}

func printReading(c *ishell.Context, addr, r int, unit srf01.Unit) {
	if r == srf01.NoReading {
		c.Printf("sensor %d: no response\n", addr)
		return
	}
	c.Printf("sensor %d: %d %s\n", addr, r, unit)
}
