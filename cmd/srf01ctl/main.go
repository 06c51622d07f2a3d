// Command srf01ctl is an interactive console for SRF01 sensors on a shared
// serial bus.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/mattcip/srf01"
)

var (
	portName = flag.String("port", "/dev/ttyUSB0", "Serial port the sensor bus is attached to.")
	baudRate = flag.Int("baud", srf01.DefaultBaudRate, "Serial baud rate.")
	timeout  = flag.Duration("timeout", srf01.DefaultTimeout, "Read timeout per command.")
)

func main() {
	flag.Parse()

	bus, err := srf01.NewBus(srf01.Config{
		Port:     *portName,
		BaudRate: *baudRate,
		Timeout:  *timeout,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	shell := ishell.New()
	shell.Println("srf01 console -", *portName)
	shell.SetPrompt(fmt.Sprintf("[%s] > ", *portName))
	for _, cmd := range commands(bus) {
		shell.AddCmd(cmd)
	}
	shell.Run()
}

// waitCycle gives broadcast ranging commands time to finish before the
// console prompt returns.
func waitCycle() {
	time.Sleep(srf01.RangeCycle)
}
