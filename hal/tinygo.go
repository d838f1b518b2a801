//go:build tinygo && baremetal

package hal

import (
	"context"
	"machine"
)

// New returns a Pico 2 (RP2350) HAL. The machine model runs in real time,
// its clock driven from the board's ticker.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
func New(cfg MachineConfig) HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})

	cfg.Virtual = false
	h := NewSim(&uartLogger{uart: uart}, cfg).(*simHAL)
	go h.m.Drive(context.Background(), 1000)
	return h
}

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	for i := 0; i < len(b); i++ {
		l.uart.WriteByte(b[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}
