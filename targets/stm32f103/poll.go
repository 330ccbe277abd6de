//go:build stm32f103 && !uartirq

package main

import "uartdma/core"

// Without the RX interrupts the main loop is the only caller and has to
// poll faster than half a ring fills.
const rxMode = core.RxModePolling

func initRxInterrupts(*nvicController) {}

func pollRx() {
	_ = rxService.Poll()
}
