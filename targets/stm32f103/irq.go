//go:build stm32f103 && uartirq

package main

import (
	"device/stm32"
	"runtime/interrupt"

	"uartdma/core"
)

// The DMA and USART handlers are the only callers of the tracker. They
// share one preemption level, so neither can interrupt the other.
const rxMode = core.RxModeInterrupt

func initRxInterrupts(nv *nvicController) {
	nv.add(core.IRQUSART1, interrupt.New(stm32.IRQ_USART1, func(interrupt.Interrupt) {
		if clearIdle() {
			rxEvent(core.TriggerIdleLine)
		}
	}))
	nv.add(core.IRQDMA1Channel5, interrupt.New(stm32.IRQ_DMA1_Channel5, func(interrupt.Interrupt) {
		ht, tc := takeDMAFlags()
		switch {
		case tc:
			rxEvent(core.TriggerTransferComplete)
		case ht:
			rxEvent(core.TriggerHalfTransfer)
		}
	}))
}

func rxEvent(t core.Trigger) {
	if rxService != nil {
		_ = rxService.HandleEvent(t)
	}
}

// pollRx has nothing to do; interrupts drive reception.
func pollRx() {}
