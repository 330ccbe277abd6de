//go:build stm32f103

package main

import "uartdma/core"

const banner = "Hello World\r\n"

var (
	rxService *core.RxService
	sched     core.Scheduler

	// Fault counter, inspected with a debugger
	initErrors uint32

	// Refreshed once a second for a debugger to read
	lastStats core.RxStats
	lastTick  uint32
)

func main() {
	nv := newNVIC()
	initRxInterrupts(nv)
	if err := initTimers(nv); err != nil {
		halt()
	}
	nvCfg := nv.nvicConfig()
	if err := nvCfg.Validate(); err != nil {
		halt()
	}
	nv.SetPriorityGrouping(nvCfg.Group)

	uart := &stm32UART{}
	core.SetUARTDriver(uart)
	core.SetRxDMADriver(&rxDMA{})

	svc, err := core.StartUART(core.MustUART(), core.MustRxDMA(), core.DefaultUARTConfig(),
		rxMode, core.RxDMABufferSize, core.LoopbackConsumer(core.MustUART()))
	if err != nil {
		halt()
	}
	rxService = svc

	if err := nvCfg.Apply(nv); err != nil {
		halt()
	}

	if err := core.SendString(uart, banner); err != nil {
		initErrors++
	}

	counterReset()
	sched.Every(core.TimerFromMS(1000), reportStats)

	for {
		pollRx()
		sched.Dispatch(core.GetTime())
	}
}

// reportStats snapshots receive activity into lastStats
func reportStats() {
	lastStats = rxService.Stats()
	lastTick = uint32(counterGet())
}

func halt() {
	initErrors++
	for {
	}
}
