//go:build stm32f103

package main

import (
	"device/stm32"
	"errors"
	"runtime/interrupt"

	"uartdma/core"
)

var errTimerConfig = errors.New("timer: prescaler or period exceeds 16 bits")

// gpTimer is a general purpose timer (TIM2..TIM4) used as a plain up-counter.
type gpTimer struct {
	base   uintptr
	enable uint32 // RCC APB1ENR bit
	irq    bool   // enable the update interrupt
}

var (
	tim2 = &gpTimer{base: tim2Base, enable: rccAPB1ENR_TIM2EN}
	tim3 = &gpTimer{base: tim3Base, enable: rccAPB1ENR_TIM3EN, irq: true}
)

func (t *gpTimer) Init(cfg core.TimerConfig) error {
	if !cfg.Valid() {
		return errTimerConfig
	}
	rccAPB1ENR.SetBits(t.enable)

	reg(t.base + timCR1).Set(timCR1_URS)
	reg(t.base + timPSC).Set(cfg.Prescaler)
	reg(t.base + timARR).Set(cfg.Period)
	// Load PSC now; URS keeps this from raising an update interrupt
	reg(t.base + timEGR).Set(timEGR_UG)
	reg(t.base + timSR).Set(0)
	if t.irq {
		reg(t.base + timDIER).Set(timDIER_UIE)
	}
	reg(t.base + timCR1).SetBits(timCR1_CEN)
	return nil
}

func (t *gpTimer) Counter() uint16 {
	return uint16(reg(t.base + timCNT).Get())
}

func (t *gpTimer) SetCounter(v uint16) {
	reg(t.base + timCNT).Set(uint32(v))
}

// takeUpdate clears the update flag and reports whether it was set
func (t *gpTimer) takeUpdate() bool {
	sr := reg(t.base + timSR)
	if !sr.HasBits(timSR_UIF) {
		return false
	}
	sr.ClearBits(timSR_UIF)
	return true
}

var _ core.TimerDriver = (*gpTimer)(nil)

// initTimers starts the 1 kHz system tick and the free running counter.
func initTimers(nv *nvicController) error {
	nv.add(core.IRQTIM3, interrupt.New(stm32.IRQ_TIM3, func(interrupt.Interrupt) {
		if tim3.takeUpdate() {
			core.Tick()
		}
	}))
	if err := tim3.Init(core.Timer3Config); err != nil {
		return err
	}
	return tim2.Init(core.CounterConfig)
}

// counterGet reads TIM2, which wraps every second at 10 kHz.
func counterGet() uint16 {
	return tim2.Counter()
}

// counterReset restarts TIM2 from zero.
func counterReset() {
	tim2.SetCounter(0)
}
