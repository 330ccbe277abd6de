//go:build stm32f103

package main

import (
	"errors"
	"runtime/interrupt"

	"uartdma/core"
)

var errUnknownIRQ = errors.New("nvic: interrupt not registered")

// nvicController applies core.NVICConfig through the Cortex-M3 SCB and the
// TinyGo interrupt handles registered with interrupt.New.
type nvicController struct {
	irqs map[core.IRQ]interrupt.Interrupt
}

func newNVIC() *nvicController {
	return &nvicController{irqs: make(map[core.IRQ]interrupt.Interrupt)}
}

func (n *nvicController) add(irq core.IRQ, intr interrupt.Interrupt) {
	n.irqs[irq] = intr
}

func (n *nvicController) SetPriorityGrouping(g core.PriorityGroup) {
	v := aircr.Get()
	v &^= 0xFFFF<<16 | aircrPRIGROUP_Msk
	v |= aircrVECTKEY | g.PRIGROUP()<<aircrPRIGROUP_Pos
	aircr.Set(v)
}

// SetPriority takes the encoded 4-bit value; the F103 implements the top
// four bits of each priority byte.
func (n *nvicController) SetPriority(irq core.IRQ, prio uint8) error {
	intr, ok := n.irqs[irq]
	if !ok {
		return errUnknownIRQ
	}
	intr.SetPriority(prio << (8 - core.PriorityBits))
	return nil
}

func (n *nvicController) Enable(irq core.IRQ) error {
	intr, ok := n.irqs[irq]
	if !ok {
		return errUnknownIRQ
	}
	intr.Enable()
	return nil
}

// nvicConfig keeps only the entries this build registered handlers for
func (n *nvicController) nvicConfig() core.NVICConfig {
	def := core.DefaultNVICConfig()
	cfg := core.NVICConfig{Group: def.Group}
	for _, e := range def.Entries {
		if _, ok := n.irqs[e.IRQ]; ok {
			cfg.Entries = append(cfg.Entries, e)
		}
	}
	return cfg
}
