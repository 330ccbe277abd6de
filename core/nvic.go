package core

import "errors"

// PriorityBits is the number of priority bits the STM32F1 NVIC implements
// (the upper nibble of each IPR byte).
const PriorityBits = 4

// IRQ is a Cortex-M external interrupt number.
type IRQ uint8

// STM32F103 interrupt numbers used by this firmware
const (
	IRQDMA1Channel5 IRQ = 15
	IRQTIM2         IRQ = 28
	IRQTIM3         IRQ = 29
	IRQUSART1       IRQ = 37
)

// PriorityGroup is the number of priority bits given to preemption; the
// rest select sub-priority. Group 2 is the StdPeriph NVIC_PriorityGroup_2.
type PriorityGroup uint8

const (
	PriorityGroup0 PriorityGroup = iota // 0 preempt, 4 sub
	PriorityGroup1                      // 1 preempt, 3 sub
	PriorityGroup2                      // 2 preempt, 2 sub
	PriorityGroup3                      // 3 preempt, 1 sub
	PriorityGroup4                      // 4 preempt, 0 sub
)

var (
	ErrPriorityGroup = errors.New("nvic: priority group out of range")
	ErrPriorityRange = errors.New("nvic: priority does not fit the group")
	ErrRxPreemption  = errors.New("nvic: RX interrupts must share one preemption level")
)

// PreemptBits returns how many bits select the preemption level.
func (g PriorityGroup) PreemptBits() uint8 {
	if g > PriorityGroup4 {
		return PriorityBits
	}
	return uint8(g)
}

// SubBits returns how many bits select the sub-priority.
func (g PriorityGroup) SubBits() uint8 {
	return PriorityBits - g.PreemptBits()
}

// PRIGROUP returns the SCB AIRCR PRIGROUP field value for this group.
func (g PriorityGroup) PRIGROUP() uint32 {
	return 7 - uint32(g.PreemptBits())
}

// IRQPriority is a preemption/sub-priority pair; lower is more urgent.
type IRQPriority struct {
	Preempt uint8
	Sub     uint8
}

// EncodePriority packs preempt and sub into a PriorityBits-wide value,
// truncating each to its field width like CMSIS NVIC_EncodePriority.
func EncodePriority(g PriorityGroup, preempt, sub uint8) uint8 {
	pb, sb := g.PreemptBits(), g.SubBits()
	preempt &= uint8(1<<pb) - 1
	sub &= uint8(1<<sb) - 1
	return preempt<<sb | sub
}

// DecodePriority splits an encoded value back into its two fields.
func DecodePriority(g PriorityGroup, prio uint8) IRQPriority {
	sb := g.SubBits()
	prio &= 1<<PriorityBits - 1
	return IRQPriority{
		Preempt: prio >> sb,
		Sub:     prio & (uint8(1<<sb) - 1),
	}
}

// InterruptController programs the NVIC.
type InterruptController interface {
	SetPriorityGrouping(g PriorityGroup)
	// SetPriority takes the encoded PriorityBits-wide value.
	SetPriority(irq IRQ, prio uint8) error
	Enable(irq IRQ) error
}

// NVICEntry assigns a priority to one interrupt line
type NVICEntry struct {
	IRQ      IRQ
	Priority IRQPriority
}

// NVICConfig is the complete interrupt priority setup.
type NVICConfig struct {
	Group   PriorityGroup
	Entries []NVICEntry
}

// DefaultNVICConfig mirrors the demo: group 2, USART1 and DMA1 channel 5
// at the same (highest) level, TIM3 below them.
func DefaultNVICConfig() NVICConfig {
	return NVICConfig{
		Group: PriorityGroup2,
		Entries: []NVICEntry{
			{IRQ: IRQUSART1, Priority: IRQPriority{Preempt: 0, Sub: 0}},
			{IRQ: IRQDMA1Channel5, Priority: IRQPriority{Preempt: 0, Sub: 0}},
			{IRQ: IRQTIM3, Priority: IRQPriority{Preempt: 2, Sub: 1}},
		},
	}
}

// Validate checks that every priority fits the group and that the RX
// interrupt sources cannot preempt each other.
func (c NVICConfig) Validate() error {
	if c.Group > PriorityGroup4 {
		return ErrPriorityGroup
	}
	maxPreempt := uint8(1<<c.Group.PreemptBits()) - 1
	maxSub := uint8(1<<c.Group.SubBits()) - 1

	rxLevel := -1
	for _, e := range c.Entries {
		if e.Priority.Preempt > maxPreempt || e.Priority.Sub > maxSub {
			return ErrPriorityRange
		}
		if e.IRQ != IRQUSART1 && e.IRQ != IRQDMA1Channel5 {
			continue
		}
		if rxLevel >= 0 && int(e.Priority.Preempt) != rxLevel {
			return ErrRxPreemption
		}
		rxLevel = int(e.Priority.Preempt)
	}
	return nil
}

// Apply validates the configuration and programs ic with it.
func (c NVICConfig) Apply(ic InterruptController) error {
	if err := c.Validate(); err != nil {
		return err
	}
	ic.SetPriorityGrouping(c.Group)
	for _, e := range c.Entries {
		prio := EncodePriority(c.Group, e.Priority.Preempt, e.Priority.Sub)
		if err := ic.SetPriority(e.IRQ, prio); err != nil {
			return err
		}
		if err := ic.Enable(e.IRQ); err != nil {
			return err
		}
	}
	return nil
}
