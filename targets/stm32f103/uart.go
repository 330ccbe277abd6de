//go:build stm32f103

package main

import (
	"errors"
	"unsafe"

	"uartdma/core"
)

// PCLK2 feeds USART1 at the full 72 MHz
const pclk2Hz = 72000000

var (
	errWordLength = errors.New("uart: word length must be 8 or 9")
	errStopBits   = errors.New("uart: stop bits must be 1 or 2")
	errBaudRate   = errors.New("uart: baud rate out of range")
)

// stm32UART drives USART1 on PA9 (TX) / PA10 (RX). Transmit is polled;
// receive is handed to DMA1 channel 5.
type stm32UART struct{}

func (u *stm32UART) Configure(cfg core.UARTConfig) error {
	var cr1 uint32
	switch cfg.WordLength {
	case 8:
	case 9:
		cr1 |= usartCR1_M
	default:
		return errWordLength
	}
	var stop uint32
	switch cfg.StopBits {
	case 1:
		stop = 0
	case 2:
		stop = 2
	default:
		return errStopBits
	}
	if cfg.BaudRate == 0 || cfg.BaudRate > pclk2Hz/16 {
		return errBaudRate
	}

	rccAPB2ENR.SetBits(rccAPB2ENR_IOPAEN | rccAPB2ENR_AFIOEN | rccAPB2ENR_USART1EN)

	// PA9: alternate function push-pull, 50 MHz (CNF=10 MODE=11)
	// PA10: input with pull-up (CNF=10 MODE=00, ODR=1)
	crh := gpioaCRH.Get()
	crh &^= 0xF<<4 | 0xF<<8
	crh |= 0xB<<4 | 0x8<<8
	gpioaCRH.Set(crh)
	gpioaODR.SetBits(1 << 10)

	usart1CR1.Set(0)
	usart1CR2.ReplaceBits(stop, 3, usartCR2_STOP_Pos)
	// Oversampling by 16: BRR holds USARTDIV in 12.4 fixed point
	usart1BRR.Set((pclk2Hz + cfg.BaudRate/2) / cfg.BaudRate)
	usart1CR3.Set(0)

	usart1CR1.Set(cr1 | usartCR1_IDLEIE)
	return nil
}

// Enable switches the USART on once DMA reception is armed.
func (u *stm32UART) Enable() {
	usart1CR1.SetBits(usartCR1_TE | usartCR1_RE | usartCR1_UE)
}

func (u *stm32UART) WriteByte(c byte) error {
	usart1DR.Set(uint32(c))
	for !usart1SR.HasBits(usartSR_TXE) {
	}
	return nil
}

func (u *stm32UART) Flush() {
	for !usart1SR.HasBits(usartSR_TXE) {
	}
}

// clearIdle acknowledges IDLE (and ORE) with the SR-then-DR read sequence.
func clearIdle() bool {
	if !usart1SR.HasBits(usartSR_IDLE) {
		return false
	}
	_ = usart1DR.Get()
	return true
}

// rxDMA is DMA1 channel 5, the USART1_RX request line.
type rxDMA struct {
	size int
}

func (d *rxDMA) Start(buf []byte) error {
	if len(buf) == 0 || len(buf) > 0xFFFF {
		return errors.New("dma: bad ring length")
	}
	d.size = len(buf)

	rccAHBENR.SetBits(rccAHBENR_DMA1EN)

	dma1CCR5.ClearBits(dmaCCR_EN)
	dma1IFCR.Set(dmaIFCR_CGIF5 | dmaIFCR_CTCIF5 | dmaIFCR_CHTIF5 | dmaIFCR_CTEIF5)
	dma1CPAR5.Set(uint32(uintptr(unsafe.Pointer(usart1DR))))
	dma1CMAR5.Set(uint32(uintptr(unsafe.Pointer(&buf[0]))))
	dma1CNDT5.Set(uint32(len(buf)))

	// Peripheral to memory, byte sized, memory increment, circular, HT+TC
	dma1CCR5.Set(dmaCCR_PL_High | dmaCCR_MINC | dmaCCR_CIRC | dmaCCR_HTIE | dmaCCR_TCIE)
	dma1CCR5.SetBits(dmaCCR_EN)

	usart1CR3.SetBits(usartCR3_DMAR)
	return nil
}

func (d *rxDMA) Remaining() int {
	return int(dma1CNDT5.Get() & 0xFFFF)
}

// takeDMAFlags clears and returns the pending HT/TC flags of channel 5
func takeDMAFlags() (ht, tc bool) {
	isr := dma1ISR.Get()
	ht = isr&dmaISR_HTIF5 != 0
	tc = isr&dmaISR_TCIF5 != 0
	if isr&dmaISR_TEIF5 != 0 {
		dma1IFCR.Set(dmaIFCR_CTEIF5)
	}
	if ht {
		dma1IFCR.Set(dmaIFCR_CHTIF5)
	}
	if tc {
		dma1IFCR.Set(dmaIFCR_CTCIF5)
	}
	return
}
