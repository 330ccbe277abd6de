//go:build stm32f103

package main

import (
	"runtime/volatile"
	"unsafe"
)

func reg(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

// STM32F103 peripheral memory map (RM0008)
const (
	rccBase    = 0x40021000
	gpioaBase  = 0x40010800
	usart1Base = 0x40013800
	dma1Base   = 0x40020000
	tim2Base   = 0x40000000
	tim3Base   = 0x40000400
	scbAIRCR   = 0xE000ED0C
)

var (
	rccAHBENR  = reg(rccBase + 0x14)
	rccAPB2ENR = reg(rccBase + 0x18)
	rccAPB1ENR = reg(rccBase + 0x1C)

	gpioaCRH = reg(gpioaBase + 0x04)
	gpioaODR = reg(gpioaBase + 0x0C)

	usart1SR  = reg(usart1Base + 0x00)
	usart1DR  = reg(usart1Base + 0x04)
	usart1BRR = reg(usart1Base + 0x08)
	usart1CR1 = reg(usart1Base + 0x0C)
	usart1CR2 = reg(usart1Base + 0x10)
	usart1CR3 = reg(usart1Base + 0x14)

	dma1ISR   = reg(dma1Base + 0x00)
	dma1IFCR  = reg(dma1Base + 0x04)
	dma1CCR5  = reg(dma1Base + 0x58)
	dma1CNDT5 = reg(dma1Base + 0x5C)
	dma1CPAR5 = reg(dma1Base + 0x60)
	dma1CMAR5 = reg(dma1Base + 0x64)

	aircr = reg(scbAIRCR)
)

// RCC enable bits
const (
	rccAHBENR_DMA1EN    = 1 << 0
	rccAPB2ENR_AFIOEN   = 1 << 0
	rccAPB2ENR_IOPAEN   = 1 << 2
	rccAPB2ENR_USART1EN = 1 << 14
	rccAPB1ENR_TIM2EN   = 1 << 0
	rccAPB1ENR_TIM3EN   = 1 << 1
)

// USART bits
const (
	usartSR_ORE  = 1 << 3
	usartSR_IDLE = 1 << 4
	usartSR_TC   = 1 << 6
	usartSR_TXE  = 1 << 7

	usartCR1_RE     = 1 << 2
	usartCR1_TE     = 1 << 3
	usartCR1_IDLEIE = 1 << 4
	usartCR1_M      = 1 << 12
	usartCR1_UE     = 1 << 13

	usartCR2_STOP_Pos = 12
	usartCR2_STOP_Msk = 3 << usartCR2_STOP_Pos

	usartCR3_DMAR = 1 << 6
)

// DMA channel 5 bits
const (
	dmaISR_TCIF5   = 1 << 17
	dmaISR_HTIF5   = 1 << 18
	dmaISR_TEIF5   = 1 << 19
	dmaIFCR_CGIF5  = 1 << 16
	dmaIFCR_CTCIF5 = 1 << 17
	dmaIFCR_CHTIF5 = 1 << 18
	dmaIFCR_CTEIF5 = 1 << 19

	dmaCCR_EN      = 1 << 0
	dmaCCR_TCIE    = 1 << 1
	dmaCCR_HTIE    = 1 << 2
	dmaCCR_CIRC    = 1 << 5
	dmaCCR_MINC    = 1 << 7
	dmaCCR_PL_High = 2 << 12
)

// General purpose timer registers, relative to the timer base
const (
	timCR1  = 0x00
	timDIER = 0x0C
	timSR   = 0x10
	timEGR  = 0x14
	timCNT  = 0x24
	timPSC  = 0x28
	timARR  = 0x2C

	timCR1_CEN  = 1 << 0
	timCR1_URS  = 1 << 2
	timDIER_UIE = 1 << 0
	timSR_UIF   = 1 << 0
	timEGR_UG   = 1 << 0
)

// AIRCR writes must carry the vector key
const (
	aircrVECTKEY      = 0x05FA << 16
	aircrPRIGROUP_Pos = 8
	aircrPRIGROUP_Msk = 7 << aircrPRIGROUP_Pos
)
