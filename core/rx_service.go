package core

import "errors"

// ErrRxContext is returned when a receive check arrives from the context
// the service was not built for.
var ErrRxContext = errors.New("rx: check from wrong context")

// RxMode selects the single context that drives reconciliation.
type RxMode uint8

const (
	// RxModeInterrupt: only DMA HT/TC and USART IDLE handlers call in.
	// They must share one preemption priority.
	RxModeInterrupt RxMode = iota
	// RxModePolling: only the main loop calls in, as often as needed to
	// stay ahead of the DMA engine.
	RxModePolling
)

// RxService ties a tracker to the DMA channel that feeds it.
type RxService struct {
	tracker *RxTracker
	dma     RxDMADriver
	mode    RxMode
}

// NewRxService allocates the ring, builds the tracker and starts the
// DMA channel over it.
func NewRxService(dma RxDMADriver, mode RxMode, size int, consume SpanConsumer) (*RxService, error) {
	buf := make([]byte, size)
	s := &RxService{
		tracker: NewRxTracker(buf, consume),
		dma:     dma,
		mode:    mode,
	}
	if err := dma.Start(buf); err != nil {
		return nil, err
	}
	return s, nil
}

// StartUART brings up the line in hardware order: configure the UART,
// start the DMA ring, then enable the peripheral so no byte arrives
// before the channel is ready for it.
func StartUART(u UARTDriver, dma RxDMADriver, cfg UARTConfig, mode RxMode, size int, consume SpanConsumer) (*RxService, error) {
	if err := u.Configure(cfg); err != nil {
		return nil, err
	}
	s, err := NewRxService(dma, mode, size, consume)
	if err != nil {
		return nil, err
	}
	u.Enable()
	return s, nil
}

// HandleEvent is the interrupt entry point. The caller clears the
// hardware pending flag before calling.
func (s *RxService) HandleEvent(t Trigger) error {
	if s.mode != RxModeInterrupt || t == TriggerPoll {
		return ErrRxContext
	}
	s.tracker.Notify(t, WritePos(s.dma, s.tracker.Size()))
	return nil
}

// Poll is the main loop entry point.
func (s *RxService) Poll() error {
	if s.mode != RxModePolling {
		return ErrRxContext
	}
	s.tracker.Notify(TriggerPoll, WritePos(s.dma, s.tracker.Size()))
	return nil
}

// Mode returns the invocation mode fixed at construction
func (s *RxService) Mode() RxMode {
	return s.mode
}

// Stats snapshots the tracker counters with the receive path masked, so
// the main loop never reads them half way through a check.
func (s *RxService) Stats() RxStats {
	state := disableInterrupts()
	st := s.tracker.Stats()
	restoreInterrupts(state)
	return st
}

// Tracker exposes the underlying tracker for stats and tests.
func (s *RxService) Tracker() *RxTracker {
	return s.tracker
}
