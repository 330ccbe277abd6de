package core

// flusher is implemented by sinks that can wait for the transmitter to drain
type flusher interface {
	Flush()
}

// LoopbackConsumer returns a SpanConsumer that echoes every received byte
// to sink, polled, and waits for the sink to drain after each span.
//
// This runs on the caller's context. In interrupt mode a slow sink holds
// the CPU inside the DMA/USART handler for the whole span.
func LoopbackConsumer(sink ByteSink) SpanConsumer {
	return func(span []byte) {
		for _, b := range span {
			if err := sink.WriteByte(b); err != nil {
				DebugAsync("[RX] echo write failed: " + err.Error())
				return
			}
		}
		if f, ok := sink.(flusher); ok {
			f.Flush()
		}
	}
}

// SendString writes s to sink byte by byte.
func SendString(sink ByteSink, s string) error {
	for i := 0; i < len(s); i++ {
		if err := sink.WriteByte(s[i]); err != nil {
			return err
		}
	}
	if f, ok := sink.(flusher); ok {
		f.Flush()
	}
	return nil
}
