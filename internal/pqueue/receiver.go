package pqueue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mkallander/elevatorsim/internal/transport"
	"github.com/mkallander/elevatorsim/internal/wire"
)

// Receiver is the dedicated reader task of §4.1: it owns the ingress
// socket exclusively, copies each datagram into the Queue, and replies
// with an ACKNOWLEDGE frame. It is the only goroutine that touches the
// socket's read side; the Queue is the sole synchronization point with
// whatever consumes it.
type Receiver struct {
	Queue     *Queue
	transport transport.Transport
	log       zerolog.Logger
}

// NewReceiver wires a Queue of the given capacity to tr, logging dropped
// and malformed traffic through log.
func NewReceiver(tr transport.Transport, capacity int, log zerolog.Logger) *Receiver {
	q := New(capacity, func(payload []byte) {
		log.Warn().Int("len", len(payload)).Msg("priority queue full, dropping message")
	})
	return &Receiver{Queue: q, transport: tr, log: log}
}

// Run reads datagrams until ctx is cancelled; a read error is logged and
// the loop continues. ReadFrom has no deadline of its own, so a second
// goroutine watches ctx and closes the transport to unblock it.
func (r *Receiver) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		stopWatcher := make(chan struct{})
		defer close(stopWatcher)
		go func() {
			select {
			case <-ctx.Done():
				r.transport.Close()
			case <-stopWatcher:
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			payload, addr, err := r.transport.ReadFrom()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r.log.Error().Err(err).Msg("receive failed")
				continue
			}

			r.Queue.Submit(payload)

			if addr != nil {
				ack := wire.EncodeTagOnly(wire.Acknowledge)
				if err := r.transport.SendTo(addr.Port, ack); err != nil {
					r.log.Error().Err(err).Msg("failed to send acknowledge")
				}
			}
		}
	}()
}
