package harness

import "context"

const (
	txOnePort = 2003
	txPort    = 2000
	txCount   = 5
)

// txone sends a single datagram to the peer without waiting for anything.
func (h *Harness) txone(_ context.Context, s *scenario) error {
	s.to(Sending)
	return h.sendToPeer(txOnePort, []byte("txone"))
}

// tx sends "t 0" through "t 4", TxInterval apart. Only local acceptance of
// each send can be checked; the peer reports what arrived.
func (h *Harness) tx(ctx context.Context, s *scenario) error {
	s.to(Sending)
	for i := range txCount {
		if i > 0 {
			if err := sleep(ctx, h.Config.TxInterval); err != nil {
				return err
			}
		}
		if err := h.sendToPeer(txPort, []byte{'t', ' ', byte('0' + i)}); err != nil {
			return err
		}
	}
	return nil
}
