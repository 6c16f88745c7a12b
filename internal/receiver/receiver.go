// Package receiver implements the receiver pool (C7): one goroutine per
// tunnel, pulling datagrams off the wire and injecting decoded frames
// back into the host.
package receiver

import (
	"context"
	"time"

	"github.com/eantcal/vnddvpn/internal/codec"
	"github.com/eantcal/vnddvpn/internal/netudp"
	"github.com/eantcal/vnddvpn/internal/tunnel"
	"github.com/eantcal/vnddvpn/internal/vif"
	"github.com/eantcal/vnddvpn/internal/vnddlog"
)

// pollTimeout bounds how long a single poll waits before re-checking
// removePending, matching the source's 5-second poll timeout.
const pollTimeout = 5 * time.Second

// Run blocks, receiving datagrams for t until removePending is
// observed or the socket reports an error, then closes t's done
// channel exactly once. Grounded on the source's tunnel_recv_thread;
// the recursive mutex held for the thread's lifetime there is replaced
// by t.Done()/t.MarkDone() (see DESIGN.md, §9 resolution).
func Run(ctx context.Context, t *tunnel.Tunnel, vifAdapter vif.Adapter, log *vnddlog.Logger) {
	defer t.MarkDone()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if t.RemovePending() {
			return
		}

		status, err := t.Socket.Poll(pollTimeout)
		if err != nil {
			log.Warn("receiver: poll error, exiting", vnddlog.Fields{"tunnel": t.Name, "error": err.Error()})
			return
		}
		if status != netudp.PollReady {
			continue
		}

		buf := make([]byte, codec.MaxDatagram)
		n, _, err := t.Socket.RecvFrom(buf)
		if err != nil {
			log.Warn("receiver: recvfrom error, exiting", vnddlog.Fields{"tunnel": t.Name, "error": err.Error()})
			return
		}
		if n == 0 {
			log.Warn("receiver: zero-length datagram, exiting", vnddlog.Fields{"tunnel": t.Name})
			return
		}

		payload := buf[:n]
		if t.Key != nil {
			decrypted, err := codec.Decrypt(payload, *t.Key)
			if err != nil {
				log.Warn("receiver: decrypt failed, dropping datagram", vnddlog.Fields{"tunnel": t.Name, "error": err.Error()})
				continue
			}
			payload = decrypted
		}

		if err := vifAdapter.Submit(t.Name, payload); err != nil {
			log.Warn("receiver: submit failed, dropping frame", vnddlog.Fields{"tunnel": t.Name, "error": err.Error()})
		}
	}
}
