package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"slices"

	"github.com/encodeous/reroute/state"
	"golang.org/x/sync/errgroup"
)

// Listener receives the heartbeat frames mirrored by the switches to their cpu port. Every switch
// sends to its own address, so the receiving socket identifies the switch.
type Listener struct {
	conns map[state.NodeId]*net.UDPConn
	log   *slog.Logger
}

// Listen binds one socket per switch in sources
func Listen(sources map[state.NodeId]netip.AddrPort, log *slog.Logger) (*Listener, error) {
	l := &Listener{
		conns: make(map[state.NodeId]*net.UDPConn, len(sources)),
		log:   log,
	}
	for sw, addr := range sources {
		conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to listen for %s on %s: %w", sw, addr, err)
		}
		l.conns[sw] = conn
	}
	return l, nil
}

// Addrs returns the bound address of every socket
func (l *Listener) Addrs() map[state.NodeId]netip.AddrPort {
	addrs := make(map[state.NodeId]netip.AddrPort, len(l.conns))
	for sw, conn := range l.conns {
		addrs[sw] = conn.LocalAddr().(*net.UDPAddr).AddrPort()
	}
	return addrs
}

// Serve decodes frames until ctx is cancelled or a socket fails. Frames that are not heartbeats are dropped.
func (l *Listener) Serve(ctx context.Context, handle func(state.FailureEvent)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		l.Close()
		return nil
	})
	for sw, conn := range l.conns {
		g.Go(func() error {
			return l.read(gctx, sw, conn, handle)
		})
	}
	return g.Wait()
}

func (l *Listener) read(ctx context.Context, sw state.NodeId, conn *net.UDPConn, handle func(state.FailureEvent)) error {
	buf := make([]byte, state.MaxFrameSize)
	for {
		n, _, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("heartbeat socket for %s: %w", sw, err)
		}
		hb, err := Decode(slices.Clone(buf[:n]))
		if err != nil {
			if l.log != nil {
				l.log.Debug("dropped frame", "switch", sw, "len", n, "error", err)
			}
			continue
		}
		handle(hb.Event(sw))
	}
}

func (l *Listener) Close() {
	for _, conn := range l.conns {
		_ = conn.Close()
	}
}
