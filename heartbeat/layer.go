// Package heartbeat decodes the keepalive frames switches exchange with their neighbours and mirror to
// the controller when a neighbour stops answering.
package heartbeat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/encodeous/reroute/state"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const (
	EthernetTypeHeartbeat = layers.EthernetType(state.EtherTypeHeartbeat)
	headerLen             = 2

	portShift  = 7
	portMask   = 0x1ff
	failedFlag = 0x0020
)

var ErrNotHeartbeat = errors.New("not a heartbeat frame")

var LayerTypeHeartbeat = gopacket.RegisterLayerType(
	1816,
	gopacket.LayerTypeMetadata{
		Name:    "Heartbeat",
		Decoder: gopacket.DecodeFunc(decodeHeartbeat),
	},
)

func init() {
	layers.EthernetTypeMetadata[EthernetTypeHeartbeat] = layers.EnumMetadata{
		DecodeWith: gopacket.DecodeFunc(decodeHeartbeat),
		Name:       "Heartbeat",
		LayerType:  LayerTypeHeartbeat,
	}
}

// Heartbeat is the 16 bit header following the ethernet header:
//
//	| port (9) | reserved (1) | failed (1) | reserved (5) |
type Heartbeat struct {
	layers.BaseLayer
	Port   uint16
	Failed bool
}

func (h *Heartbeat) LayerType() gopacket.LayerType {
	return LayerTypeHeartbeat
}

func (h *Heartbeat) CanDecode() gopacket.LayerClass {
	return LayerTypeHeartbeat
}

func (h *Heartbeat) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

func (h *Heartbeat) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < headerLen {
		df.SetTruncated()
		return fmt.Errorf("heartbeat header too short: %d bytes", len(data))
	}
	v := binary.BigEndian.Uint16(data[:headerLen])
	h.Port = (v >> portShift) & portMask
	h.Failed = v&failedFlag != 0
	h.BaseLayer = layers.BaseLayer{Contents: data[:headerLen], Payload: data[headerLen:]}
	return nil
}

func (h *Heartbeat) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if h.Port > portMask {
		return fmt.Errorf("port %d does not fit in a heartbeat header", h.Port)
	}
	buf, err := b.PrependBytes(headerLen)
	if err != nil {
		return err
	}
	v := h.Port << portShift
	if h.Failed {
		v |= failedFlag
	}
	binary.BigEndian.PutUint16(buf, v)
	return nil
}

func decodeHeartbeat(data []byte, p gopacket.PacketBuilder) error {
	h := &Heartbeat{}
	if err := h.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(h)
	return p.NextDecoder(h.NextLayerType())
}

// Decode parses an ethernet frame carrying a heartbeat
func Decode(frame []byte) (*Heartbeat, error) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{NoCopy: true})
	if l := pkt.Layer(LayerTypeHeartbeat); l != nil {
		return l.(*Heartbeat), nil
	}
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotHeartbeat, errLayer.Error())
	}
	return nil, ErrNotHeartbeat
}

// Encode builds the ethernet frame for h, as the heartbeat generator on the switches does. The
// controller never sends heartbeats, Encode exists to feed Decode and the listener in tests.
func Encode(h *Heartbeat, src, dst net.HardwareAddr) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	eth := &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       dst,
		EthernetType: EthernetTypeHeartbeat,
	}
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Event converts h, received from sw, into a link status notification
func (h *Heartbeat) Event(sw state.NodeId) state.FailureEvent {
	return state.FailureEvent{Switch: sw, Port: h.Port, Failed: h.Failed}
}
