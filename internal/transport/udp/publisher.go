// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	applog "radar/internal/log"
	"radar/internal/transport"
	"sync"
	"time"
)

// MaxSamplesPerPacket keeps a packet (header + payload) under a 1500 byte MTU.
const MaxSamplesPerPacket = 350

// HeaderSize is the fixed packet header length in bytes.
const HeaderSize = 4 + 8 + 4 + 4 + 2

// UDPPublisher splits trace frames into fixed-format binary packets and paces
// them out through a UDPSender, one packet per interval. It runs in a
// separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   Sender
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker, doneChan and queue.

	queue       [][]byte
	sequenceNum uint32
	sent        uint64
}

// Sender is the datagram sink used by the publisher; *UDPSender satisfies it.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// NewUDPPublisher creates a publisher pacing packets at interval. If the
// interval is invalid (<= 0), it defaults to 1ms.
func NewUDPPublisher(interval time.Duration, sender Sender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}

	if interval <= 0 {
		interval = time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s, Samples/Packet: %d)", interval, MaxSamplesPerPacket)
	return &UDPPublisher{sender: sender, interval: interval}, nil
}

// Start begins pacing queued packets out. Calling Start on a running
// publisher is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				if err := p.sendNext(); err != nil {
					applog.Warnf("UDPPublisher: Failed to send packet: %v", err)
				}
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop terminates the publisher goroutine, if running, and then flushes
// every packet still queued.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	running := p.ticker != nil
	if running {
		p.stopOnce.Do(func() {
			close(p.doneChan)
			p.ticker.Stop()
			p.ticker = nil
		})
	}
	p.mu.Unlock()

	if running {
		p.wg.Wait()
	}

	var errs []error
	for p.Pending() > 0 {
		if err := p.sendNext(); err != nil {
			errs = append(errs, err)
		}
	}
	applog.Infof("UDPPublisher: Stopped after %d packets.", p.Sent())
	return errors.Join(errs...)
}

// Send queues the packets for a transport.TraceFrame. Other frame types are
// not carried over UDP and are ignored.
func (p *UDPPublisher) Send(data any) error {
	f, ok := data.(transport.TraceFrame)
	if !ok {
		applog.Debugf("UDPPublisher: Ignoring %T", data)
		return nil
	}

	packets, err := p.buildPackets(f)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.queue = append(p.queue, packets...)
	p.mu.Unlock()
	return nil
}

// Pending returns the number of queued packets.
func (p *UDPPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Sent returns the number of packets the sender accepted.
func (p *UDPPublisher) Sent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

func (p *UDPPublisher) sendNext() error {
	p.mu.Lock()
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return nil
	}
	pkt := p.queue[0]
	p.queue = p.queue[1:]
	p.mu.Unlock()

	if err := p.sender.Send(pkt); err != nil {
		return err
	}
	p.mu.Lock()
	p.sent++
	p.mu.Unlock()
	applog.Debugf("UDPPublisher: Sent packet (%d bytes)", len(pkt))
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Trace Index       | uint32         | 4            | Output trace number     |
| Sample Offset     | uint32         | 4            | First sample in payload |
| Sample Count      | uint16         | 2            | Number of floats (N)    |
| Magnitudes        | []float32      | N * 4        | Detected magnitudes     |
+-----------------------------------------------------------------------------+

A trace longer than MaxSamplesPerPacket spans several packets with
increasing offsets.
*/

// Packet is a decoded UDP packet.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	Trace      uint32
	Offset     uint32
	Magnitudes []float32
}

func (p *UDPPublisher) buildPackets(f transport.TraceFrame) ([][]byte, error) {
	timestamp := time.Now().UnixNano()
	var packets [][]byte
	var buf bytes.Buffer

	for offset := 0; ; offset += MaxSamplesPerPacket {
		chunk := f.Magnitudes[offset:min(offset+MaxSamplesPerPacket, len(f.Magnitudes))]

		p.mu.Lock()
		p.sequenceNum++
		seq := p.sequenceNum
		p.mu.Unlock()

		buf.Reset()
		err := binary.Write(&buf, binary.BigEndian, seq)
		if err == nil {
			err = binary.Write(&buf, binary.BigEndian, timestamp)
		}
		if err == nil {
			err = binary.Write(&buf, binary.BigEndian, uint32(f.Index))
		}
		if err == nil {
			err = binary.Write(&buf, binary.BigEndian, uint32(offset))
		}
		if err == nil {
			err = binary.Write(&buf, binary.BigEndian, uint16(len(chunk)))
		}
		if err == nil {
			err = binary.Write(&buf, binary.BigEndian, chunk)
		}
		if err != nil {
			return nil, fmt.Errorf("UDPPublisher: packing trace %d: %w", f.Index, err)
		}

		packets = append(packets, bytes.Clone(buf.Bytes()))
		if offset+MaxSamplesPerPacket >= len(f.Magnitudes) {
			break
		}
	}
	return packets, nil
}

// DecodePacket parses a packet produced by UDPPublisher.
func DecodePacket(data []byte) (Packet, error) {
	var pkt Packet
	if len(data) < HeaderSize {
		return pkt, fmt.Errorf("packet too short: %d bytes", len(data))
	}

	r := bytes.NewReader(data)
	var count uint16
	for _, v := range []any{&pkt.Sequence, &pkt.Timestamp, &pkt.Trace, &pkt.Offset, &count} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return pkt, err
		}
	}
	if want := HeaderSize + int(count)*4; len(data) != want {
		return pkt, fmt.Errorf("packet holds %d bytes, header announces %d", len(data), want)
	}

	pkt.Magnitudes = make([]float32, count)
	if err := binary.Read(r, binary.BigEndian, pkt.Magnitudes); err != nil {
		return pkt, err
	}
	return pkt, nil
}

// Close stops the publisher, flushing queued packets, and closes the sender.
func (p *UDPPublisher) Close() error {
	return errors.Join(p.Stop(), p.sender.Close())
}

var _ transport.Transport = (*UDPPublisher)(nil)
