package camera

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	msgHello        = "hello"
	msgDevices      = "devices"
	msgGetUserMedia = "get_user_media"
	msgGranted      = "granted"
	msgError        = "error"
	msgStop         = "stop"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	ErrHandshake = errors.New("camera: capture client must open with a hello message")
)

// Conn is the subset of a websocket connection the hub needs. Both the
// gofiber and gorilla connection types satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type envelope struct {
	Type        string       `json:"type"`
	RequestID   string       `json:"request_id,omitempty"`
	Supported   *bool        `json:"supported,omitempty"`
	Devices     []Device     `json:"devices,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty"`
	DeviceID    string       `json:"device_id,omitempty"`
	Width       int          `json:"width,omitempty"`
	Height      int          `json:"height,omitempty"`
	FacingMode  string       `json:"facing_mode,omitempty"`
	Name        string       `json:"name,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// RemoteHub is a Capturer backed by a capture client (usually a browser tab)
// connected over a websocket. Only one client is served at a time; a new
// client replaces the previous one.
type RemoteHub struct {
	log          *logrus.Logger
	grantTimeout time.Duration

	mu        sync.Mutex
	peer      *remotePeer
	onConnect func()
}

func NewRemoteHub(log *logrus.Logger) *RemoteHub {
	return &RemoteHub{
		log:          log,
		grantTimeout: 60 * time.Second,
	}
}

// OnConnect registers fn to run in its own goroutine whenever a capture
// client completes its handshake.
func (h *RemoteHub) OnConnect(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = fn
}

func (h *RemoteHub) Connected() bool {
	return h.current() != nil
}

func (h *RemoteHub) Supported() bool {
	peer := h.current()
	return peer == nil || peer.supported
}

func (h *RemoteHub) EnumerateDevices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	peer := h.current()
	if peer == nil {
		return []Device{}, nil
	}
	return peer.deviceList(), nil
}

func (h *RemoteHub) GetUserMedia(ctx context.Context, constraints Constraints) (Stream, error) {
	peer := h.current()
	if peer == nil {
		return nil, &MediaError{Name: ErrNameNotFound, Message: "no capture client connected"}
	}
	if !peer.supported {
		return nil, ErrNotSupported
	}

	requestID := uuid.NewString()
	reply := peer.register(requestID)
	defer peer.unregister(requestID)

	if err := peer.send(envelope{Type: msgGetUserMedia, RequestID: requestID, Constraints: &constraints}); err != nil {
		return nil, &MediaError{Name: ErrNameAbort, Message: err.Error()}
	}

	timer := time.NewTimer(h.grantTimeout)
	defer timer.Stop()

	select {
	case msg := <-reply:
		if msg.Type == msgError {
			return nil, &MediaError{Name: msg.Name, Message: msg.Message}
		}

		facing := msg.FacingMode
		if facing == "" {
			facing = constraints.FacingMode
		}
		stream := &remoteStream{
			frameBuffer: newFrameBuffer(requestID, Settings{
				DeviceID:   msg.DeviceID,
				Width:      msg.Width,
				Height:     msg.Height,
				FacingMode: facing,
			}),
			peer: peer,
		}
		peer.setActive(stream)

		h.log.WithFields(logrus.Fields{
			"stream_id": requestID,
			"width":     msg.Width,
			"height":    msg.Height,
		}).Debug("camera: remote stream granted")
		return stream, nil
	case <-peer.gone:
		return nil, &MediaError{Name: ErrNameAbort, Message: "capture client disconnected"}
	case <-timer.C:
		peer.abandon(requestID, reply)
		return nil, &MediaError{Name: ErrNameAbort, Message: "capture client did not answer the media request"}
	case <-ctx.Done():
		peer.abandon(requestID, reply)
		return nil, ctx.Err()
	}
}

// Serve runs the protocol for one capture client until the connection ends.
func (h *RemoteHub) Serve(conn Conn) error {
	defer conn.Close()

	mt, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("camera: reading hello: %w", err)
	}

	var hello envelope
	if mt != websocket.TextMessage || json.Unmarshal(data, &hello) != nil || hello.Type != msgHello {
		return ErrHandshake
	}

	peer := newRemotePeer(conn, hello)
	h.attach(peer)
	defer h.detach(peer)

	h.log.WithFields(logrus.Fields{
		"supported": peer.supported,
		"devices":   len(peer.devices),
	}).Info("camera: capture client connected")

	h.mu.Lock()
	hook := h.onConnect
	h.mu.Unlock()
	if hook != nil {
		go hook()
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			h.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Info("camera: capture client disconnected")
			return nil
		}

		switch mt {
		case websocket.BinaryMessage:
			peer.deliverFrame(data, h.log)
		case websocket.TextMessage:
			var msg envelope
			if err := json.Unmarshal(data, &msg); err != nil {
				h.log.WithFields(logrus.Fields{
					"error": err.Error(),
				}).Warn("camera: malformed message from capture client")
				continue
			}
			peer.handle(msg)
		}
	}
}

func (h *RemoteHub) current() *remotePeer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peer
}

func (h *RemoteHub) attach(peer *remotePeer) {
	h.mu.Lock()
	prev := h.peer
	h.peer = peer
	h.mu.Unlock()

	if prev != nil {
		prev.shutdown()
		_ = prev.conn.Close()
	}
}

func (h *RemoteHub) detach(peer *remotePeer) {
	h.mu.Lock()
	if h.peer == peer {
		h.peer = nil
	}
	h.mu.Unlock()

	peer.shutdown()
}

type remotePeer struct {
	conn    Conn
	writeMu sync.Mutex

	supported bool

	mu      sync.Mutex
	devices []Device
	pending map[string]chan envelope
	active  *remoteStream

	gone     chan struct{}
	goneOnce sync.Once
}

func newRemotePeer(conn Conn, hello envelope) *remotePeer {
	supported := true
	if hello.Supported != nil {
		supported = *hello.Supported
	}

	return &remotePeer{
		conn:      conn,
		supported: supported,
		devices:   hello.Devices,
		pending:   make(map[string]chan envelope),
		gone:      make(chan struct{}),
	}
}

func (p *remotePeer) send(msg envelope) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *remotePeer) deviceList() []Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Device, len(p.devices))
	copy(out, p.devices)
	return out
}

func (p *remotePeer) register(requestID string) chan envelope {
	ch := make(chan envelope, 1)
	p.mu.Lock()
	p.pending[requestID] = ch
	p.mu.Unlock()
	return ch
}

func (p *remotePeer) unregister(requestID string) {
	p.mu.Lock()
	delete(p.pending, requestID)
	p.mu.Unlock()
}

func (p *remotePeer) handle(msg envelope) {
	switch msg.Type {
	case msgDevices, msgHello:
		p.mu.Lock()
		p.devices = msg.Devices
		p.mu.Unlock()
	case msgGranted, msgError:
		p.mu.Lock()
		ch, ok := p.pending[msg.RequestID]
		p.mu.Unlock()

		if ok {
			select {
			case ch <- msg:
			default:
			}
			return
		}
		// Nobody is waiting any more, so release a late grant.
		if msg.Type == msgGranted {
			_ = p.send(envelope{Type: msgStop, RequestID: msg.RequestID})
		}
	}
}

// abandon releases a grant that raced with the caller giving up.
func (p *remotePeer) abandon(requestID string, reply chan envelope) {
	select {
	case msg := <-reply:
		if msg.Type == msgGranted {
			_ = p.send(envelope{Type: msgStop, RequestID: requestID})
		}
	default:
	}
}

func (p *remotePeer) setActive(stream *remoteStream) {
	p.mu.Lock()
	prev := p.active
	p.active = stream
	p.mu.Unlock()

	if prev != nil && prev != stream {
		prev.Stop()
	}
}

func (p *remotePeer) clearActive(stream *remoteStream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == stream {
		p.active = nil
	}
}

func (p *remotePeer) deliverFrame(data []byte, log *logrus.Logger) {
	p.mu.Lock()
	stream := p.active
	p.mu.Unlock()

	if stream == nil {
		return
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		log.WithFields(logrus.Fields{
			"stream_id": stream.ID(),
			"error":     err.Error(),
		}).Debug("camera: dropping undecodable frame")
		return
	}
	stream.push(img)
}

func (p *remotePeer) isGone() bool {
	select {
	case <-p.gone:
		return true
	default:
		return false
	}
}

func (p *remotePeer) shutdown() {
	p.goneOnce.Do(func() {
		close(p.gone)

		p.mu.Lock()
		active := p.active
		p.active = nil
		p.mu.Unlock()

		if active != nil {
			active.finish()
		}
	})
}

type remoteStream struct {
	*frameBuffer
	peer *remotePeer
}

func (s *remoteStream) Stop() {
	if !s.finish() {
		return
	}

	s.peer.clearActive(s)
	if !s.peer.isGone() {
		_ = s.peer.send(envelope{Type: msgStop, RequestID: s.id})
	}
}
