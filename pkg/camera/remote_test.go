package camera

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type wsMessage struct {
	mt   int
	data []byte
}

type fakeConn struct {
	in     chan wsMessage
	out    chan wsMessage
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan wsMessage, 16),
		out:    make(chan wsMessage, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.in:
		return m.mt, m.data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case c.out <- wsMessage{mt: mt, data: data}:
		return nil
	case <-c.closed:
		return io.ErrClosedPipe
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sendJSON(t *testing.T, msg envelope) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	c.in <- wsMessage{mt: websocket.TextMessage, data: data}
}

func (c *fakeConn) sendFrame(t *testing.T, width, height int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	c.in <- wsMessage{mt: websocket.BinaryMessage, data: buf.Bytes()}
}

func (c *fakeConn) expect(t *testing.T) envelope {
	t.Helper()
	select {
	case m := <-c.out:
		require.Equal(t, websocket.TextMessage, m.mt)
		var msg envelope
		require.NoError(t, json.Unmarshal(m.data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message sent to the capture client")
		return envelope{}
	}
}

func videoDevices() []Device {
	return []Device{
		{ID: "cam0", Kind: KindVideoInput, Label: "FaceTime HD"},
		{ID: "mic0", Kind: KindAudioInput, Label: "Mic"},
	}
}

// connect serves conn on hub and waits for the handshake to complete.
func connect(t *testing.T, hub *RemoteHub, conn *fakeConn, hello envelope) chan error {
	t.Helper()

	served := make(chan error, 1)
	go func() { served <- hub.Serve(conn) }()

	hello.Type = msgHello
	conn.sendJSON(t, hello)
	require.Eventually(t, hub.Connected, 2*time.Second, 5*time.Millisecond)
	return served
}

type mediaResult struct {
	stream Stream
	err    error
}

func requestMedia(hub *RemoteHub, constraints Constraints) chan mediaResult {
	res := make(chan mediaResult, 1)
	go func() {
		s, err := hub.GetUserMedia(context.Background(), constraints)
		res <- mediaResult{stream: s, err: err}
	}()
	return res
}

func awaitMedia(t *testing.T, res chan mediaResult) mediaResult {
	t.Helper()
	select {
	case r := <-res:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("GetUserMedia did not return")
		return mediaResult{}
	}
}

func newTestHub() *RemoteHub {
	logger, _ := test.NewNullLogger()
	return NewRemoteHub(logger)
}

func TestRemoteHub_NoClient(t *testing.T) {
	hub := newTestHub()

	assert.True(t, hub.Supported())
	assert.False(t, hub.Connected())

	devices, err := hub.EnumerateDevices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)

	_, err = hub.GetUserMedia(context.Background(), Constraints{})
	var mediaErr *MediaError
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, ErrNameNotFound, mediaErr.Name)
}

func TestRemoteHub_RejectsMissingHello(t *testing.T) {
	hub := newTestHub()
	conn := newFakeConn()
	conn.sendJSON(t, envelope{Type: msgDevices})

	err := hub.Serve(conn)

	assert.ErrorIs(t, err, ErrHandshake)
	assert.False(t, hub.Connected())
}

func TestRemoteHub_StreamLifecycle(t *testing.T) {
	hub := newTestHub()
	connected := make(chan struct{}, 1)
	hub.OnConnect(func() { connected <- struct{}{} })

	conn := newFakeConn()
	served := connect(t, hub, conn, envelope{Devices: videoDevices()})

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("connect hook not called")
	}

	devices, err := hub.EnumerateDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, CountVideoInputs(devices))

	res := requestMedia(hub, Constraints{Width: 640, Height: 480, FacingMode: FacingUser})

	req := conn.expect(t)
	assert.Equal(t, msgGetUserMedia, req.Type)
	require.NotNil(t, req.Constraints)
	assert.Equal(t, 640, req.Constraints.Width)
	assert.Equal(t, FacingUser, req.Constraints.FacingMode)

	conn.sendJSON(t, envelope{Type: msgGranted, RequestID: req.RequestID, DeviceID: "cam0", Width: 640, Height: 480})

	r := awaitMedia(t, res)
	require.NoError(t, r.err)
	stream := r.stream
	assert.Equal(t, req.RequestID, stream.ID())
	assert.Equal(t, Settings{DeviceID: "cam0", Width: 640, Height: 480, FacingMode: FacingUser}, stream.Settings())

	_, ok := stream.Latest()
	assert.False(t, ok)

	conn.sendFrame(t, 320, 240)
	select {
	case <-stream.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("first frame never arrived")
	}

	frame, ok := stream.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(1), frame.Seq)
	assert.Equal(t, 320, frame.Image.Bounds().Dx())
	assert.Equal(t, 240, stream.Settings().Height)

	stream.Stop()
	stop := conn.expect(t)
	assert.Equal(t, msgStop, stop.Type)
	assert.Equal(t, req.RequestID, stop.RequestID)

	select {
	case <-stream.Done():
	default:
		t.Fatal("stopped stream is not done")
	}

	conn.Close()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.False(t, hub.Connected())
}

func TestRemoteHub_PermissionDenied(t *testing.T) {
	hub := newTestHub()
	conn := newFakeConn()
	connect(t, hub, conn, envelope{Devices: videoDevices()})
	defer conn.Close()

	res := requestMedia(hub, Constraints{})
	req := conn.expect(t)
	conn.sendJSON(t, envelope{Type: msgError, RequestID: req.RequestID, Name: ErrNameNotAllowed, Message: "Permission denied"})

	r := awaitMedia(t, res)
	var mediaErr *MediaError
	require.ErrorAs(t, r.err, &mediaErr)
	assert.Equal(t, ErrNameNotAllowed, mediaErr.Name)
	assert.Equal(t, "Permission denied", mediaErr.Message)
}

func TestRemoteHub_UnsupportedClient(t *testing.T) {
	hub := newTestHub()
	conn := newFakeConn()
	unsupported := false
	connect(t, hub, conn, envelope{Supported: &unsupported})
	defer conn.Close()

	assert.False(t, hub.Supported())
	_, err := hub.GetUserMedia(context.Background(), Constraints{})
	assert.True(t, errors.Is(err, ErrNotSupported))
}

func TestRemoteHub_DisconnectEndsStream(t *testing.T) {
	hub := newTestHub()
	conn := newFakeConn()
	connect(t, hub, conn, envelope{Devices: videoDevices()})

	res := requestMedia(hub, Constraints{})
	req := conn.expect(t)
	conn.sendJSON(t, envelope{Type: msgGranted, RequestID: req.RequestID})
	r := awaitMedia(t, res)
	require.NoError(t, r.err)

	conn.Close()

	select {
	case <-r.stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end with its client")
	}
}

func TestRemoteHub_GrantTimeout(t *testing.T) {
	hub := newTestHub()
	hub.grantTimeout = 20 * time.Millisecond
	conn := newFakeConn()
	connect(t, hub, conn, envelope{Devices: videoDevices()})
	defer conn.Close()

	_, err := hub.GetUserMedia(context.Background(), Constraints{})

	var mediaErr *MediaError
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, ErrNameAbort, mediaErr.Name)
}

func TestRemoteHub_LateGrantIsReleased(t *testing.T) {
	hub := newTestHub()
	hub.grantTimeout = 20 * time.Millisecond
	conn := newFakeConn()
	connect(t, hub, conn, envelope{Devices: videoDevices()})
	defer conn.Close()

	_, err := hub.GetUserMedia(context.Background(), Constraints{})
	require.Error(t, err)
	req := conn.expect(t)

	conn.sendJSON(t, envelope{Type: msgGranted, RequestID: req.RequestID})

	stop := conn.expect(t)
	assert.Equal(t, msgStop, stop.Type)
	assert.Equal(t, req.RequestID, stop.RequestID)
}

func TestRemoteHub_NewClientReplacesOld(t *testing.T) {
	hub := newTestHub()
	first := newFakeConn()
	firstServed := connect(t, hub, first, envelope{Devices: videoDevices()})

	second := newFakeConn()
	connect(t, hub, second, envelope{})
	defer second.Close()

	select {
	case <-firstServed:
	case <-time.After(2 * time.Second):
		t.Fatal("replaced client was not disconnected")
	}

	assert.True(t, hub.Connected())
	devices, err := hub.EnumerateDevices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestFrameBuffer(t *testing.T) {
	b := newFrameBuffer("s1", Settings{Width: 640, Height: 480})

	_, ok := b.Latest()
	assert.False(t, ok)

	img := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	img.Set(0, 0, color.White)
	require.True(t, b.push(img))
	require.True(t, b.push(img))

	frame, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), frame.Seq)
	assert.Equal(t, 1280, b.Settings().Width)
	assert.Equal(t, 720, b.Settings().Height)

	select {
	case <-b.Ready():
	default:
		t.Fatal("ready not closed after first frame")
	}

	assert.True(t, b.finish())
	assert.False(t, b.finish())
	assert.False(t, b.push(img))
	assert.False(t, b.push(nil))
}
