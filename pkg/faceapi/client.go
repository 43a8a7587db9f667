package faceapi

import (
	"bytes"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"FaceCam/internal/entity"
	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type loadModel struct {
	Name        string `json:"name"`
	ManifestURL string `json:"manifest_url"`
	Weights     int    `json:"weights"`
}

type controlMessage struct {
	Type           string      `json:"type"`
	Models         []loadModel `json:"models,omitempty"`
	InputSize      int         `json:"input_size,omitempty"`
	ScoreThreshold float64     `json:"score_threshold,omitempty"`
	Message        string      `json:"message,omitempty"`
}

type detectResponse struct {
	Width  int                    `json:"width"`
	Height int                    `json:"height"`
	Faces  []entity.FaceDetection `json:"faces"`
	Error  string                 `json:"error,omitempty"`
}

// Client talks to a face analysis service over a websocket. One request is
// in flight at a time.
type Client struct {
	log          *logrus.Logger
	serviceURL   string
	modelBaseURL string

	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	fetchTimeout time.Duration

	callMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	manifests map[string]Manifest
	sentOpts  DetectOptions

	loaded atomic.Bool
}

func NewClient(log *logrus.Logger, serviceURL, modelBaseURL string) *Client {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	if modelBaseURL == "" {
		modelBaseURL = DefaultModelBaseURL
	}

	return &Client{
		log:          log,
		serviceURL:   serviceURL,
		modelBaseURL: modelBaseURL,
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
		fetchTimeout: 15 * time.Second,
	}
}

func (c *Client) Loaded() bool {
	return c.loaded.Load()
}

// Load fetches the model manifests and asks the service to load them.
func (c *Client) Load(ctx context.Context) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.loaded.Store(false)

	manifests, err := fetchManifests(ctx, c.modelBaseURL, Models, c.fetchTimeout)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.manifests = manifests
	c.mu.Unlock()

	if err := c.reconnect(ctx); err != nil {
		return err
	}

	c.loaded.Store(true)
	c.log.WithFields(logrus.Fields{
		"service": c.serviceURL,
		"models":  len(manifests),
	}).Info("faceapi: models loaded")
	return nil
}

func (c *Client) Detect(ctx context.Context, img image.Image, opts DetectOptions) (*entity.DetectionResult, error) {
	if !c.loaded.Load() {
		return nil, ErrNotLoaded
	}
	if img == nil {
		return nil, fmt.Errorf("faceapi: nil frame")
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	conn, err := c.getConnection()
	if err != nil {
		if err := c.reconnect(ctx); err != nil {
			return nil, fmt.Errorf("cannot connect to face analysis service: %w", err)
		}
		conn, err = c.getConnection()
		if err != nil {
			return nil, err
		}
	}

	// A cancelled request leaves its reply unread, so the connection is
	// dropped rather than reused.
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			c.drop(conn)
		case <-finished:
		}
	}()

	if opts.InputSize <= 0 {
		opts.InputSize = DefaultInputSize
	}
	if err := c.syncOptions(ctx, conn, opts); err != nil {
		c.drop(conn)
		return nil, c.interrupted(ctx, err)
	}

	frame := fitInput(img, opts.InputSize)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("faceapi: encoding frame: %w", err)
	}

	if err := conn.SetWriteDeadline(c.deadline(ctx, c.writeTimeout)); err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("faceapi: setting write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		c.drop(conn)
		return nil, c.interrupted(ctx, fmt.Errorf("error sending frame: %w", err))
	}

	if err := conn.SetReadDeadline(c.deadline(ctx, c.readTimeout)); err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("faceapi: setting read deadline: %w", err)
	}
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.drop(conn)
		return nil, c.interrupted(ctx, fmt.Errorf("error reading detection response: %w", err))
	}

	var resp detectResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("error unmarshaling detection response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServiceRejected, resp.Error)
	}

	bounds := frame.Bounds()
	result := &entity.DetectionResult{
		Width:  resp.Width,
		Height: resp.Height,
		Faces:  resp.Faces,
	}
	if result.Width <= 0 || result.Height <= 0 {
		result.Width, result.Height = bounds.Dx(), bounds.Dy()
	}
	if result.Faces == nil {
		result.Faces = []entity.FaceDetection{}
	}

	return result, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.loaded.Store(false)
}

func (c *Client) getConnection() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("not connected to face analysis service")
	}
	return c.conn, nil
}

// reconnect dials the service and repeats the load handshake. The caller
// holds callMu.
func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	manifests := c.manifests
	c.mu.Unlock()

	if len(manifests) == 0 {
		return ErrNotLoaded
	}

	c.log.WithFields(logrus.Fields{
		"url": c.serviceURL,
	}).Debug("faceapi: connecting to analysis service")

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, c.serviceURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.serviceURL, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout)); err != nil {
			c.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Debug("faceapi: error sending pong")
		}
		return nil
	})

	opts := DefaultDetectOptions()
	load := controlMessage{
		Type:           "load",
		InputSize:      opts.InputSize,
		ScoreThreshold: opts.ScoreThreshold,
	}
	for _, name := range Models {
		m := manifests[name]
		load.Models = append(load.Models, loadModel{Name: name, ManifestURL: m.URL, Weights: m.WeightCount()})
	}

	if err := c.exchange(ctx, conn, load, "ready"); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.sentOpts = opts
	c.mu.Unlock()

	go c.keepAlive(conn)
	return nil
}

// exchange writes a control message and waits for a reply of the wanted type.
func (c *Client) exchange(ctx context.Context, conn *websocket.Conn, msg controlMessage, want string) error {
	if err := conn.SetWriteDeadline(c.deadline(ctx, c.writeTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("error sending %s message: %w", msg.Type, err)
	}

	if err := conn.SetReadDeadline(c.deadline(ctx, c.readTimeout)); err != nil {
		return err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("error reading %s reply: %w", msg.Type, err)
	}

	var reply controlMessage
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("error unmarshaling %s reply: %w", msg.Type, err)
	}
	if reply.Type != want {
		return fmt.Errorf("%w: %s", ErrServiceRejected, reply.Message)
	}
	return nil
}

func (c *Client) syncOptions(ctx context.Context, conn *websocket.Conn, opts DetectOptions) error {
	c.mu.Lock()
	same := c.sentOpts == opts
	c.mu.Unlock()
	if same {
		return nil
	}

	msg := controlMessage{
		Type:           "options",
		InputSize:      opts.InputSize,
		ScoreThreshold: opts.ScoreThreshold,
	}
	if err := c.exchange(ctx, conn, msg, "ok"); err != nil {
		return err
	}

	c.mu.Lock()
	c.sentOpts = opts
	c.mu.Unlock()
	return nil
}

func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

func (c *Client) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		current := c.conn
		c.mu.Unlock()

		if current != conn {
			return
		}

		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout)); err != nil {
			c.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Warn("faceapi: ping failed, marking connection as dead")
			c.drop(conn)
			return
		}
	}
}

// interrupted reports the context error in place of err once ctx is done.
func (c *Client) interrupted(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("faceapi: detection cancelled: %w", ctxErr)
	}
	return err
}

func (c *Client) deadline(ctx context.Context, fallback time.Duration) time.Time {
	d := time.Now().Add(fallback)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}

// fitInput shrinks img so its longer side is at most size.
func fitInput(img image.Image, size int) image.Image {
	b := img.Bounds()
	if b.Dx() <= size && b.Dy() <= size {
		return img
	}
	return imaging.Fit(img, size, size, imaging.Linear)
}
