// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// SessionConfig holds the tunable behavior of a Session. Populate it through
// SessionOption values passed to Dial or NewSession.
type SessionConfig struct {
	// Auth lists the security types the client is willing to use, in no
	// particular order; negotiation prefers VNC Authentication over None.
	Auth []ClientAuth

	// Encodings is the encoding preference list sent to the server.
	// Defaults to DefaultEncodings.
	Encodings []int32

	// Exclusive requests exclusive access, asking the server to
	// disconnect other clients.
	Exclusive bool

	// ViewOnly drops all input events locally without sending them.
	ViewOnly bool

	// EventBuffer is the capacity of the event channel.
	EventBuffer int

	// Logger receives structured protocol logs. Defaults to NoOpLogger.
	Logger Logger

	// Metrics receives protocol counters. Defaults to NoOpMetrics.
	Metrics MetricsCollector

	// ExtraDecoders registers additional rectangle decoders beyond the
	// built-in set, keyed by their advertised encoding type.
	ExtraDecoders []Decoder
}

// SessionOption configures a Session before the handshake runs.
type SessionOption func(*SessionConfig)

// WithAuth sets the security types the client offers during negotiation.
func WithAuth(auth ...ClientAuth) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.Auth = auth
	}
}

// WithPassword is shorthand for offering VNC Authentication with the given
// password alongside no authentication.
func WithPassword(password string) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.Auth = []ClientAuth{NewPasswordAuth(password), &AuthNone{}}
	}
}

// WithEncodings overrides the encoding preference list.
func WithEncodings(encodings ...int32) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.Encodings = encodings
	}
}

// WithExclusive requests exclusive access to the server.
func WithExclusive(exclusive bool) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.Exclusive = exclusive
	}
}

// WithViewOnly suppresses all outgoing input events.
func WithViewOnly(viewOnly bool) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.ViewOnly = viewOnly
	}
}

// WithLogger sets the logger for protocol tracing.
func WithLogger(logger Logger) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.Logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics MetricsCollector) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.Metrics = metrics
	}
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.EventBuffer = n
	}
}

// WithDecoder registers extra rectangle decoders. A decoder with a built-in
// type replaces the built-in one.
func WithDecoder(decoders ...Decoder) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.ExtraDecoders = append(cfg.ExtraDecoders, decoders...)
	}
}

// Session is a live RFB client connection. It owns the transport, drives the
// server message loop on a background goroutine and exposes the decoded
// framebuffer, an event channel and an input sender.
//
// A Session moves through its connection states strictly forward; once it
// reaches StateClosed or StateFailed it never leaves.
type Session struct {
	transport Transport
	fb        *Framebuffer
	logger    Logger
	metrics   MetricsCollector

	auths     []ClientAuth
	encodings []int32
	exclusive bool
	viewOnly  bool

	decoders map[int32]Decoder
	zrle     zrleStream

	version     ProtocolVersion
	desktopName string

	events     chan Event
	closeOnce  sync.Once
	input      *InputSender
	writeMu    sync.Mutex
	fullUpdate atomic.Bool

	stateMu sync.Mutex
	state   ConnectionState
	failure error

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects to an RFB server over TCP and performs the full handshake.
// The returned session is in StateActive with its message loop running.
func Dial(ctx context.Context, addr string, opts ...SessionOption) (*Session, error) {
	transport, err := DialTCP(ctx, addr)
	if err != nil {
		return nil, err
	}

	sess, err := NewSession(ctx, transport, opts...)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	return sess, nil
}

// NewSession performs the RFB handshake over an established transport and
// starts the message loop. The transport is owned by the session afterwards
// and closed when the session ends. The context bounds the whole session
// lifetime, not just the handshake; cancelling it closes the session.
func NewSession(ctx context.Context, transport Transport, opts ...SessionOption) (*Session, error) {
	cfg := &SessionConfig{
		Auth:        []ClientAuth{&AuthNone{}},
		Encodings:   DefaultEncodings,
		EventBuffer: 32,
		Logger:      &NoOpLogger{},
		Metrics:     &NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		transport: transport,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		auths:     cfg.Auth,
		encodings: cfg.Encodings,
		exclusive: cfg.Exclusive,
		viewOnly:  cfg.ViewOnly,
		decoders:  defaultDecoders(),
		events:    make(chan Event, cfg.EventBuffer),
		state:     StateConnecting,
		ctx:       sessCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, d := range cfg.ExtraDecoders {
		s.decoders[d.Type()] = d
	}
	s.input = newInputSender(s)

	if err := s.handshake(sessCtx); err != nil {
		s.fail(err)
		return nil, err
	}

	go s.run()
	return s, nil
}

// handshake walks the connection through version negotiation, security,
// authentication and initialization.
func (s *Session) handshake(ctx context.Context) error {
	if err := s.transition(StateNegotiatingVersion); err != nil {
		return err
	}
	version, err := s.negotiateVersion(ctx)
	if err != nil {
		return err
	}
	s.version = version

	if err := s.transition(StateNegotiatingSecurity); err != nil {
		return err
	}
	auth, err := s.negotiateSecurity(ctx, version)
	if err != nil {
		return err
	}

	if err := s.transition(StateAuthenticating); err != nil {
		return err
	}
	if err := s.authenticate(ctx, version, auth); err != nil {
		return err
	}

	if err := s.transition(StateInitializing); err != nil {
		return err
	}
	init, err := s.initialize(ctx)
	if err != nil {
		return err
	}
	s.desktopName = init.Name
	s.fb = NewFramebuffer(init.Width, init.Height, init.PixelFormat)

	if err := s.sendSetEncodings(ctx, s.encodings); err != nil {
		return err
	}

	return s.transition(StateActive)
}

// run is the server message loop. It requests the initial full update, then
// alternates between applying updates and requesting the next incremental
// one so the server always has exactly one request outstanding.
func (s *Session) run() {
	defer close(s.done)

	err := s.messageLoop()

	_ = s.transport.Close()
	s.zrle.reset()

	if err != nil && s.ctx.Err() == nil {
		s.fail(err)
		return
	}

	// Cancellation or clean shutdown.
	s.stateMu.Lock()
	if !s.state.Terminal() {
		s.state = StateClosed
	}
	s.stateMu.Unlock()
	s.logger.Info("Session closed")
	s.finishEvents(nil)
}

func (s *Session) messageLoop() error {
	s.fullUpdate.Store(true)
	if err := s.requestUpdate(); err != nil {
		return err
	}

	reader := &transportReader{ctx: s.ctx, t: s.transport}
	var msgType [1]byte
	for {
		if err := s.transport.ReadFull(s.ctx, msgType[:]); err != nil {
			if s.ctx.Err() != nil {
				return s.ctx.Err()
			}
			return transportError("messageLoop", "failed to read message type", err)
		}

		if err := s.processServerMessage(msgType[0], reader); err != nil {
			return err
		}

		if msgType[0] == msgFramebufferUpdate {
			if err := s.requestUpdate(); err != nil {
				return err
			}
		}
	}
}

// requestUpdate asks for the next framebuffer update covering the whole
// screen. The first request after a format or geometry change is
// non-incremental so the server resends everything.
func (s *Session) requestUpdate() error {
	width, height := s.fb.Size()
	incremental := !s.fullUpdate.Swap(false)
	return s.sendFramebufferUpdateRequest(s.ctx, incremental, 0, 0, width, height)
}

// forceFullUpdate marks the next update request as non-incremental.
func (s *Session) forceFullUpdate() {
	s.fullUpdate.Store(true)
}

// transition advances the connection state, enforcing the forward-only
// state machine.
func (s *Session) transition(to ConnectionState) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if !validTransition(s.state, to) {
		return protocolError("transition",
			fmt.Sprintf("invalid state transition %s -> %s", s.state, to), nil)
	}

	s.logger.Debug("Connection state changed",
		Field{Key: "from", Value: s.state.String()},
		Field{Key: "to", Value: to.String()})
	s.state = to
	return nil
}

// fail moves the session to StateFailed with the given reason. Only the
// first failure wins; later calls are no-ops.
func (s *Session) fail(err error) {
	s.stateMu.Lock()
	if s.state.Terminal() {
		s.stateMu.Unlock()
		return
	}
	s.state = StateFailed
	s.failure = err
	s.stateMu.Unlock()

	s.logger.Error("Session failed", Field{Key: "error", Value: err})
	s.cancel()
	_ = s.transport.Close()
	s.finishEvents(err)
}

// finishEvents publishes the terminal DisconnectEvent and closes the event
// channel exactly once.
func (s *Session) finishEvents(err error) {
	s.closeOnce.Do(func() {
		select {
		case s.events <- &DisconnectEvent{Err: err}:
		default:
		}
		close(s.events)
	})
}

// publish delivers an event to the channel, blocking until the consumer
// accepts it or the session ends.
func (s *Session) publish(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// writeMessage writes one complete client message. The mutex keeps messages
// from the session loop and the input sender from interleaving.
func (s *Session) writeMessage(ctx context.Context, buf []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.transport.Write(ctx, buf)
}

// Close shuts the session down and waits for the message loop to exit. A
// session closed by cancellation ends in StateClosed, not StateFailed.
func (s *Session) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Err returns the error that moved the session to StateFailed, or nil.
func (s *Session) Err() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.failure
}

// Events returns the channel carrying server events. The channel closes
// after a terminal DisconnectEvent when the session ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Framebuffer returns the session framebuffer.
func (s *Session) Framebuffer() *Framebuffer {
	return s.fb
}

// Input returns the input sender for this session.
func (s *Session) Input() *InputSender {
	return s.input
}

// Version returns the negotiated protocol version.
func (s *Session) Version() ProtocolVersion {
	return s.version
}

// DesktopName returns the name the server announced at initialization.
func (s *Session) DesktopName() string {
	return s.desktopName
}

// SetPixelFormat switches the session to a new pixel format. The local
// framebuffer resets and a full update is requested on the next cycle. The
// shared ZRLE stream survives the change; only pixel width interpretation
// moves to the new format.
func (s *Session) SetPixelFormat(ctx context.Context, format PixelFormat) error {
	return s.sendSetPixelFormat(ctx, format)
}

// RequestFullUpdate forces the next update request to be non-incremental.
func (s *Session) RequestFullUpdate() {
	s.forceFullUpdate()
}

// transportReader adapts a Transport to io.Reader for the decoders. Every
// Read fills the buffer completely or fails, which matches how the decoders
// consume the stream.
type transportReader struct {
	ctx context.Context
	t   Transport
}

func (r *transportReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := r.t.ReadFull(r.ctx, p); err != nil {
		if r.ctx.Err() != nil {
			return 0, r.ctx.Err()
		}
		return 0, err
	}
	return len(p), nil
}

var _ io.Reader = (*transportReader)(nil)
