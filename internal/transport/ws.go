package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"readaloud/internal/domain/message"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Role is what a bridged context is to the bus.
type Role string

const (
	RoleTab   Role = "tab"
	RolePopup Role = "popup"
	// RoleCommand is a one-shot sender such as a CLI invocation.
	RoleCommand Role = "command"
)

// ReplyTimeout bounds how long the bridge waits for a remote context to
// answer a message addressed to it.
const ReplyTimeout = 2 * time.Second

// Envelope is the frame exchanged on the websocket. A frame with Message is
// a request (answered when ID is set); a frame with Response answers ID.
type Envelope struct {
	ID       string            `json:"id,omitempty"`
	Message  *message.Message  `json:"message,omitempty"`
	Response *message.Response `json:"response,omitempty"`
}

var errClosed = errors.New("connection closed")

// peer is one end of a bridged connection: it answers incoming requests
// with handler and matches replies to its own outstanding requests.
type peer struct {
	conn    *websocket.Conn
	from    TabID
	handler Handler

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[string]chan message.Response
	done    chan struct{}
}

func newPeer(conn *websocket.Conn, from TabID, h Handler) *peer {
	return &peer{
		conn:    conn,
		from:    from,
		handler: h,
		pending: make(map[string]chan message.Response),
		done:    make(chan struct{}),
	}
}

func (p *peer) write(env Envelope) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(env)
}

// request sends msg and waits for the answer.
func (p *peer) request(ctx context.Context, msg message.Message) (message.Response, error) {
	id := uuid.NewString()
	ch := make(chan message.Response, 1)

	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err := p.write(Envelope{ID: id, Message: &msg}); err != nil {
		return message.Response{}, fmt.Errorf("send %s: %w", msg.Action, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-p.done:
		return message.Response{}, errClosed
	case <-ctx.Done():
		return message.Response{}, ctx.Err()
	}
}

// readLoop runs until the connection fails. Requests are handled on their
// own goroutine so a slow handler never blocks replies.
func (p *peer) readLoop() {
	defer close(p.done)
	for {
		var env Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).Debug("bridge connection ended")
			}
			return
		}

		switch {
		case env.Response != nil:
			p.mu.Lock()
			ch, ok := p.pending[env.ID]
			p.mu.Unlock()
			if ok {
				ch <- *env.Response
			}
		case env.Message != nil:
			go p.serve(env)
		}
	}
}

func (p *peer) serve(env Envelope) {
	var resp message.Response
	if p.handler == nil {
		resp = message.Failure(fmt.Errorf("%s: %w", env.Message.Action, ErrNoReceiver))
	} else {
		resp = p.handler(context.Background(), p.from, *env.Message)
	}
	if env.ID == "" {
		return
	}
	if err := p.write(Envelope{ID: env.ID, Response: &resp}); err != nil {
		logrus.WithError(err).Debug("failed to write bridge reply")
	}
}

// remoteHandler forwards bus deliveries to the peer, bounded by ReplyTimeout.
func (p *peer) remoteHandler() Handler {
	return func(ctx context.Context, _ TabID, msg message.Message) message.Response {
		ctx, cancel := context.WithTimeout(ctx, ReplyTimeout)
		defer cancel()
		resp, err := p.request(ctx, msg)
		if err != nil {
			return message.Failure(err)
		}
		return resp
	}
}

// Server exposes a Bus to contexts living in other processes.
type Server struct {
	bus      *Bus
	upgrader websocket.Upgrader
}

func NewServer(bus *Bus) *Server {
	return &Server{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP accepts ws://host/ws?role=tab|popup|command&tab=<id>.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	role := Role(r.URL.Query().Get("role"))
	tab := TabID(r.URL.Query().Get("tab"))

	switch role {
	case RoleTab:
		if tab == "" {
			http.Error(w, "tab id required", http.StatusBadRequest)
			return
		}
	case RolePopup, RoleCommand:
		tab = ""
	default:
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := logrus.WithFields(logrus.Fields{"role": role, "tab": tab})
	log.Debug("context connected")

	p := newPeer(conn, tab, s.route)
	switch role {
	case RoleTab:
		s.bus.AddTab(tab, p.remoteHandler())
		defer s.bus.RemoveTab(tab)
	case RolePopup:
		remove := s.bus.AddView(p.remoteHandler())
		defer remove()
	}

	p.readLoop()
	log.Debug("context disconnected")
}

// route handles requests arriving from a bridged context.
func (s *Server) route(ctx context.Context, from TabID, msg message.Message) message.Response {
	switch msg.Action {
	case message.ActionActivate:
		if err := s.bus.ActivateTab(from); err != nil {
			return message.Failure(err)
		}
		return message.Success()
	case message.ActionGetSelection:
		text, err := s.bus.QueryActiveSelection(ctx)
		if err != nil {
			return message.Failure(err)
		}
		return message.Response{Status: message.StatusSuccess, Text: text}
	}

	resp, err := s.bus.SendToBackground(ctx, from, msg)
	if err != nil {
		return message.Failure(err)
	}
	return resp
}

// Client is a context connected to a remote bus.
type Client struct {
	peer *peer
}

// Dial connects to a bridge at addr (host:port). h answers messages the bus
// delivers to this context and may be nil for command senders.
func Dial(ctx context.Context, addr string, role Role, tab TabID, h Handler) (*Client, error) {
	q := url.Values{"role": {string(role)}}
	if tab != "" {
		q.Set("tab", string(tab))
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws", RawQuery: q.Encode()}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	p := newPeer(conn, "", h)
	go p.readLoop()
	return &Client{peer: p}, nil
}

// Send delivers msg to the background (or, for getSelection and activate,
// to the bridge itself) and returns the answer.
func (c *Client) Send(ctx context.Context, msg message.Message) (message.Response, error) {
	resp, err := c.peer.request(ctx, msg)
	if errors.Is(err, errClosed) {
		return resp, fmt.Errorf("bridge: %w", ErrNoReceiver)
	}
	return resp, err
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.peer.done
}

func (c *Client) Close() error {
	c.peer.writeMu.Lock()
	err := c.peer.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.peer.writeMu.Unlock()
	if err != nil {
		c.peer.conn.Close()
		return err
	}
	select {
	case <-c.peer.done:
	case <-time.After(time.Second):
	}
	return c.peer.conn.Close()
}
