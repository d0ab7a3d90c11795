package gossipsim

// ws-net.go carries the send primitives over real websocket connections.
// Each agent has an endpoint; a connection dialed from one agent to another
// is usable in both directions.  Frames are binary messages holding the
// 8-byte big-endian sender id followed by the payload.  Inbound frames are
// queued by the reader goroutines and handed to agents only from Run, so
// agent callbacks stay on one goroutine.

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

const (
	wsBackend     = "websocket"
	agentIDHeader = "X-Gossipsim-Agent"
	frameHeader   = 8
	maxFrameSize  = 1 << 20
	writeTimeout  = 10 * time.Second
)

// wsConn is one end of a connection between two agents
type wsConn struct {
	conn   *websocket.Conn
	remote AgentID
	mu     sync.Mutex // serializes writers
}

func (c *wsConn) write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// inboundFrame is a decoded frame waiting for Run
type inboundFrame struct {
	recipient Agent
	sender    AgentID
	payload   []byte
}

// WSNetwork is the Network backed by websocket connections.  The peer
// relation is whatever connections exist; operations that only make sense
// for a simulated graph fail with ErrUnsupported.
type WSNetwork struct {
	agents   []Agent
	index    map[AgentID]Agent
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
	rng      RandSource
	logger   zerolog.Logger

	mu        sync.Mutex
	endpoints map[AgentID]string
	conns     map[AgentID]map[AgentID]*wsConn // local -> remote -> connection
	inbound   []inboundFrame
	servers   []*http.Server
	closed    bool
	notify    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

var _ Network = (*WSNetwork)(nil)

// CreateWSNetwork is a constructor.  Of the options, WithRand and WithLogger apply.
func CreateWSNetwork(agents []Agent, opts ...Option) *WSNetwork {
	o := resolveOptions("gossipsim-ws", opts)

	wn := new(WSNetwork)
	if agents == nil {
		agents = make([]Agent, 0)
	}
	wn.agents = agents
	wn.index = make(map[AgentID]Agent)
	for _, a := range agents {
		if _, present := wn.index[a.ID()]; present {
			panic(fmt.Errorf("duplicated agent id %d", a.ID()))
		}
		wn.index[a.ID()] = a
	}
	wn.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	wn.dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	wn.rng = o.rng
	wn.logger = o.logger.With().Str("backend", wsBackend).Logger()
	wn.endpoints = make(map[AgentID]string)
	wn.conns = make(map[AgentID]map[AgentID]*wsConn)
	wn.inbound = make([]inboundFrame, 0)
	wn.notify = make(chan struct{}, 1)
	wn.ctx, wn.cancel = context.WithCancel(context.Background())
	wn.group, wn.ctx = errgroup.WithContext(wn.ctx)
	return wn
}

// encodeFrame prefixes payload with the sender id
func encodeFrame(sender AgentID, payload []byte) []byte {
	frame := make([]byte, frameHeader+len(payload))
	binary.BigEndian.PutUint64(frame, uint64(sender))
	copy(frame[frameHeader:], payload)
	return frame
}

// decodeFrame splits a frame into sender id and payload
func decodeFrame(frame []byte) (AgentID, []byte, error) {
	if len(frame) < frameHeader {
		return 0, nil, fmt.Errorf("short frame of %d bytes", len(frame))
	}
	sender := AgentID(int64(binary.BigEndian.Uint64(frame)))
	return sender, frame[frameHeader:], nil
}

// Handler returns the http handler that accepts connections for agent
func (wn *WSNetwork) Handler(agent Agent) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remote, err := strconv.Atoi(r.Header.Get(agentIDHeader))
		if err != nil {
			http.Error(w, "missing or malformed "+agentIDHeader, http.StatusBadRequest)
			return
		}
		conn, err := wn.upgrader.Upgrade(w, r, nil)
		if err != nil {
			wn.logger.Warn().Err(err).Int("agent", int(agent.ID())).Msg("websocket upgrade failed")
			return
		}
		if err := wn.attach(agent, AgentID(remote), conn); err != nil {
			conn.Close()
		}
	})
}

// AddEndpoint records the websocket url agent id accepts connections on
func (wn *WSNetwork) AddEndpoint(id AgentID, url string) {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	wn.endpoints[id] = url
}

// Listen serves the endpoint of agent on addr and returns its url
func (wn *WSNetwork) Listen(agent Agent, addr string) (string, error) {
	if _, present := wn.index[agent.ID()]; !present {
		return "", fmt.Errorf("%w: %d", ErrUnknownAgent, agent.ID())
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	srv := &http.Server{Handler: wn.Handler(agent), ReadHeaderTimeout: 10 * time.Second}

	wn.mu.Lock()
	if wn.closed {
		wn.mu.Unlock()
		ln.Close()
		return "", ErrClosed
	}
	wn.servers = append(wn.servers, srv)
	wn.mu.Unlock()

	wn.group.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	url := "ws://" + ln.Addr().String() + "/"
	wn.AddEndpoint(agent.ID(), url)
	wn.logger.Info().Int("agent", int(agent.ID())).Str("url", url).Msg("listening")
	return url, nil
}

// Dial connects agent from to agent to at the endpoint recorded for to
func (wn *WSNetwork) Dial(ctx context.Context, from, to AgentID) error {
	local, present := wn.index[from]
	if !present {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, from)
	}
	wn.mu.Lock()
	url, present := wn.endpoints[to]
	wn.mu.Unlock()
	if !present {
		return fmt.Errorf("%w: no endpoint for %d", ErrUnknownAgent, to)
	}

	hdr := http.Header{}
	hdr.Set(agentIDHeader, strconv.Itoa(int(from)))
	conn, _, err := wn.dialer.DialContext(ctx, url, hdr)
	if err != nil {
		return fmt.Errorf("dial %d -> %d: %w", from, to, err)
	}
	if err := wn.attach(local, to, conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// attach registers conn as the connection from local to remote and starts its reader
func (wn *WSNetwork) attach(local Agent, remote AgentID, conn *websocket.Conn) error {
	wc := &wsConn{conn: conn, remote: remote}
	conn.SetReadLimit(maxFrameSize)

	wn.mu.Lock()
	if wn.closed {
		wn.mu.Unlock()
		return ErrClosed
	}
	if wn.conns[local.ID()] == nil {
		wn.conns[local.ID()] = make(map[AgentID]*wsConn)
	}
	if old, present := wn.conns[local.ID()][remote]; present {
		old.conn.Close()
	}
	wn.conns[local.ID()][remote] = wc
	wn.mu.Unlock()

	wn.group.Go(func() error { return wn.readLoop(local, wc) })
	wn.logger.Debug().Int("local", int(local.ID())).Int("remote", int(remote)).Msg("connected")
	return nil
}

// readLoop queues every frame arriving on wc for local until the connection ends
func (wn *WSNetwork) readLoop(local Agent, wc *wsConn) error {
	defer wn.detach(local.ID(), wc)
	for {
		mt, frame, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !wn.isClosed() {
				wn.logger.Debug().Err(err).Int("local", int(local.ID())).Int("remote", int(wc.remote)).Msg("connection lost")
			}
			return nil
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		sender, payload, err := decodeFrame(frame)
		if err != nil {
			wn.logger.Warn().Err(err).Int("local", int(local.ID())).Msg("dropping frame")
			continue
		}

		wn.mu.Lock()
		wn.inbound = append(wn.inbound, inboundFrame{recipient: local, sender: sender, payload: payload})
		wn.mu.Unlock()
		select {
		case wn.notify <- struct{}{}:
		default:
		}
	}
}

// detach forgets wc, unless it was already replaced
func (wn *WSNetwork) detach(local AgentID, wc *wsConn) {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	if wn.conns[local][wc.remote] == wc {
		delete(wn.conns[local], wc.remote)
	}
}

func (wn *WSNetwork) isClosed() bool {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	return wn.closed
}

// Connected reports whether local holds a connection to remote
func (wn *WSNetwork) Connected(local, remote AgentID) bool {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	_, present := wn.conns[local][remote]
	return present
}

// connsOf returns the connections of id ordered by remote id
func (wn *WSNetwork) connsOf(id AgentID) ([]*wsConn, error) {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	if wn.closed {
		return nil, ErrClosed
	}
	rtn := make([]*wsConn, 0, len(wn.conns[id]))
	for _, wc := range wn.conns[id] {
		rtn = append(rtn, wc)
	}
	slices.SortFunc(rtn, func(a, b *wsConn) int { return int(a.remote) - int(b.remote) })
	return rtn, nil
}

// Broadcast writes payload to every connection of sender
func (wn *WSNetwork) Broadcast(sender Agent, payload []byte) error {
	checkPayload(payload)
	conns, err := wn.connsOf(sender.ID())
	if err != nil {
		return err
	}
	frame := encodeFrame(sender.ID(), payload)
	var errs []error
	for _, wc := range conns {
		if err := wc.write(frame); err != nil {
			errs = append(errs, fmt.Errorf("send %d -> %d: %w", sender.ID(), wc.remote, err))
		}
	}
	return errors.Join(errs...)
}

// SendToOne writes payload to one connection of sender chosen at random
func (wn *WSNetwork) SendToOne(sender Agent, payload []byte) error {
	checkPayload(payload)
	conns, err := wn.connsOf(sender.ID())
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		return fmt.Errorf("%w: agent %d has no connections", ErrNotConnected, sender.ID())
	}
	wc := conns[wn.rng.RandInt(0, len(conns)-1)]
	return wc.write(encodeFrame(sender.ID(), payload))
}

// DirectSend writes payload to the connection between sender and to
func (wn *WSNetwork) DirectSend(sender Agent, to AgentID, payload []byte) error {
	checkPayload(payload)
	wn.mu.Lock()
	if wn.closed {
		wn.mu.Unlock()
		return ErrClosed
	}
	wc, present := wn.conns[sender.ID()][to]
	wn.mu.Unlock()
	if !present {
		return fmt.Errorf("%w: %d -> %d", ErrNotConnected, sender.ID(), to)
	}
	return wc.write(encodeFrame(sender.ID(), payload))
}

// DeliverPending hands every queued inbound frame to its recipient, in
// arrival order, and returns how many there were
func (wn *WSNetwork) DeliverPending() int {
	wn.mu.Lock()
	frames := wn.inbound
	wn.inbound = make([]inboundFrame, 0)
	wn.mu.Unlock()

	for _, f := range frames {
		f.recipient.OnReceive(f.payload, f.sender)
	}
	return len(frames)
}

// Run delivers inbound frames and ticks every agent, roughly every sleep
// seconds, until seconds of wall-clock time have passed or ctx is done
func (wn *WSNetwork) Run(ctx context.Context, seconds, sleep float64) error {
	if wn.isClosed() {
		return ErrClosed
	}
	wait := fromSeconds(max(sleep, 0.001))
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wn.DeliverPending()
		for _, a := range wn.agents {
			a.Tick()
		}
		if time.Since(start).Seconds() >= seconds {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-wn.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Close tears down every connection and server and waits for their goroutines
func (wn *WSNetwork) Close() error {
	wn.mu.Lock()
	if wn.closed {
		wn.mu.Unlock()
		return nil
	}
	wn.closed = true
	servers := wn.servers
	conns := make([]*wsConn, 0)
	for _, byRemote := range wn.conns {
		for _, wc := range byRemote {
			conns = append(conns, wc)
		}
	}
	wn.mu.Unlock()

	wn.cancel()
	for _, wc := range conns {
		wc.mu.Lock()
		_ = wc.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		wc.mu.Unlock()
		wc.conn.Close()
	}
	for _, srv := range servers {
		srv.Close()
	}
	return wn.group.Wait()
}

// GeneratePeers is not supported; connections are made with Dial
func (wn *WSNetwork) GeneratePeers(targetDegree int) error {
	return unsupported(wsBackend, "GeneratePeers")
}

// Tick is not supported; Run drives agents on the wall clock
func (wn *WSNetwork) Tick() error {
	return unsupported(wsBackend, "Tick")
}

// KnockOfflineRandom is not supported
func (wn *WSNetwork) KnockOfflineRandom(n int) ([]AgentID, error) {
	return nil, unsupported(wsBackend, "KnockOfflineRandom")
}

// Partition is not supported
func (wn *WSNetwork) Partition() ([]AgentID, error) {
	return nil, unsupported(wsBackend, "Partition")
}
