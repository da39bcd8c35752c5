package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultGatewayURL — шлюз Discord, v10, JSON.
const DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// IntentGuilds — взаимодействия приходят и без интентов, GUILDS нужен для READY.
const IntentGuilds = 1 << 0

// opcodes шлюза
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opResume         = 6
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

const closeResumable = 4000

var (
	errReconnect = errors.New("gateway: reconnect requested")
	errZombie    = errors.New("gateway: heartbeat not acknowledged")
)

type payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type outgoing struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

// Gateway держит websocket-сессию со шлюзом: hello, identify/resume,
// heartbeat, приём dispatch-событий и переподключение с backoff.
type Gateway struct {
	token   string
	intents int
	url     string
	log     *slog.Logger
	dialer  *websocket.Dialer

	wmu  sync.Mutex // сериализует запись в websocket
	conn *websocket.Conn

	seq       atomic.Int64 // последний s из dispatch, 0 — ещё не было
	acked     atomic.Bool
	sessionID string
	resumeURL string
	self      *User // пользователь бота из последнего READY

	// OnReady вызывается после READY и RESUMED; self не бывает nil.
	OnReady func(self *User)
	// OnInteraction вызывается в отдельной горутине на каждое INTERACTION_CREATE.
	OnInteraction func(ctx context.Context, in *Interaction)

	handlers sync.WaitGroup
}

type GatewayOption func(*Gateway)

// WithGatewayURL подменяет адрес шлюза.
func WithGatewayURL(u string) GatewayOption {
	return func(g *Gateway) { g.url = u }
}

func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.log = l }
}

func NewGateway(token string, intents int, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		token:   token,
		intents: intents,
		url:     DefaultGatewayURL,
		log:     slog.Default(),
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run держит соединение до отмены ctx. Возвращает ошибку только для
// неисправимых закрытий (неверный токен, запрещённые интенты).
func (g *Gateway) Run(ctx context.Context) error {
	defer g.handlers.Wait()

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		established, err := g.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if fatal := fatalClose(err); fatal != nil {
			return fatal
		}
		if established {
			backoff = time.Second
		}
		g.log.Warn("gateway disconnected", "err", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if !established && backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func fatalClose(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 4004, 4010, 4011, 4012, 4013, 4014:
			return fmt.Errorf("gateway: closed %d: %s", ce.Code, ce.Text)
		}
	}
	return nil
}

// session — одно websocket-соединение от dial до ошибки чтения.
// established == true, если шлюз принял identify/resume.
func (g *Gateway) session(ctx context.Context) (established bool, err error) {
	url := g.url
	resuming := g.sessionID != "" && g.resumeURL != ""
	if resuming {
		url = g.resumeURL + "/?v=10&encoding=json"
	}

	conn, _, err := g.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, fmt.Errorf("gateway: dial: %w", err)
	}
	conn.SetReadLimit(16 << 20)
	g.wmu.Lock()
	g.conn = conn
	g.wmu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		// 1000 сбрасывает сессию на стороне Discord, resume возможен только после 4000
		code := closeResumable
		if ctx.Err() != nil {
			code = websocket.CloseNormalClosure
		}
		g.closeConn(code)
	}()
	// закрыть по отмене контекста, чтобы ReadMessage вышел
	go func() {
		select {
		case <-ctx.Done():
			g.closeConn(websocket.CloseNormalClosure)
		case <-done:
		}
	}()

	hello, err := g.read(conn)
	if err != nil {
		return false, err
	}
	if hello.Op != opHello {
		return false, fmt.Errorf("gateway: expected hello, got op %d", hello.Op)
	}
	var h struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &h); err != nil || h.HeartbeatInterval <= 0 {
		return false, fmt.Errorf("gateway: bad hello: %s", hello.D)
	}

	if resuming {
		err = g.send(opResume, map[string]any{
			"token":      g.token,
			"session_id": g.sessionID,
			"seq":        g.seq.Load(),
		})
	} else {
		err = g.send(opIdentify, map[string]any{
			"token":   g.token,
			"intents": g.intents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "clanbattlebot",
				"device":  "clanbattlebot",
			},
		})
	}
	if err != nil {
		return false, err
	}

	g.acked.Store(true)
	go g.heartbeat(conn, time.Duration(h.HeartbeatInterval)*time.Millisecond, done)

	for {
		p, err := g.read(conn)
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && (ce.Code == 4007 || ce.Code == 4009) {
				g.resetSession()
			}
			return established, err
		}

		switch p.Op {
		case opDispatch:
			if p.S != nil {
				g.seq.Store(*p.S)
			}
			established = true
			g.dispatch(ctx, p)
		case opHeartbeat:
			if err := g.beat(); err != nil {
				return established, err
			}
		case opHeartbeatAck:
			g.acked.Store(true)
		case opReconnect:
			return established, errReconnect
		case opInvalidSession:
			var resumable bool
			_ = json.Unmarshal(p.D, &resumable)
			if !resumable {
				g.resetSession()
			}
			return established, fmt.Errorf("gateway: invalid session (resumable=%v)", resumable)
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, p payload) {
	switch p.T {
	case "READY":
		var r struct {
			SessionID        string `json:"session_id"`
			ResumeGatewayURL string `json:"resume_gateway_url"`
			User             *User  `json:"user"`
		}
		if err := json.Unmarshal(p.D, &r); err != nil {
			g.log.Error("gateway: decode READY", "err", err)
			return
		}
		if r.User == nil {
			r.User = &User{}
		}
		g.sessionID, g.resumeURL, g.self = r.SessionID, r.ResumeGatewayURL, r.User
		g.log.Info("gateway ready", "session_id", r.SessionID)
		if g.OnReady != nil {
			g.OnReady(r.User)
		}
	case "RESUMED":
		g.log.Info("gateway resumed", "session_id", g.sessionID)
		self := g.self
		if self == nil {
			self = &User{}
		}
		if g.OnReady != nil {
			g.OnReady(self)
		}
	case "INTERACTION_CREATE":
		if g.OnInteraction == nil {
			return
		}
		var in Interaction
		if err := json.Unmarshal(p.D, &in); err != nil {
			g.log.Error("gateway: decode interaction", "err", err)
			return
		}
		g.handlers.Add(1)
		go func() {
			defer g.handlers.Done()
			g.OnInteraction(ctx, &in)
		}()
	}
}

func (g *Gateway) heartbeat(conn *websocket.Conn, interval time.Duration, done <-chan struct{}) {
	// первый удар со случайной задержкой
	first := time.Duration(rand.Float64() * float64(interval))
	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-done:
			return
		case <-timer.C:
			if !g.acked.Load() {
				// подвисшее соединение: закрываем, session вернёт ошибку чтения
				g.log.Warn("gateway heartbeat timeout", "err", errZombie)
				_ = conn.Close()
				return
			}
			if err := g.beat(); err != nil {
				return
			}
			timer.Reset(interval)
		}
	}
}

func (g *Gateway) beat() error {
	g.acked.Store(false)
	var d any
	if s := g.seq.Load(); s > 0 {
		d = s
	}
	return g.send(opHeartbeat, d)
}

func (g *Gateway) read(conn *websocket.Conn) (payload, error) {
	var p payload
	_, data, err := conn.ReadMessage()
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("gateway: decode payload: %w", err)
	}
	return p, nil
}

func (g *Gateway) send(op int, d any) error {
	data, err := json.Marshal(outgoing{Op: op, D: d})
	if err != nil {
		return err
	}
	g.wmu.Lock()
	defer g.wmu.Unlock()
	if g.conn == nil {
		return errors.New("gateway: not connected")
	}
	_ = g.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return g.conn.WriteMessage(websocket.TextMessage, data)
}

func (g *Gateway) closeConn(code int) {
	g.wmu.Lock()
	defer g.wmu.Unlock()
	if g.conn == nil {
		return
	}
	_ = g.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, "closing"),
		time.Now().Add(500*time.Millisecond))
	_ = g.conn.Close()
	g.conn = nil
}

func (g *Gateway) resetSession() {
	g.sessionID, g.resumeURL, g.self = "", "", nil
	g.seq.Store(0)
}
