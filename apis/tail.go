package apis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mdx/remotecontrol/action"
)

// Sender is where messages coming back from an integration are delivered,
// normally the remote control facade.
type Sender interface {
	Send(b []byte) error
}

// TailEvent is one dispatched action as streamed to websocket clients.
type TailEvent struct {
	Action string    `json:"action"`
	Arg    string    `json:"arg,omitempty"`
	Time   time.Time `json:"time"`
}

type tailCommand struct {
	Send string `json:"send"`
}

var tailUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header["Origin"]
		if len(origin) == 0 {
			return true
		}
		u, err := url.Parse(origin[0])
		if err != nil {
			return false
		}
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1"
	},
}

// Tail streams dispatched actions to a websocket client and forwards the
// client's {"send": "..."} frames to the remotes. Only one client is served;
// a new connection replaces the previous one.
type Tail struct {
	sender Sender
	events chan TailEvent

	mu         sync.Mutex
	activeConn *websocket.Conn
}

func NewTail(sender Sender) *Tail {
	return &Tail{
		sender: sender,
		events: make(chan TailEvent, 64),
	}
}

// Publish queues an action for the connected client. It never blocks; when
// nobody is listening or the client is too slow the event is discarded.
func (t *Tail) Publish(a action.Action, arg action.Arg) {
	if t.conn() == nil {
		return
	}
	select {
	case t.events <- TailEvent{Action: a.String(), Arg: arg.String(), Time: time.Now()}:
	default:
		log.Printf("tail is busy, discarding %s\n", a)
	}
}

func (t *Tail) conn() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeConn
}

func (t *Tail) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", t.ws)
	return mux
}

func (t *Tail) ws(w http.ResponseWriter, r *http.Request) {
	c, err := tailUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %s\n", err)
		return
	}
	t.mu.Lock()
	if t.activeConn != nil {
		log.Printf("closing previous websocket conn %p\n", t.activeConn)
		t.activeConn.Close()
	}
	t.activeConn = c
	t.mu.Unlock()

	defer func() {
		c.Close()
		t.mu.Lock()
		if c == t.activeConn {
			t.activeConn = nil
		}
		t.mu.Unlock()
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			log.Printf("websocket read failed: %s\n", err)
			return
		}
		if c != t.conn() {
			log.Println("ignoring websocket read on old socket")
			return
		}
		var cmd tailCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			log.Printf("could not unmarshal tail message: %v\n", err)
			continue
		}
		if cmd.Send == "" {
			continue
		}
		if err := t.sender.Send([]byte(cmd.Send)); err != nil {
			log.Printf("could not forward %q to remotes: %v\n", cmd.Send, err)
		}
	}
}

func (t *Tail) writer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.events:
			c := t.conn()
			if c == nil {
				log.Printf("discarding %s\n", ev.Action)
				continue
			}
			if err := c.WriteJSON(ev); err != nil {
				log.Printf("websocket write failed: %s\n", err)
			}
		}
	}
}

// Run serves the tail on addr until ctx is done.
func (t *Tail) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: t.Handler()}
	go t.writer(ctx)
	go func() {
		<-ctx.Done()
		srv.Close()
		// hijacked websocket conns are not closed by the server
		if c := t.conn(); c != nil {
			c.Close()
		}
	}()
	log.Printf("tail listening on %s\n", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
