package signaling

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"

	"github.com/lanikai/goice/internal/rtclog"
)

var log = rtclog.DefaultLogger.WithTag("signaling")

var flagPort int

func init() {
	flag.IntVar(&flagPort, "port", 8000, "HTTP port the local signaling server listens on")
	NewClient = newLocalWebSignaler
}

// localWebSignaler runs a local websocket server that a browser (or another
// goiced instance acting as the remote peer) connects to directly; each
// connection becomes one Session, trickling credentials and candidate
// lines as newline-delimited "candidate:..." tuples (spec.md's non-goal
// excludes SDP/SIP, so there is no offer/answer exchanged here).
type localWebSignaler struct {
	handler SessionHandler
	server  *http.Server
}

func newLocalWebSignaler(handler SessionHandler) (Client, error) {
	router := http.NewServeMux()
	s := &localWebSignaler{
		handler: handler,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", flagPort),
			Handler: router,
		},
	}
	router.HandleFunc("/ws", s.handleWebsocket)
	return s, nil
}

func (s *localWebSignaler) Listen() error {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	} else if !strings.Contains(host, ".") {
		host += ".local"
	}
	log.Info("Signaling: ws://%s:%d/ws", host, flagPort)
	return s.server.ListenAndServe()
}

func (s *localWebSignaler) Shutdown() error {
	return s.server.Shutdown(context.Background())
}

// wireMessage is the one JSON envelope exchanged over the websocket in
// both directions: either a one-time credentials announcement or a
// trickled candidate line. An empty Candidate with Done set marks
// end-of-candidates.
type wireMessage struct {
	Type      string `json:"type"`
	Ufrag     string `json:"ufrag,omitempty"`
	Password  string `json:"password,omitempty"`
	Candidate string `json:"candidate,omitempty"`
	Done      bool   `json:"done,omitempty"`
}

func (s *localWebSignaler) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws, err := new(websocket.Upgrader).Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade: %v", err)
		return
	}
	defer ws.Close()

	credCh := make(chan Credentials, 1)
	candCh := make(chan string, 32)
	session := &Session{
		Context:           ctx,
		RemoteCredentials: credCh,
		RemoteCandidates:  candCh,
		SendCredentials: func(c Credentials) error {
			return ws.WriteJSON(wireMessage{Type: "credentials", Ufrag: c.Ufrag, Password: c.Password})
		},
		SendLocalCandidate: func(line string) error {
			if line == "" {
				return ws.WriteJSON(wireMessage{Type: "candidate", Done: true})
			}
			return ws.WriteJSON(wireMessage{Type: "candidate", Candidate: line})
		},
	}

	go s.handler(session)

	for {
		var msg wireMessage
		if err := ws.ReadJSON(&msg); err != nil {
			log.Warn("read websocket message: %v", err)
			close(candCh)
			return
		}

		switch msg.Type {
		case "credentials":
			select {
			case credCh <- Credentials{Ufrag: msg.Ufrag, Password: msg.Password}:
			default:
			}
		case "candidate":
			if msg.Done {
				close(candCh)
				return
			}
			candCh <- msg.Candidate
		default:
			log.Warn("unexpected websocket message type %q", msg.Type)
		}
	}
}
