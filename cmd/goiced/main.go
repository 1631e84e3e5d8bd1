// Command goiced is a minimal demonstration of the goice agent: it gathers
// candidates, trickles them with a peer over a local websocket signaling
// channel, runs connectivity checks, and once a pair is selected either
// logs each received datagram or (with --reliable) layers a pseudo-TCP
// stream on top, sends lines read from stdin and writes received bytes to
// stdout.
package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/lanikai/goice/internal/ice"
	"github.com/lanikai/goice/internal/ptcp"
	"github.com/lanikai/goice/internal/rtclog"
	"github.com/lanikai/goice/internal/signaling"
)

var log = rtclog.DefaultLogger.WithTag("goiced")

const (
	numComps    = 1
	componentID = 1
)

var streamID int

func main() {
	flag.Parse()
	if flagHelp {
		help()
		return
	}
	if flagVerbose {
		rtclog.DefaultLogger.Level = rtclog.Debug
	}

	d := &demo{
		mu:    new(sync.Mutex),
		agent: ice.NewAgent(flagControlling, flagReliable, true, false),
	}
	d.agent.SetSendFunc(d.sendDatagram)

	if flagSTUNAddress != "" {
		addr, err := net.ResolveUDPAddr("udp", flagSTUNAddress)
		if err != nil {
			log.Error("resolve stun address: %v", err)
			os.Exit(1)
		}
		d.agent.SetStunServer(addr)
	}

	addrs, err := ice.DiscoverLocalAddresses(flagIPv6)
	if err != nil {
		log.Error("discover local addresses: %v", err)
		os.Exit(1)
	}
	for _, ip := range addrs {
		if err := d.agent.AddLocalAddress(ip); err != nil {
			log.Warn("add local address %s: %v", ip, err)
		}
	}

	streamID = d.agent.AddStream(numComps)

	if flagTURNAddress != "" {
		turnAddr, err := net.ResolveUDPAddr("udp", flagTURNAddress)
		if err != nil {
			log.Error("resolve turn address: %v", err)
			os.Exit(1)
		}
		if err := d.agent.SetRelayInfo(streamID, componentID, turnAddr.IP, turnAddr.Port,
			flagTURNUser, flagTURNPass, ice.UDP); err != nil {
			log.Warn("set relay info: %v", err)
		}
	}

	client, err := signaling.NewClient(d.handleSession)
	if err != nil {
		log.Error("new signaling client: %v", err)
		os.Exit(1)
	}
	d.client = client

	if err := d.agent.GatherCandidates(streamID); err != nil {
		log.Error("gather candidates: %v", err)
		os.Exit(1)
	}

	go d.tickLoop()

	if err := client.Listen(); err != nil {
		log.Error("listen: %v", err)
		os.Exit(1)
	}
}

// demo wires one ice.Agent to one signaling.Session and, with --reliable,
// one ptcp.Socket. The agent is single-threaded per spec.md ?5: every entry
// point into it (Tick, DeliverDatagram, the verbs called from
// handleSession) takes mu first.
type demo struct {
	mu    *sync.Mutex
	agent *ice.Agent
	client signaling.Client
	sock  *ptcp.Socket

	sockets []net.PacketConn
}

// sendDatagram is the fallback path SetSendFunc wires in: the agent tries
// its own bound sockets first and only reaches here for a local address it
// doesn't own a socket for (e.g. a relayed candidate whose datagrams must
// go out over a host socket instead of the TURN allocation). Called
// synchronously out of Agent methods that the caller already holds d.mu
// for, so this must not lock d.mu itself.
func (d *demo) sendDatagram(local, dest ice.TransportAddress, data []byte) error {
	want := net.JoinHostPort(local.IP.String(), fmt.Sprint(local.Port))
	for _, s := range d.sockets {
		if host, port, err := net.SplitHostPort(s.LocalAddr().String()); err == nil && net.JoinHostPort(host, port) == want {
			_, err := s.WriteTo(data, &net.UDPAddr{IP: dest.IP, Port: dest.Port, Zone: dest.Zone})
			return err
		}
	}
	return fmt.Errorf("goiced: no bound socket for local address %s", local.IP)
}

// readLoop pumps one bound UDP socket into DeliverDatagram. STUN traffic is
// handled (and replied to over the same socket) inside DeliverDatagram
// itself; payload data comes back out via its second return value for this
// loop to hand to the pseudo-TCP socket, if one is running.
func (d *demo) readLoop(streamID, componentID int, conn net.PacketConn) {
	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		udp, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		fromAddr := ice.TransportAddress{IP: udp.IP, Port: udp.Port, Trans: ice.UDP}

		d.mu.Lock()
		payload, ok := d.agent.DeliverDatagram(streamID, componentID, fromAddr, buf[:n])
		sock := d.sock
		d.mu.Unlock()

		if !ok {
			// STUN traffic, handled (and replied to, if needed) inside
			// DeliverDatagram itself.
			continue
		}
		if sock != nil {
			d.mu.Lock()
			sock.DeliverSegment(payload, time.Now())
			d.mu.Unlock()
		} else {
			log.Info("recv %d bytes from %s", len(payload), udp)
		}
	}
}

func (d *demo) tickLoop() {
	for {
		d.mu.Lock()
		d.agent.Tick(time.Now())
		events := d.agent.Events()
		sockets := d.agent.LocalSockets(streamID, componentID)
		if len(d.sockets) == 0 && len(sockets) > 0 {
			d.sockets = sockets
			for _, s := range sockets {
				go d.readLoop(streamID, componentID, s)
			}
		}
		d.mu.Unlock()

		for _, e := range events {
			d.handleEvent(e)
		}

		time.Sleep(50 * time.Millisecond)
	}
}

func (d *demo) handleEvent(e ice.Event) {
	switch e.Kind {
	case ice.EventGatheringDone:
		log.Info("gathering done")
	case ice.EventComponentStateChanged:
		log.Info("component %d/%d -> %s", e.StreamID, e.ComponentID, e.State)
		if e.State == ice.Ready && flagReliable {
			d.startReliable()
		}
	case ice.EventSelectedPairChanged:
		log.Info("selected pair changed for component %d/%d", e.StreamID, e.ComponentID)
	}
}

func (d *demo) startReliable() {
	conv := rand.Uint32()
	d.mu.Lock()
	d.sock = ptcp.NewSocket(conv, func(data []byte) error {
		_, err := d.agent.Send(streamID, componentID, data)
		return err
	}, ptcp.Callbacks{
		Readable: func() {
			buf := make([]byte, 4096)
			for {
				n, err := d.sock.Recv(buf)
				if err != nil || n == 0 {
					return
				}
				os.Stdout.Write(buf[:n])
			}
		},
		Opened: func() {
			log.Info("ptcp stream open")
		},
		Closed: func(err error) {
			log.Info("ptcp stream closed: %v", err)
		},
	})
	controlling := d.agent.Controlling()
	d.mu.Unlock()

	if controlling {
		d.mu.Lock()
		err := d.sock.Connect(time.Now())
		d.mu.Unlock()
		if err != nil {
			log.Error("ptcp connect: %v", err)
		}
	}

	go d.stdinLoop()
	go d.ptcpClockLoop()
}

func (d *demo) stdinLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := append(scanner.Bytes(), '\n')
		d.mu.Lock()
		if d.sock != nil {
			d.sock.Send(line)
		}
		d.mu.Unlock()
	}
}

func (d *demo) ptcpClockLoop() {
	for {
		d.mu.Lock()
		sock := d.sock
		d.mu.Unlock()
		if sock == nil {
			return
		}
		d.mu.Lock()
		wait, ok := sock.GetNextClock(time.Now())
		d.mu.Unlock()
		if !ok {
			wait = 200 * time.Millisecond
		}
		time.Sleep(wait)
		d.mu.Lock()
		sock.NotifyClock(time.Now())
		d.mu.Unlock()
	}
}

// handleSession drives one signaling.Session from credential exchange
// through candidate trickling, in its own goroutine per
// signaling.SessionHandler's contract.
func (d *demo) handleSession(s *signaling.Session) {
	d.mu.Lock()
	ufrag, pwd, err := d.agent.GetLocalCredentials(streamID)
	d.mu.Unlock()
	if err != nil {
		log.Error("get local credentials: %v", err)
		return
	}
	if err := s.SendCredentials(signaling.Credentials{Ufrag: ufrag, Password: pwd}); err != nil {
		log.Warn("send credentials: %v", err)
		return
	}

	go d.trickleLocal(s)

	select {
	case creds, ok := <-s.RemoteCredentials:
		if !ok {
			return
		}
		d.mu.Lock()
		err := d.agent.SetRemoteCredentials(streamID, creds.Ufrag, creds.Password)
		d.mu.Unlock()
		if err != nil {
			log.Error("set remote credentials: %v", err)
			return
		}
	case <-s.Done():
		return
	}

	for {
		select {
		case line, ok := <-s.RemoteCandidates:
			if !ok {
				return
			}
			cand, err := ice.ParseCandidateLine(line, streamID)
			if err != nil {
				log.Warn("parse candidate line %q: %v", line, err)
				continue
			}
			d.mu.Lock()
			_, err = d.agent.SetRemoteCandidates(streamID, cand.ComponentID, []*ice.Candidate{cand})
			d.mu.Unlock()
			if err != nil {
				log.Warn("set remote candidate: %v", err)
			}
		case <-s.Done():
			return
		}
	}
}

// trickleLocal waits for gathering to finish, then sends every local
// candidate line over the session, terminated by an empty/Done marker.
func (d *demo) trickleLocal(s *signaling.Session) {
	for {
		d.mu.Lock()
		state, _ := d.agent.GetComponentState(streamID, componentID)
		d.mu.Unlock()
		if state != ice.Disconnected && state != ice.Gathering {
			break
		}
		select {
		case <-s.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}

	d.mu.Lock()
	cands := d.agent.LocalCandidates(streamID, componentID)
	d.mu.Unlock()
	for _, c := range cands {
		if err := s.SendLocalCandidate(ice.EncodeCandidateLine(c)); err != nil {
			return
		}
	}
	s.SendLocalCandidate("")
}
