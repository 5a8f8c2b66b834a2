package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SvenDH/go-pixel-evolution/ai"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	RunStartedAction  = "run.started"
	RunFinishedAction = "run.finished"
	GenerationAction  = "run.generation"

	FeedTopic = "feed"
)

type Message struct {
	Type   string `json:"type"`
	Data   any    `json:"data,omitempty"`
	Target string `json:"target,omitempty"`
}

func (message *Message) encode() []byte {
	data, _ := json.Marshal(message)
	return data
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Subscriber struct {
	Channel chan []byte
	closed  bool
}

type Broker interface {
	Subscribe(ctx context.Context, channels ...string) *Subscriber
	Unsubscribe(ctx context.Context, sub *Subscriber, channels ...string)
	Publish(ctx context.Context, topic string, message []byte) error
	Close()
}

type MemoryBroker struct {
	subscribers map[string][]*Subscriber
	mutex       sync.Mutex
}

func NewMemoryBroker() Broker {
	return &MemoryBroker{subscribers: make(map[string][]*Subscriber)}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channels ...string) *Subscriber {
	sub := &Subscriber{Channel: make(chan []byte, 64)}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, t := range channels {
		b.subscribers[t] = append(b.subscribers[t], sub)
	}
	return sub
}

func (b *MemoryBroker) Unsubscribe(ctx context.Context, sub *Subscriber, channels ...string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.Channel)
	}
	for _, t := range channels {
		if subscribers, found := b.subscribers[t]; found {
			var newSubscribers []*Subscriber
			for _, subscriber := range subscribers {
				if subscriber != sub {
					newSubscribers = append(newSubscribers, subscriber)
				}
			}
			b.subscribers[t] = newSubscribers
		}
	}
}

// Publish never blocks: a subscriber with a full buffer misses the message
func (b *MemoryBroker) Publish(ctx context.Context, channel string, msg []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, sub := range b.subscribers[channel] {
		if sub.closed {
			continue
		}
		select {
		case sub.Channel <- msg:
		default:
			log.Printf("Subscriber slow, dropping message on channel: %s", channel)
		}
	}
	return nil
}

func (b *MemoryBroker) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, subscribers := range b.subscribers {
		for _, subscriber := range subscribers {
			if !subscriber.closed {
				subscriber.closed = true
				close(subscriber.Channel)
			}
		}
	}
	b.subscribers = make(map[string][]*Subscriber)
}

type Client struct {
	conn   *websocket.Conn
	server *Server
	sub    *Subscriber
}

func (client *Client) readPump() {
	defer client.disconnect()
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error { client.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		// the feed is one-way; client messages are read only to process control frames
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("unexpected close error: %v", err)
			}
			return
		}
	}
}

func (client *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.sub.Channel:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := client.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Attach queued messages to the current websocket message.
			n := len(client.sub.Channel)
			for i := 0; i < n; i++ {
				next, ok := <-client.sub.Channel
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (client *Client) disconnect() {
	select {
	case client.server.unregister <- client:
	case <-client.server.done:
	}
	client.conn.Close()
}

func ServeWs(wsServer *Server, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	// greet late joiners with the latest state before the write pump owns the conn
	if last := wsServer.latestMessage.Load(); last != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, *last); err != nil {
			conn.Close()
			return
		}
	}
	client := &Client{
		conn:   conn,
		server: wsServer,
		sub:    wsServer.broker.Subscribe(r.Context(), FeedTopic),
	}

	go client.writePump()
	go client.readPump()

	select {
	case wsServer.register <- client:
	case <-wsServer.done:
		wsServer.broker.Unsubscribe(r.Context(), client.sub, FeedTopic)
	}
}

// Server fans run progress out to websocket clients and keeps the latest
// frame for the HTTP routes.
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	broker     Broker
	metrics    *Metrics
	mutex      sync.Mutex

	latestFrame   atomic.Pointer[ai.Frame]
	latestMessage atomic.Pointer[[]byte]
}

func NewWebsocketServer(broker Broker, metrics *Metrics) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		broker:     broker,
		metrics:    metrics,
	}
}

func (server *Server) Run(ctx context.Context) {
	defer close(server.done)
	for {
		select {
		case client := <-server.register:
			server.registerClient(client)
		case client := <-server.unregister:
			server.unregisterClient(client)
		case <-ctx.Done():
			server.broker.Close()
			return
		}
	}
}

func (server *Server) ClientCount() int {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	return len(server.clients)
}

func (server *Server) registerClient(client *Client) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	server.clients[client] = true
}

func (server *Server) unregisterClient(client *Client) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if server.clients[client] {
		delete(server.clients, client)
		server.broker.Unsubscribe(context.TODO(), client.sub, FeedTopic)
	}
}

// LatestFrame returns the most recent frame, or nil before the first generation
func (server *Server) LatestFrame() *ai.Frame {
	return server.latestFrame.Load()
}

func (server *Server) publish(message *Message) {
	data := message.encode()
	server.latestMessage.Store(&data)
	if err := server.broker.Publish(context.TODO(), FeedTopic, data); err != nil {
		log.Println(err)
	}
}

func (server *Server) RunStarted(run *Run) {
	server.publish(&Message{Type: RunStartedAction, Target: run.Id.String(), Data: run})
}

func (server *Server) RunFinished(run *Run, final ai.GenerationStats) {
	server.publish(&Message{Type: RunFinishedAction, Target: run.Id.String(), Data: final})
}

// Observer broadcasts every generation of the run and records its metrics
func (server *Server) Observer(runID string) ai.Observer {
	return func(stats ai.GenerationStats, frame ai.Frame) {
		server.latestFrame.Store(&frame)
		if server.metrics != nil {
			server.metrics.Observe(runID, stats)
		}
		server.publish(&Message{Type: GenerationAction, Target: runID, Data: stats})
	}
}
