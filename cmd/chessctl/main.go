// Package main provides a simple CLI client for playing through the chess relay.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Feddakalkun/chess-platform/internal/domain"
	"github.com/Feddakalkun/chess-platform/internal/protocol"
)

// Client represents a WebSocket client.
type Client struct {
	conn *websocket.Conn
	name string
	done chan struct{}

	mu        sync.Mutex
	sessionID string
	writeMu   sync.Mutex
}

// NewClient creates a new client and connects to the server.
func NewClient(addr, name string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		name: name,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

func (c *Client) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSession(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *Client) base(typ string) protocol.BaseMessage {
	return protocol.BaseMessage{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
		SessionID: c.session(),
	}
}

func (c *Client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Create opens a new game. args are an optional variant and time control.
func (c *Client) Create(args []string) error {
	cfg := domain.GameConfig{}
	if len(args) > 0 {
		cfg.Variant = domain.Variant(args[0])
	}
	if len(args) > 1 {
		cfg.TimeControl = args[1]
	}
	return c.write(protocol.CreateGameMessage{
		BaseMessage: c.base(protocol.TypeCreateGame),
		PlayerName:  c.name,
		Config:      cfg,
	})
}

// Join joins the game with the given room code.
func (c *Client) Join(code string) error {
	c.setSession(code)
	return c.write(protocol.JoinGameMessage{
		BaseMessage: c.base(protocol.TypeJoinGame),
		PlayerName:  c.name,
	})
}

// Move submits a move in SAN ("Nf3") or coordinate form ("g1f3", "e7e8q").
func (c *Client) Move(text string) error {
	raw, err := encodeMove(text)
	if err != nil {
		return err
	}
	return c.write(protocol.MakeMoveMessage{
		BaseMessage: c.base(protocol.TypeMakeMove),
		Move:        raw,
	})
}

// Send sends a request that carries no payload besides the session.
func (c *Client) Send(typ string) error {
	return c.write(c.base(typ))
}

func encodeMove(text string) (json.RawMessage, error) {
	if isCoordinate(text) {
		mv := map[string]string{"from": text[0:2], "to": text[2:4]}
		if len(text) == 5 {
			mv["promotion"] = text[4:5]
		}
		return json.Marshal(mv)
	}
	return json.Marshal(text)
}

func isCoordinate(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	square := func(f, r byte) bool { return f >= 'a' && f <= 'h' && r >= '1' && r <= '8' }
	return square(s[0], s[1]) && square(s[2], s[3])
}

// ReadMessages reads and prints messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var base protocol.BaseMessage
			if err := json.Unmarshal(data, &base); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}
			if base.Type == protocol.TypeGameCreated && base.SessionID != "" {
				c.setSession(base.SessionID)
			}

			// Pretty print the message
			var prettyJSON map[string]interface{}
			json.Unmarshal(data, &prettyJSON)
			formatted, _ := json.MarshalIndent(prettyJSON, "", "  ")
			fmt.Printf("\n[%s] Received:\n%s\n", base.Type, string(formatted))
		}
	}
}

func (c *Client) handle(input string) error {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/create":
		return c.Create(fields[1:])
	case "/join":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /join <room code>")
		}
		return c.Join(fields[1])
	case "/resign":
		return c.Send(protocol.TypeResign)
	case "/draw":
		return c.Send(protocol.TypeOfferDraw)
	case "/accept":
		return c.Send(protocol.TypeAcceptDraw)
	case "/decline":
		return c.Send(protocol.TypeDeclineDraw)
	case "/state":
		return c.Send(protocol.TypeGetGameState)
	}
	if strings.HasPrefix(fields[0], "/") {
		return fmt.Errorf("unknown command: %s", fields[0])
	}
	return c.Move(fields[0])
}

func main() {
	addr := flag.String("addr", "ws://localhost:3001/ws", "WebSocket server address")
	name := flag.String("name", "", "Player name shown to the opponent")
	join := flag.String("join", "", "Room code to join on connect")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr, *name)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	// Start reading messages in background
	go client.ReadMessages()

	if *join != "" {
		if err := client.Join(*join); err != nil {
			log.Fatalf("Join failed: %v", err)
		}
	}

	fmt.Println("Connected. Type a move (e4, g1f3) or a command and press Enter.")
	fmt.Println("Commands: /create [variant] [time control], /join <code>, /resign, /draw, /accept, /decline, /state, /quit")

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}

			if err := client.handle(input); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
