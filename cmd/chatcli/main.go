// Package main provides a terminal client for practicing a scenario over the
// conversation websocket.
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
	"time"

	"github.com/gorilla/websocket"

	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/protocol"
)

// Client represents a WebSocket client.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	done      chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

func (c *Client) base(typ string) protocol.BaseMessage {
	return protocol.BaseMessage{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		SessionID: c.sessionID,
		RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
	}
}

// expect reads one message and fails unless it has type want.
func (c *Client) expect(want string) ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", want, err)
	}

	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", want, err)
	}
	if base.Type == protocol.TypeError {
		var errMsg protocol.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return nil, fmt.Errorf("%s failed: %s - %s", want, errMsg.Code, errMsg.Message)
	}
	if base.Type != want {
		return nil, fmt.Errorf("expected %s, got: %s", want, base.Type)
	}
	return data, nil
}

// SendHello sends a hello message and waits for hello_ack.
func (c *Client) SendHello() error {
	msg := protocol.HelloMessage{
		BaseMessage: c.base(protocol.TypeHello),
		ClientMeta:  map[string]string{"client": "chatcli"},
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	data, err := c.expect(protocol.TypeHelloAck)
	if err != nil {
		return err
	}
	var ack protocol.HelloAckMessage
	if err := json.Unmarshal(data, &ack); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	c.sessionID = ack.SessionID
	return nil
}

// StartSession starts the scenario and returns the greeting.
func (c *Client) StartSession(scenario string, difficulty domain.Difficulty, useMock bool) (*protocol.SessionStartedMessage, error) {
	msg := protocol.StartSessionMessage{
		BaseMessage: c.base(protocol.TypeStartSession),
		Scenario:    scenario,
		Difficulty:  difficulty,
		UseMock:     useMock,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("write start_session: %w", err)
	}

	data, err := c.expect(protocol.TypeSessionStarted)
	if err != nil {
		return nil, err
	}
	var started protocol.SessionStartedMessage
	if err := json.Unmarshal(data, &started); err != nil {
		return nil, fmt.Errorf("unmarshal session_started: %w", err)
	}
	return &started, nil
}

// SendTurn sends one utterance.
func (c *Client) SendTurn(text string, render bool) error {
	return c.conn.WriteJSON(protocol.UserTurnMessage{
		BaseMessage: c.base(protocol.TypeUserTurn),
		Text:        text,
		Render:      render,
	})
}

// SetMock toggles mock replies for the session.
func (c *Client) SetMock(useMock bool) error {
	return c.conn.WriteJSON(protocol.SetMockMessage{
		BaseMessage: c.base(protocol.TypeSetMock),
		UseMock:     useMock,
	})
}

// EndSession ends the session.
func (c *Client) EndSession() error {
	return c.conn.WriteJSON(protocol.EndSessionMessage{BaseMessage: c.base(protocol.TypeEndSession)})
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
			printMessage(data)
		}
	}
}

func printMessage(data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		log.Printf("Unmarshal error: %v", err)
		return
	}

	switch base.Type {
	case protocol.TypeReply:
		var msg protocol.ReplyMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("\ntutor (%s): %s\n", msg.ProviderID, msg.Reply)
	case protocol.TypeVideoReady:
		var msg protocol.VideoReadyMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("\n[video] %s\n", msg.URL)
	case protocol.TypeProviderFallback:
		var msg protocol.ProviderFallbackMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("\n[fallback] %s -> %s: %s\n", msg.From, msg.To, msg.Reason)
	case protocol.TypeError:
		var msg protocol.ErrorMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("\n[error] %s: %s\n", msg.Code, msg.Message)
	default:
		var pretty map[string]interface{}
		json.Unmarshal(data, &pretty)
		formatted, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("\n[%s] Received:\n%s\n", base.Type, string(formatted))
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket server address")
	scenario := flag.String("scenario", "coffee-shop", "Scenario id")
	difficulty := flag.String("difficulty", string(domain.DifficultyBeginner), "beginner, intermediate or advanced")
	useMock := flag.Bool("mock", false, "Use mock replies")
	render := flag.Bool("render", false, "Request an avatar video for every reply")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.SendHello(); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}
	started, err := client.StartSession(*scenario, domain.Difficulty(*difficulty), *useMock)
	if err != nil {
		log.Fatalf("Start session failed: %v", err)
	}

	fmt.Printf("Session %s: %s (%s)\n", client.sessionID, started.Scenario, started.Difficulty)
	fmt.Printf("\ntutor: %s\n", started.Greeting)
	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /mock on|off, /end, /quit")

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

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

			switch {
			case input == "/quit":
				fmt.Println("Bye!")
				return
			case input == "/end":
				if err := client.EndSession(); err != nil {
					log.Printf("Send error: %v", err)
				}
				continue
			case strings.HasPrefix(input, "/mock"):
				on := strings.TrimSpace(strings.TrimPrefix(input, "/mock")) != "off"
				if err := client.SetMock(on); err != nil {
					log.Printf("Send error: %v", err)
				}
				continue
			}

			if err := client.SendTurn(input, *render); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
