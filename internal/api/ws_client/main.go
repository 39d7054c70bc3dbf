package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Dev client that prints commission notifications pushed to one user.
func main() {
	host := flag.String("host", "ws://localhost:8080", "server base url")
	userID := flag.String("user", "", "user id to listen for")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	url := fmt.Sprintf("%s/api/v1/users/%s/ws", *host, *userID)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	messageQueue := make(chan []byte)

	go func() {
		defer close(messageQueue)
		for {
			_, p, err := conn.ReadMessage()
			if err != nil {
				log.Println("read error:", err)
				return
			}

			messageQueue <- p
		}
	}()

	for message := range messageQueue {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Received:\n%s\n", message)
			continue
		}
		log.Printf("%s: level %v commission of %v from %v (payment %v)\n",
			msg.Type,
			msg.Payload["level"],
			msg.Payload["amount"],
			msg.Payload["from_user_id"],
			msg.Payload["payment_id"])
	}
}
