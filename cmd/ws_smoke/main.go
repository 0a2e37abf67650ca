package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"colorsnap/internal/ws"

	"github.com/gorilla/websocket"
)

func main() {
	host := flag.String("host", "127.0.0.1:8080", "daemon host:port")
	address := flag.String("address", os.Getenv("SMOKE_ADDRESS"), "configured signer address")
	start := flag.Bool("start", false, "send start_game after connecting")
	wait := flag.Duration("wait", 15*time.Second, "how long to print events")
	flag.Parse()

	if *address == "" {
		log.Fatal("-address or SMOKE_ADDRESS required")
	}

	token := createSession(*host, *address)

	url := fmt.Sprintf("ws://%s/ws?token=%s", *host, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if *start {
		if err := conn.WriteJSON(ws.Message{Type: ws.MsgStartGame}); err != nil {
			log.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(*wait)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var m ws.Message
		if err := conn.ReadJSON(&m); err != nil {
			log.Printf("read: %v", err)
			break
		}
		log.Printf("%-10s %s", m.Type, string(m.Payload))
	}

	log.Println("smoke test finished")
}

func createSession(host, address string) string {
	body, _ := json.Marshal(map[string]string{"address": address})
	resp, err := http.Post("http://"+host+"/api/v1/session", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("decode session response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("create session: %d %s", resp.StatusCode, out.Error)
	}
	return out.Token
}
