package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Analysis Room server URL")
	flag.Parse()

	fmt.Println("The Analysis Room CLI")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /personas, /items")
	fmt.Println("---")

	var conversationID int64

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/personas" {
			fetchPersonas(*server)
			continue
		}
		if input == "/items" {
			fetchItems(*server)
			continue
		}

		conversationID = sendMessage(*server, input, conversationID)
	}
}

func fetchPersonas(server string) {
	resp, err := http.Get(server + "/api/agent/personas")
	if err != nil {
		printError("Failed to fetch personas: %v", err)
		return
	}
	defer resp.Body.Close()

	var personas []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		NameHe    string `json:"nameHe"`
		Framework string `json:"framework"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&personas); err != nil {
		printError("Failed to parse personas: %v", err)
		return
	}
	fmt.Println("Panel:")
	for _, p := range personas {
		fmt.Printf("  %s / %s (%s)\n", p.NameHe, p.Name, p.Framework)
	}
}

func fetchItems(server string) {
	resp, err := http.Get(server + "/api/acquired-items")
	if err != nil {
		printError("Failed to fetch items: %v", err)
		return
	}
	defer resp.Body.Close()

	var items []struct {
		Item   string `json:"item"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		printError("Failed to parse items: %v", err)
		return
	}
	if len(items) == 0 {
		fmt.Println("No acquired items yet.")
		return
	}
	fmt.Println("Acquired items:")
	for _, it := range items {
		fmt.Printf("  - %s (%s)\n", it.Item, it.Source)
	}
}

// sendMessage streams the round over SSE and prints each event as it
// arrives. Returns the conversation id for the next message.
func sendMessage(server, content string, conversationID int64) int64 {
	body, _ := json.Marshal(map[string]any{
		"message":        content,
		"conversationId": conversationID,
	})

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Post(server+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return conversationID
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	event := ""
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			conversationID = handleEvent(event, strings.TrimPrefix(line, "data: "), conversationID)
		}
	}
	return conversationID
}

func handleEvent(event, data string, conversationID int64) int64 {
	switch event {
	case "status":
		var status struct {
			Label string `json:"label"`
		}
		if json.Unmarshal([]byte(data), &status) == nil && status.Label != "" {
			fmt.Printf("\033[90m… %s\033[0m\n", status.Label)
		}
	case "turn":
		var td struct {
			Turn struct {
				Character string `json:"character"`
				Text      string `json:"text"`
			} `json:"turn"`
			ConversationID int64 `json:"conversationId"`
		}
		if json.Unmarshal([]byte(data), &td) == nil {
			fmt.Printf("\033[36m[%s]\033[0m %s\n", td.Turn.Character, td.Turn.Text)
			if td.ConversationID != 0 {
				return td.ConversationID
			}
		}
	case "error":
		var ed struct {
			Message string `json:"message"`
		}
		if json.Unmarshal([]byte(data), &ed) == nil {
			printError("%s", ed.Message)
		}
	}
	return conversationID
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
