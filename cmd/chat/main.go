package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Parley server URL")
	user := flag.String("user", "cli-user", "User id for chat")
	flag.Parse()

	fmt.Println("Parley CLI Chat")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /new (start a fresh conversation), /memory")
	fmt.Println("---")

	var conversationID string

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
		if input == "/new" {
			conversationID = ""
			fmt.Println("Started a fresh conversation.")
			continue
		}
		if input == "/memory" {
			fetchMemory(*server, conversationID)
			continue
		}

		conversationID = sendMessage(*server, *user, conversationID, input)
	}
}

// sendMessage posts one chat turn and returns the conversation id to carry
// into the next turn.
func sendMessage(server, user, conversationID, content string) string {
	body, _ := json.Marshal(map[string]string{
		"user_id":         user,
		"conversation_id": conversationID,
		"content":         content,
	})

	client := &http.Client{Timeout: 65 * time.Second}
	resp, err := client.Post(server+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return conversationID
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return conversationID
	}

	var msg struct {
		ConversationID  string   `json:"conversation_id"`
		AgentUsed       string   `json:"agent_used"`
		Content         string   `json:"content"`
		FollowUpActions []string `json:"follow_up_actions,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		printError("Failed to parse response: %v", err)
		return conversationID
	}

	if msg.AgentUsed != "" {
		fmt.Printf("\033[36m[%s]\033[0m %s\n", msg.AgentUsed, msg.Content)
	} else {
		fmt.Println(msg.Content)
	}
	for _, action := range msg.FollowUpActions {
		fmt.Printf("  \033[33m→ %s\033[0m\n", action)
	}
	return msg.ConversationID
}

func fetchMemory(server, conversationID string) {
	if conversationID == "" {
		fmt.Println("No conversation yet — send a message first.")
		return
	}
	resp, err := http.Get(server + "/api/conversations/" + conversationID + "/memory")
	if err != nil {
		printError("Failed to fetch memory: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var mem struct {
		Summary string `json:"summary"`
		Entries []struct {
			UserInput     string `json:"user_input"`
			AgentResponse string `json:"agent_response"`
			AgentUsed     string `json:"agent_used"`
		} `json:"recent_interactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&mem); err != nil {
		printError("Failed to parse memory: %v", err)
		return
	}

	if mem.Summary != "" {
		fmt.Printf("Summary: %s\n", mem.Summary)
	}
	fmt.Printf("Entries (%d):\n", len(mem.Entries))
	for _, e := range mem.Entries {
		fmt.Printf("  you: %s\n", e.UserInput)
		fmt.Printf("  \033[36m[%s]\033[0m %s\n", e.AgentUsed, e.AgentResponse)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
