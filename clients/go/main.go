// Chat CLI - command line client for the chat server
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ArnavT27/Chat-Application/clients/go/chat"
	"github.com/ArnavT27/Chat-Application/internal/crypto"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("CHAT_URL")
	if baseURL == "" {
		baseURL = "http://localhost:5001"
	}
	userID := os.Getenv("CHAT_USER")
	if userID == "" {
		fmt.Fprintln(os.Stderr, "CHAT_USER must be set")
		os.Exit(1)
	}
	userName := os.Getenv("CHAT_NAME")
	if userName == "" {
		userName = userID
	}

	client := chat.NewClient(baseURL, userID, userName)
	ctx := context.Background()
	cmd := os.Args[1]

	switch cmd {
	case "peers":
		peers, err := client.ListPeers(ctx)
		exitOnError(err)
		online := make(map[string]bool, len(peers.OnlineUserIDs))
		for _, id := range peers.OnlineUserIDs {
			online[id] = true
		}
		for _, u := range peers.Users {
			mark := " "
			if online[u.ID] {
				mark = "*"
			}
			unseen := ""
			if n := peers.UnseenMessages[u.ID]; n > 0 {
				unseen = fmt.Sprintf(" (%d unseen)", n)
			}
			fmt.Printf("%s %s  %s%s\n", mark, u.ID, u.FullName, unseen)
		}

	case "send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: chat send <peer_id> <text>")
			os.Exit(1)
		}
		msg, err := client.Send(ctx, os.Args[2], os.Args[3], "")
		exitOnError(err)
		fmt.Printf("Sent: %s\n", msg.ID)

	case "read":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chat read <peer_id>")
			os.Exit(1)
		}
		msgs, err := client.History(ctx, os.Args[2])
		exitOnError(err)
		for _, msg := range msgs {
			ts := msg.CreatedAt.Format("2006-01-02 15:04:05")
			text := crypto.Decrypt(msg.Text, msg.SenderID, msg.ReceiverID)
			if text == "" && msg.Image != "" {
				text = "\U0001F4F7 Image"
			}
			fmt.Printf("[%s] %s: %s\n", ts, msg.SenderID, text)
		}

	case "listen":
		sock, err := client.Dial(ctx)
		exitOnError(err)
		defer sock.Close()

		conv := chat.NewConversation(userID, func(messageID string) {
			_ = client.MarkSeen(ctx, messageID)
		})
		fmt.Println("listening (ctrl-c to stop)")
		err = sock.Listen(ctx, chat.Handlers{
			OnPresence: func(online []string) {
				fmt.Printf("online: %v\n", online)
			},
			OnMessage: func(msg chat.Message) {
				conv.HandlePush(msg)
				text := crypto.Decrypt(msg.Text, msg.SenderID, msg.ReceiverID)
				fmt.Printf("%s: %s\n", msg.SenderID, text)
			},
			OnCall: func(event string, data json.RawMessage) {
				fmt.Printf("call event %s: %s\n", event, data)
			},
		})
		exitOnError(err)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Usage: chat <command> [args]

Environment:
  CHAT_URL   server base URL (default http://localhost:5001)
  CHAT_USER  user ID (required)
  CHAT_NAME  display name (default: user ID)

Commands:
  peers              list users with presence and unseen counts
  send <peer> <msg>  send a text message
  read <peer>        print conversation history (marks it seen)
  listen             stream presence, message and call events`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
