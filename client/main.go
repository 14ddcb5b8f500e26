package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gramsetu/scheme-portal/pkg/model"
)

type loginResponse struct {
	Token string `json:"token"`
}

func login(apiAddr, userID, name, role string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID, "name": name, "role": role})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func post(apiAddr, token, path string, payload any) ([]byte, error) {
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", apiAddr+path, bytes.NewBuffer(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func main() {
	apiAddr := flag.String("api", "http://localhost:8080", "portal service address")
	userID := flag.String("user", "gp1", "user id")
	name := flag.String("name", "", "display name (defaults to user id)")
	role := flag.String("role", "gram_panchayat", "role (gram_panchayat or pacc)")
	counterpart := flag.String("to", "pacc1", "counterpart user id")
	projectID := flag.String("project", "projX", "project id scoping the conversation")
	flag.Parse()

	log.Printf("Logging in as %s (%s)...", *userID, *role)
	token, err := login(*apiAddr, *userID, *name, *role)
	if err != nil {
		log.Fatal("Login failed: ", err)
	}

	// Initiate or resume the conversation for this project.
	body, err := post(*apiAddr, token, "/conversations/initiate", map[string]string{
		"project_id":     *projectID,
		"counterpart_id": *counterpart,
	})
	if err != nil {
		log.Fatal("Initiate failed: ", err)
	}
	var summary model.ConversationSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		log.Fatal("Bad initiate response: ", err)
	}
	log.Printf("Conversation %s with %s about %q", summary.Key, summary.OtherName, summary.ProjectName)

	// Open the realtime connection and join the room.
	u, _ := url.Parse(*apiAddr)
	wsURL := url.URL{Scheme: "ws", Host: u.Host, Path: "/ws"}
	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), header)
	if err != nil {
		log.Fatal("dial: ", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(model.Event{Type: model.EventJoinConversation, ConversationKey: summary.Key}); err != nil {
		log.Fatal("join: ", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev model.Event
			if err := conn.ReadJSON(&ev); err != nil {
				log.Println("read:", err)
				return
			}
			switch ev.Type {
			case model.EventMessageReceived, model.EventNewMessage:
				if ev.Message != nil {
					fmt.Printf("\r%s: %s\n> ", ev.Message.SenderName, ev.Message.Body)
				}
			case model.EventUserTyping:
				fmt.Printf("\r%s is typing...\n> ", ev.UserName)
			case model.EventUserStoppedTyping:
				// quiet
			case model.EventUserStatusChange:
				fmt.Printf("\r[%s is %s]\n> ", ev.UserID, ev.Status)
			case model.EventProjectApproved, model.EventProjectRejected:
				if ev.Message != nil {
					fmt.Printf("\r[notice] %s\n> ", ev.Message.Body)
				}
			case model.EventError:
				fmt.Printf("\r[error] %s\n> ", ev.Error)
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := scanner.Text()
			switch {
			case text == "":
			case text == "/quit":
				close(interrupt)
				return
			case text == "/typing":
				conn.WriteJSON(model.Event{Type: model.EventTypingStart, ConversationKey: summary.Key})
			case text == "/read":
				if _, err := post(*apiAddr, token, "/conversations/read", map[string]string{"key": summary.Key}); err != nil {
					log.Println("read:", err)
				}
			default:
				_, err := post(*apiAddr, token, "/messages", map[string]string{
					"project_id":  *projectID,
					"receiver_id": *counterpart,
					"body":        text,
				})
				if err != nil {
					log.Println("send:", err)
				}
			}
			fmt.Print("> ")
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt")
			err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
