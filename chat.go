package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Chat roles. Assistant messages carry the descriptions of applied actions
// so the transcript doubles as a readable change history.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"
)

type ChatMessage struct {
	Timestamp time.Time `json:"timestamp"`
	SheetID   string    `json:"sheet_id"`
	User      string    `json:"user"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
}

type ChatManager struct {
	mu       sync.RWMutex
	messages []ChatMessage
}

var globalChatManager = &ChatManager{}

func chatFilePath() string {
	return filepath.Join(dataDir, "chat.json")
}

func (cm *ChatManager) Load() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if err := ensureDataDir(); err != nil {
		log.Printf("chat: ensure data dir: %v", err)
		return
	}
	f, err := os.Open(chatFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			cm.messages = []ChatMessage{}
			return
		}
		log.Printf("chat: open file: %v", err)
		return
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	var msgs []ChatMessage
	if err := dec.Decode(&msgs); err != nil {
		log.Printf("chat: decode: %v", err)
		cm.messages = []ChatMessage{}
		return
	}
	cm.messages = msgs
}

func (cm *ChatManager) Save() {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if err := ensureDataDir(); err != nil {
		log.Printf("chat: ensure data dir: %v", err)
		return
	}
	f, err := os.Create(chatFilePath())
	if err != nil {
		log.Printf("chat: create file: %v", err)
		return
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cm.messages); err != nil {
		log.Printf("chat: encode: %v", err)
	}
}

func (cm *ChatManager) Append(sheetID, user, role, text string) ChatMessage {
	cm.mu.Lock()
	if role == "" {
		role = ChatRoleUser
	}
	msg := ChatMessage{Timestamp: time.Now(), SheetID: sheetID, User: user, Role: role, Text: text}
	cm.messages = append(cm.messages, msg)
	cm.mu.Unlock()
	go cm.Save()
	return msg
}

// HistoryFor returns the transcript of one sheet in chronological order.
func (cm *ChatManager) HistoryFor(sheetID string) []ChatMessage {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]ChatMessage, 0, len(cm.messages))
	for _, m := range cm.messages {
		if m.SheetID == sheetID {
			out = append(out, m)
		}
	}
	return out
}
