package main

import (
	"encoding/json"
	"log"
)

// Message defines the structure of data exchanged via WebSocket
type Message struct {
	Type    string          `json:"type"`
	SheetID string          `json:"sheet_id"`
	Payload json.RawMessage `json:"payload"`
	User    string          `json:"user,omitempty"` // Username of the sender
}

// Hub maintains the set of active clients, one room per sheet, and routes
// chat and action traffic. Action semantics live in the engine; the hub only
// decodes, hands off to the sheet, and broadcasts the outcome.
type Hub struct {
	// Registered clients per sheet.
	rooms map[string]map[*Client]bool

	// Inbound messages from the clients.
	broadcast chan *Message

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	evaluator *Evaluator
}

func newHub(ev *Evaluator) *Hub {
	return &Hub{
		broadcast:  make(chan *Message),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		evaluator:  ev,
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			if h.rooms[client.sheetID] == nil {
				h.rooms[client.sheetID] = make(map[*Client]bool)
			}
			h.rooms[client.sheetID][client] = true
			log.Printf("Client registered to sheet %s: %s", client.sheetID, client.userID)
			h.sendInit(client)

		case client := <-h.unregister:
			if clients, ok := h.rooms[client.sheetID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.sheetID)
					}
					log.Printf("Client unregistered from sheet %s", client.sheetID)
				}
			}

		case message := <-h.broadcast:
			h.handleMessage(message)
		}
	}
}

// sendInit pushes the current evaluated sheet and the chat transcript to a
// freshly joined client.
func (h *Hub) sendInit(client *Client) {
	sheet := globalSheetManager.GetSheet(client.sheetID)
	if sheet == nil {
		return
	}
	init := struct {
		Sheet    *Sheet        `json:"sheet"`
		Rendered *Snapshot     `json:"rendered"`
		Chat     []ChatMessage `json:"chat"`
	}{
		Sheet:    sheet,
		Rendered: sheet.RenderedData(h.evaluator),
		Chat:     globalChatManager.HistoryFor(client.sheetID),
	}
	payload, err := json.Marshal(init)
	if err != nil {
		log.Printf("hub: marshal init: %v", err)
		return
	}
	client.send <- msgToBytes(&Message{
		Type:    "INIT",
		SheetID: client.sheetID,
		Payload: payload,
		User:    "system",
	})
}

func (h *Hub) handleMessage(message *Message) {
	sheet := globalSheetManager.GetSheet(message.SheetID)
	if sheet == nil {
		log.Printf("hub: message for unknown sheet %s", message.SheetID)
		return
	}

	switch message.Type {
	case "CHAT":
		var req struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(message.Payload, &req); err != nil {
			log.Printf("hub: unmarshal chat payload: %v", err)
			return
		}
		msg := globalChatManager.Append(message.SheetID, message.User, ChatRoleUser, req.Text)
		h.broadcastChat(message.SheetID, msg)

	case "ACTION":
		var action Action
		if err := json.Unmarshal(message.Payload, &action); err != nil {
			log.Printf("hub: unmarshal action payload: %v", err)
			return
		}
		result, rejection := sheet.ApplyAction(&action, message.User, h.evaluator)
		if rejection != nil {
			h.sendRejection(message, rejection)
			return
		}
		globalSheetManager.SaveSheet(sheet)
		globalActionAuditManager.Append(message.SheetID, message.User,
			NormalizeAction(&action).Type, result.Description)
		if result.Description != "" {
			msg := globalChatManager.Append(message.SheetID, "assistant", ChatRoleAssistant, result.Description)
			h.broadcastChat(message.SheetID, msg)
		}
		h.broadcastSheet(sheet, message.User)

	case "UNDO":
		if sheet.Undo(message.User) {
			globalSheetManager.SaveSheet(sheet)
			h.broadcastSheet(sheet, message.User)
		}

	case "REDO":
		if sheet.Redo(message.User) {
			globalSheetManager.SaveSheet(sheet)
			h.broadcastSheet(sheet, message.User)
		}

	default:
		log.Printf("hub: unknown message type %q", message.Type)
	}
}

// broadcastSheet sends the evaluated sheet state to everyone in the room.
func (h *Hub) broadcastSheet(sheet *Sheet, user string) {
	update := struct {
		Sheet    *Sheet    `json:"sheet"`
		Rendered *Snapshot `json:"rendered"`
	}{
		Sheet:    sheet,
		Rendered: sheet.RenderedData(h.evaluator),
	}
	payload, err := json.Marshal(update)
	if err != nil {
		log.Printf("hub: marshal sheet update: %v", err)
		return
	}
	h.broadcastToRoom(sheet.ID, &Message{
		Type:    "SHEET_UPDATED",
		SheetID: sheet.ID,
		Payload: payload,
		User:    user,
	})
}

func (h *Hub) broadcastChat(sheetID string, msg ChatMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("hub: marshal chat message: %v", err)
		return
	}
	h.broadcastToRoom(sheetID, &Message{
		Type:    "CHAT",
		SheetID: sheetID,
		Payload: payload,
		User:    msg.User,
	})
}

// sendRejection reports validation errors only to clients of the user that
// sent the action.
func (h *Hub) sendRejection(message *Message, vr *ValidationResult) {
	payload, err := json.Marshal(vr)
	if err != nil {
		log.Printf("hub: marshal rejection: %v", err)
		return
	}
	toSend := &Message{
		Type:    "ACTION_REJECTED",
		SheetID: message.SheetID,
		Payload: payload,
		User:    "system",
	}
	clients := h.rooms[message.SheetID]
	for client := range clients {
		if client.userID != message.User {
			continue
		}
		select {
		case client.send <- msgToBytes(toSend):
		default:
			close(client.send)
			delete(clients, client)
		}
	}
}

func (h *Hub) broadcastToRoom(sheetID string, msg *Message) {
	clients, ok := h.rooms[sheetID]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- msgToBytes(msg):
		default:
			close(client.send)
			delete(clients, client)
		}
	}
}

func msgToBytes(msg *Message) []byte {
	b, _ := json.Marshal(msg)
	return b
}
