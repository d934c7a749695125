package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sheet-level action audit entry, kept separately from the per-sheet audit
// log so the full action history survives sheet deletion.
type ActionAuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	SheetID   string    `json:"sheet_id"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// Manages per-sheet action audit logs persisted to DATA/action_audit.json
type ActionAuditManager struct {
	mu   sync.RWMutex
	logs map[string][]ActionAuditEntry // sheet id -> entries
}

var globalActionAuditManager = &ActionAuditManager{
	logs: make(map[string][]ActionAuditEntry),
}

func (am *ActionAuditManager) filePath() string {
	return filepath.Join(dataDir, "action_audit.json")
}

func (am *ActionAuditManager) Load() {
	am.mu.Lock()
	defer am.mu.Unlock()
	if err := ensureDataDir(); err != nil {
		log.Printf("action audit: ensure data dir: %v", err)
	}
	f, err := os.Open(am.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			am.logs = make(map[string][]ActionAuditEntry)
			return
		}
		log.Printf("action audit: open: %v", err)
		return
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	var m map[string][]ActionAuditEntry
	if err := dec.Decode(&m); err != nil {
		log.Printf("action audit: decode: %v", err)
		return
	}
	am.logs = m
}

func (am *ActionAuditManager) Save() {
	am.mu.RLock()
	defer am.mu.RUnlock()
	if err := ensureDataDir(); err != nil {
		log.Printf("action audit: ensure data dir: %v", err)
		return
	}
	f, err := os.Create(am.filePath())
	if err != nil {
		log.Printf("action audit: create: %v", err)
		return
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(am.logs); err != nil {
		log.Printf("action audit: encode: %v", err)
	}
}

func (am *ActionAuditManager) Append(sheetID, user, action, details string) {
	if sheetID == "" {
		return
	}
	entry := ActionAuditEntry{
		Timestamp: time.Now(),
		SheetID:   sheetID,
		User:      user,
		Action:    action,
		Details:   details,
	}
	am.mu.Lock()
	am.logs[sheetID] = append(am.logs[sheetID], entry)
	am.mu.Unlock()
	am.Save()
}

func (am *ActionAuditManager) List(sheetID string) []ActionAuditEntry {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return append([]ActionAuditEntry{}, am.logs[sheetID]...)
}
