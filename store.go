package main

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const dataDir = "DATA"

// maxHistoryDepth bounds the undo/redo stacks per sheet.
const maxHistoryDepth = 50

// ensureDataDir creates the DATA directory if it doesn't exist
func ensureDataDir() error {
	return os.MkdirAll(dataDir, 0755)
}

func getSheetFilePath(sheetID string) string {
	return filepath.Join(dataDir, sheetID+".json")
}

type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Action    string    `json:"action"` // e.g., "EDIT_CELL", "CREATE_SHEET"
	Details   string    `json:"details"`
}

// Sheet is one stored dataset: its current snapshot plus the edit history
// that lets users walk back through applied actions. Undo and redo keep
// whole snapshots; mutations never modify a stored snapshot in place, so a
// stack entry stays valid forever.
type Sheet struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Owner    string       `json:"owner"`
	Data     *Snapshot    `json:"data"`
	AuditLog []AuditEntry `json:"audit_log"`

	undoStack []*Snapshot
	redoStack []*Snapshot
	mu        sync.RWMutex
}

// MarshalJSON implementation for Sheet to ensure thread-safe encoding
func (s *Sheet) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type Alias Sheet
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(s),
	})
}

func (s *Sheet) addAuditLocked(user, action, details string) {
	s.AuditLog = append(s.AuditLog, AuditEntry{
		Timestamp: time.Now(),
		User:      user,
		Action:    action,
		Details:   details,
	})
}

// pushUndoLocked records the pre-mutation snapshot and invalidates the redo
// stack, since the timeline has forked.
func (s *Sheet) pushUndoLocked(snap *Snapshot) {
	s.undoStack = append(s.undoStack, snap)
	if len(s.undoStack) > maxHistoryDepth {
		s.undoStack = s.undoStack[1:]
	}
	s.redoStack = nil
}

// ApplyAction validates and commits one action against the sheet. The
// returned result carries the description for the chat transcript; on
// validation failure the sheet is untouched and the validation errors come
// back to the caller.
func (s *Sheet) ApplyAction(action *Action, user string, ev *Evaluator) (ApplyResult, *ValidationResult) {
	vr := ValidateAction(action)
	if !vr.IsValid {
		s.mu.Lock()
		s.addAuditLocked(user, "ACTION_REJECTED", joinErrors(vr.Errors))
		s.mu.Unlock()
		return ApplyResult{}, &vr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.Data
	result := ApplyAction(s.Data, action, ev)
	if result.Data != before {
		s.pushUndoLocked(before)
		s.Data = result.Data
	}
	s.addAuditLocked(user, NormalizeAction(action).Type, result.Description)
	return result, nil
}

// ApplyChangeList commits a batch of pending changes in one history step.
func (s *Sheet) ApplyChangeList(changes []DataChange, user string, ev *Evaluator) ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.Data
	result := ApplyChanges(s.Data, changes, ev)
	if result.Data != before {
		s.pushUndoLocked(before)
		s.Data = result.Data
	}
	s.addAuditLocked(user, "APPLY_CHANGES", result.Description)
	return result
}

// Undo restores the most recent pre-action snapshot.
func (s *Sheet) Undo(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undoStack) == 0 {
		return false
	}
	last := s.undoStack[len(s.undoStack)-1]
	s.undoStack = s.undoStack[:len(s.undoStack)-1]
	s.redoStack = append(s.redoStack, s.Data)
	s.Data = last
	s.addAuditLocked(user, "UNDO", "Restored previous version")
	return true
}

// Redo re-applies the most recently undone snapshot.
func (s *Sheet) Redo(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.redoStack) == 0 {
		return false
	}
	last := s.redoStack[len(s.redoStack)-1]
	s.redoStack = s.redoStack[:len(s.redoStack)-1]
	s.undoStack = append(s.undoStack, s.Data)
	s.Data = last
	s.addAuditLocked(user, "REDO", "Re-applied undone version")
	return true
}

// RenderedData returns the evaluated view of the sheet: formula cells show
// their computed values.
func (s *Sheet) RenderedData(ev *Evaluator) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Data.Rendered(ev)
}

type SheetManager struct {
	sheets map[string]*Sheet
	mu     sync.RWMutex
}

var globalSheetManager = &SheetManager{
	sheets: make(map[string]*Sheet),
}

func generateID() string {
	return time.Now().Format("20060102150405.000000000")
}

func (sm *SheetManager) CreateSheet(name, owner string) *Sheet {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	id := generateID()
	sheet := &Sheet{
		ID:       id,
		Name:     name,
		Owner:    owner,
		Data:     NewSnapshot(nil),
		AuditLog: []AuditEntry{},
	}
	sheet.addAuditLocked(owner, "CREATE_SHEET", "Sheet created: "+name)

	sm.sheets[id] = sheet
	sm.saveSheetLocked(sheet)
	globalActionAuditManager.Append(id, owner, "CREATE_SHEET", name)
	return sheet
}

// ImportSheet registers a pre-built snapshot (from a workbook upload) as a
// new sheet.
func (sm *SheetManager) ImportSheet(name, owner string, data *Snapshot) *Sheet {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	id := generateID()
	sheet := &Sheet{
		ID:       id,
		Name:     name,
		Owner:    owner,
		Data:     data,
		AuditLog: []AuditEntry{},
	}
	sheet.addAuditLocked(owner, "IMPORT_SHEET", "Imported workbook: "+name)

	sm.sheets[id] = sheet
	sm.saveSheetLocked(sheet)
	return sheet
}

func (sm *SheetManager) GetSheet(id string) *Sheet {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sheets[id]
}

func (sm *SheetManager) ListSheets() []*Sheet {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	list := make([]*Sheet, 0, len(sm.sheets))
	for _, sheet := range sm.sheets {
		list = append(list, sheet)
	}
	return list
}

func (sm *SheetManager) RenameSheet(id, newName, user string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sheet, ok := sm.sheets[id]
	if !ok {
		return false
	}
	sheet.mu.Lock()
	old := sheet.Name
	sheet.Name = newName
	sheet.addAuditLocked(user, "RENAME_SHEET", "Renamed from "+old+" to "+newName)
	sheet.mu.Unlock()
	sm.saveSheetLocked(sheet)
	return true
}

func (sm *SheetManager) DeleteSheet(id string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.sheets[id]; !ok {
		return false
	}
	delete(sm.sheets, id)
	if err := os.Remove(getSheetFilePath(id)); err != nil && !os.IsNotExist(err) {
		log.Printf("sheets: remove file for %s: %v", id, err)
	}
	return true
}

// Helper to save a single sheet without locking the manager (caller must hold lock)
func (sm *SheetManager) saveSheetLocked(sheet *Sheet) {
	if err := ensureDataDir(); err != nil {
		log.Printf("sheets: ensure data dir: %v", err)
		return
	}
	file, err := os.Create(getSheetFilePath(sheet.ID))
	if err != nil {
		log.Printf("sheets: save %s: %v", sheet.ID, err)
		return
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(sheet); err != nil {
		log.Printf("sheets: encode %s: %v", sheet.ID, err)
	}
}

func (sm *SheetManager) SaveSheet(sheet *Sheet) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.saveSheetLocked(sheet)
}

func (sm *SheetManager) Save() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, sheet := range sm.sheets {
		sm.saveSheetLocked(sheet)
	}
}

func (sm *SheetManager) Load() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return
	}
	files, err := filepath.Glob(filepath.Join(dataDir, "*.json"))
	if err != nil {
		log.Printf("sheets: glob: %v", err)
		return
	}
	loaded := 0
	for _, path := range files {
		base := filepath.Base(path)
		switch base {
		case "users.json", "chat.json", "action_audit.json":
			continue
		}
		file, err := os.Open(path)
		if err != nil {
			log.Printf("sheets: open %s: %v", path, err)
			continue
		}
		var sheet Sheet
		err = json.NewDecoder(file).Decode(&sheet)
		file.Close()
		if err != nil {
			log.Printf("sheets: decode %s: %v", path, err)
			continue
		}
		if sheet.ID == "" {
			continue
		}
		if sheet.Data == nil {
			sheet.Data = NewSnapshot(nil)
		}
		sm.sheets[sheet.ID] = &sheet
		loaded++
	}
	log.Printf("Loaded %d sheets from disk", loaded)
}

func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}

var errSheetNotFound = errors.New("sheet not found")
