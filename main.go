package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
)

var addr = flag.String("addr", ":8080", "http service address")

func main() {
	flag.Parse()

	evaluator := NewEvaluator()

	hub := newHub(evaluator)
	go hub.run()

	globalSheetManager.Load()
	globalUserManager.Load()
	globalChatManager.Load()
	globalActionAuditManager.Load()

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})

	http.HandleFunc("/api/register", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "POST, OPTIONS"); done {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" {
			http.Error(w, "Username and password required", http.StatusBadRequest)
			return
		}
		if err := globalUserManager.Register(req.Username, req.Password); err != nil {
			http.Error(w, err.Error(), http.StatusConflict) // User exists
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	http.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "POST, OPTIONS"); done {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		token, err := globalUserManager.Login(req.Username, req.Password)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token":    token,
			"username": req.Username,
		})
	})

	http.HandleFunc("/api/logout", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "POST, OPTIONS"); done {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token := r.Header.Get("Authorization"); token != "" {
			globalUserManager.Logout(token)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"message": "Logged out successfully"})
	})

	http.HandleFunc("/api/validate", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "GET, OPTIONS"); done {
			return
		}
		token := r.Header.Get("Authorization")
		if token == "" {
			http.Error(w, "No token provided", http.StatusUnauthorized)
			return
		}
		username, err := globalUserManager.ValidateToken(token)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"username": username,
			"valid":    "true",
		})
	})

	http.HandleFunc("/api/sheets", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "GET, POST, DELETE, PUT, OPTIONS"); done {
			return
		}
		username, ok := authenticate(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case "GET":
			json.NewEncoder(w).Encode(globalSheetManager.ListSheets())

		case "POST":
			var req struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			sheet := globalSheetManager.CreateSheet(req.Name, username)
			json.NewEncoder(w).Encode(sheet)

		case "PUT":
			var req struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.ID == "" || req.Name == "" {
				http.Error(w, "Sheet ID and name required", http.StatusBadRequest)
				return
			}
			if !globalSheetManager.RenameSheet(req.ID, req.Name, username) {
				http.Error(w, errSheetNotFound.Error(), http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"message": "Sheet renamed successfully"})

		case "DELETE":
			id := r.URL.Query().Get("id")
			if id == "" {
				http.Error(w, "Sheet ID required", http.StatusBadRequest)
				return
			}
			if !globalSheetManager.DeleteSheet(id) {
				http.Error(w, errSheetNotFound.Error(), http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"message": "Sheet deleted"})
		}
	})

	// Validate-then-apply an action over HTTP, mirroring the websocket ACTION
	// path for clients that are not connected live.
	http.HandleFunc("/api/action", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "POST, OPTIONS"); done {
			return
		}
		username, ok := authenticate(w, r)
		if !ok {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			SheetID string  `json:"sheet_id"`
			Action  *Action `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sheet := globalSheetManager.GetSheet(req.SheetID)
		if sheet == nil {
			http.Error(w, errSheetNotFound.Error(), http.StatusNotFound)
			return
		}

		result, rejection := sheet.ApplyAction(req.Action, username, evaluator)
		w.Header().Set("Content-Type", "application/json")
		if rejection != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(rejection)
			return
		}
		globalSheetManager.SaveSheet(sheet)
		globalActionAuditManager.Append(req.SheetID, username,
			NormalizeAction(req.Action).Type, result.Description)
		if result.Description != "" {
			globalChatManager.Append(req.SheetID, "assistant", ChatRoleAssistant, result.Description)
		}
		json.NewEncoder(w).Encode(result)
	})

	// Dry-run validation for a proposed action.
	http.HandleFunc("/api/action/validate", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "POST, OPTIONS"); done {
			return
		}
		if _, ok := authenticate(w, r); !ok {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var action Action
		if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ValidateAction(&action))
	})

	http.HandleFunc("/api/audit", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "GET, OPTIONS"); done {
			return
		}
		if _, ok := authenticate(w, r); !ok {
			return
		}
		id := r.URL.Query().Get("sheet")
		if id == "" {
			http.Error(w, "Sheet ID required", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(globalActionAuditManager.List(id))
	})

	http.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "GET, OPTIONS"); done {
			return
		}
		if _, ok := authenticate(w, r); !ok {
			return
		}
		id := r.URL.Query().Get("sheet")
		if id == "" {
			http.Error(w, "Sheet ID required", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(globalChatManager.HistoryFor(id))
	})

	http.HandleFunc("/api/sheets/export", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "GET, OPTIONS"); done {
			return
		}
		if _, ok := authenticate(w, r); !ok {
			return
		}
		id := r.URL.Query().Get("id")
		sheet := globalSheetManager.GetSheet(id)
		if sheet == nil {
			http.Error(w, errSheetNotFound.Error(), http.StatusNotFound)
			return
		}
		f, err := ExportWorkbook(sheet, evaluator)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+sheet.Name+`.xlsx"`)
		if err := f.Write(w); err != nil {
			log.Printf("export: write workbook: %v", err)
		}
	})

	http.HandleFunc("/api/sheets/import", func(w http.ResponseWriter, r *http.Request) {
		if done := corsPreflight(w, r, "POST, OPTIONS"); done {
			return
		}
		username, ok := authenticate(w, r)
		if !ok {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Workbook file required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		snap, err := ImportWorkbook(file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name := r.FormValue("name")
		if name == "" {
			name = header.Filename
		}
		sheet := globalSheetManager.ImportSheet(name, username, snap)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sheet)
	})

	// Simple health check
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	log.Printf("Server started on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

// corsPreflight sets the CORS headers every API endpoint shares and answers
// OPTIONS requests. Returns true when the request is fully handled.
func corsPreflight(w http.ResponseWriter, r *http.Request, methods string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}

// authenticate resolves the Authorization token to a username, writing the
// error response itself on failure.
func authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Header.Get("Authorization")
	username, err := globalUserManager.ValidateToken(token)
	if err != nil {
		http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
		return "", false
	}
	return username, true
}
