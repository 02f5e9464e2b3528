package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"study-battle/internal/app"
)

// LeaderboardHandler serves GET /leaderboard?group=X&limit=N as ranked JSON,
// backing the shareable group link.
func LeaderboardHandler(service *app.QuizService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := service.Leaderboard(r.Context(), r.URL.Query().Get("group"), limit)
		if err != nil {
			http.Error(w, "leaderboard unavailable", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}
}
