package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// RankingHandler serves leaderboard standings.
type RankingHandler struct {
	rankings domain.RankingProjector
	logger   *slog.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(rankings domain.RankingProjector, logger *slog.Logger) *RankingHandler {
	return &RankingHandler{rankings: rankings, logger: logger}
}

type standingView struct {
	Subject   domain.RankingSubject `json:"subject"`
	SubjectID string                `json:"subject_id"`
	GameID    string                `json:"game_id,omitempty"`
	Year      int                   `json:"year,omitempty"`
	Month     int                   `json:"month,omitempty"`
	Rank      int                   `json:"rank"`
	XP        int64                 `json:"xp"`
	Earnings  int64                 `json:"earnings"`
	Won       int64                 `json:"won"`
	Lost      int64                 `json:"lost"`
}

// Standing returns one subject's position on a leaderboard.
// GET /api/rankings/{kind}/{subjectId}?game=&year=&month=
func (h *RankingHandler) Standing(w http.ResponseWriter, r *http.Request) {
	subject := domain.RankingSubject(r.PathValue("kind"))
	if !subject.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	q := r.URL.Query()
	gameID := q.Get("game")
	if subject != domain.RankProfile && gameID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	period, ok := parsePeriod(q.Get("year"), q.Get("month"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	st, err := h.rankings.Standing(r.Context(), subject, r.PathValue("subjectId"), gameID, period)
	if err != nil {
		writeServiceError(w, r, h.logger, "ranking standing", err)
		return
	}
	writeJSON(w, http.StatusOK, standingView{
		Subject:   subject,
		SubjectID: st.SubjectID,
		GameID:    gameID,
		Year:      period.Year,
		Month:     period.Month,
		Rank:      st.Rank,
		XP:        st.XP,
		Earnings:  st.Earnings,
		Won:       st.Won,
		Lost:      st.Lost,
	})
}

// parsePeriod reads an optional year and month. A month needs a year.
func parsePeriod(year, month string) (domain.RankingPeriod, bool) {
	var p domain.RankingPeriod
	if year == "" {
		return p, month == ""
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 2000 || y > 9999 {
		return p, false
	}
	p.Year = y
	if month == "" {
		return p, true
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return p, false
	}
	p.Month = m
	return p, true
}
