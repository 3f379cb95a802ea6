package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/Engineer-Box/gmdemo/internal/service"
)

// BattleService is what the battle routes need from the lifecycle service.
type BattleService interface {
	GetBattle(ctx context.Context, battleID string) (service.BattleDetails, error)
	CreateBattle(ctx context.Context, caller domain.Profile, captainTeamProfileID string, in service.CreateBattleInput) (domain.Battle, error)
	JoinBattle(ctx context.Context, caller domain.Profile, battleID string, in service.JoinBattleInput) (domain.Battle, error)
	CancelBattle(ctx context.Context, caller domain.Profile, battleID string) (service.CancelOutcome, error)
	WithdrawCancellationRequest(ctx context.Context, caller domain.Profile, battleID string) error
	DeclineInvitation(ctx context.Context, caller domain.Profile, battleID string) error
}

// ScoreService is what the reporting and dispute routes need.
type ScoreService interface {
	ReportScore(ctx context.Context, caller domain.Profile, battleID string, side, claimedWinner domain.Side) (service.ReportResult, error)
	OpenDispute(ctx context.Context, caller domain.Profile, matchID string) (domain.Dispute, error)
}

// ReceiptSource looks up archived settlement receipts.
type ReceiptSource interface {
	Get(ctx context.Context, battleID string) (domain.SettlementReceipt, error)
}

// BattleHandler serves the battle lifecycle routes.
type BattleHandler struct {
	battles  BattleService
	scores   ScoreService
	receipts ReceiptSource
	logger   *slog.Logger
}

// NewBattleHandler creates a BattleHandler. receipts may be nil when no
// archive is configured.
func NewBattleHandler(battles BattleService, scores ScoreService, receipts ReceiptSource, logger *slog.Logger) *BattleHandler {
	return &BattleHandler{battles: battles, scores: scores, receipts: receipts, logger: logger}
}

// attributeInput accepts either a single option id or a list of them.
type attributeInput struct {
	AttributeID string          `json:"attribute_id"`
	Value       json.RawMessage `json:"value"`
}

func (a attributeInput) selection() (domain.AttributeSelection, error) {
	sel := domain.AttributeSelection{AttributeID: a.AttributeID}
	raw := bytes.TrimSpace(a.Value)
	if len(raw) > 0 && raw[0] == '[' {
		sel.List = true
		if err := json.Unmarshal(raw, &sel.Values); err != nil {
			return sel, fmt.Errorf("%w: attribute %s: %v", domain.ErrInvalidInput, a.AttributeID, err)
		}
		return sel, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return sel, fmt.Errorf("%w: attribute %s: %v", domain.ErrInvalidInput, a.AttributeID, err)
	}
	sel.Values = []string{v}
	return sel, nil
}

type createBattleRequest struct {
	WagerPerPerson int64     `json:"wager_amount_per_person"`
	InvitedTeamID  string    `json:"invited_team_id"`
	TeamSelection  []string  `json:"team_selection"`
	Date           time.Time `json:"date"`
	MatchOptions   struct {
		CustomAttributeInputs []attributeInput `json:"custom_attribute_inputs"`
		Series                int              `json:"series"`
		Region                domain.Region    `json:"region"`
	} `json:"match_options"`
}

func (req createBattleRequest) input() (service.CreateBattleInput, error) {
	in := service.CreateBattleInput{
		WagerPerPerson: req.WagerPerPerson,
		InvitedTeamID:  req.InvitedTeamID,
		TeamProfileIDs: req.TeamSelection,
		ScheduledAt:    req.Date,
		Series:         req.MatchOptions.Series,
		Region:         req.MatchOptions.Region,
	}
	for _, a := range req.MatchOptions.CustomAttributeInputs {
		sel, err := a.selection()
		if err != nil {
			return service.CreateBattleInput{}, err
		}
		in.CustomAttributes = append(in.CustomAttributes, sel)
	}
	return in, nil
}

// CreateBattle opens a challenge fielded by the caller's team.
// POST /api/battles/create/{captainTeamProfileId}
func (h *BattleHandler) CreateBattle(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req createBattleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "create battle", err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeServiceError(w, r, h.logger, "create battle", err)
		return
	}

	battle, err := h.battles.CreateBattle(r.Context(), p, r.PathValue("captainTeamProfileId"), in)
	if err != nil {
		writeServiceError(w, r, h.logger, "create battle", err)
		return
	}
	writeJSON(w, http.StatusCreated, newBattleView(battle))
}

type joinBattleRequest struct {
	TeamProfileID string   `json:"team_profile_id"`
	TeamSelection []string `json:"team_selection"`
}

// JoinBattle fields the caller's team as the away side.
// POST /api/battles/join/{battleId}
func (h *BattleHandler) JoinBattle(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req joinBattleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "join battle", err)
		return
	}

	battle, err := h.battles.JoinBattle(r.Context(), p, r.PathValue("battleId"), service.JoinBattleInput{
		CaptainTeamProfileID: req.TeamProfileID,
		TeamProfileIDs:       req.TeamSelection,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "join battle", err)
		return
	}
	writeJSON(w, http.StatusOK, newBattleView(battle))
}

// CancelBattle cancels or requests cancellation.
// GET /api/battles/cancel/{battleId}
func (h *BattleHandler) CancelBattle(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	battleID := r.PathValue("battleId")
	outcome, err := h.battles.CancelBattle(r.Context(), p, battleID)
	if err != nil {
		writeServiceError(w, r, h.logger, "cancel battle", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"battle": battleID, "outcome": string(outcome)})
}

// WithdrawCancellationRequest retracts the caller side's pending request.
// GET /api/battles/withdraw-cancellation-request/{battleId}
func (h *BattleHandler) WithdrawCancellationRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	battleID := r.PathValue("battleId")
	if err := h.battles.WithdrawCancellationRequest(r.Context(), p, battleID); err != nil {
		writeServiceError(w, r, h.logger, "withdraw cancellation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"battle": battleID, "outcome": "withdrawn"})
}

// DeclineInvitation turns down a direct challenge.
// GET /api/battles/decline-invitation/{battleId}
func (h *BattleHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	battleID := r.PathValue("battleId")
	if err := h.battles.DeclineInvitation(r.Context(), p, battleID); err != nil {
		writeServiceError(w, r, h.logger, "decline invitation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"battle": battleID, "outcome": "declined"})
}

type reportScoreRequest struct {
	ReportingSide       string `json:"reporting_side"`
	ReportedWinnersSide string `json:"reported_winners_side"`
}

type reportScoreResponse struct {
	Match   matchView                 `json:"match"`
	Outcome string                    `json:"outcome"`
	Dispute *disputeView              `json:"dispute,omitempty"`
	Receipt *domain.SettlementReceipt `json:"settlement,omitempty"`
}

var voteOutcomeNames = map[domain.VoteOutcome]string{
	domain.VotePending:   "pending",
	domain.VoteAgreed:    "agreed",
	domain.VoteDisagreed: "disagreed",
}

// ReportScore records a captain's claimed winner.
// POST /api/battles/report-score/{battleId}
func (h *BattleHandler) ReportScore(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req reportScoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "report score", err)
		return
	}
	side, err := domain.ParseSide(req.ReportingSide)
	if err != nil {
		writeServiceError(w, r, h.logger, "report score", err)
		return
	}
	winner, err := domain.ParseSide(req.ReportedWinnersSide)
	if err != nil {
		writeServiceError(w, r, h.logger, "report score", err)
		return
	}

	res, err := h.scores.ReportScore(r.Context(), p, r.PathValue("battleId"), side, winner)
	if err != nil {
		writeServiceError(w, r, h.logger, "report score", err)
		return
	}

	resp := reportScoreResponse{
		Match:   newMatchView(res.Match),
		Outcome: voteOutcomeNames[res.Outcome],
		Receipt: res.Receipt,
	}
	if res.Dispute != nil {
		dv := newDisputeView(*res.Dispute)
		resp.Dispute = &dv
	}
	writeJSON(w, http.StatusOK, resp)
}

// OpenDispute escalates a match to arbitration.
// GET /api/matches/open-dispute/{id}
func (h *BattleHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	d, err := h.scores.OpenDispute(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "open dispute", err)
		return
	}
	writeJSON(w, http.StatusOK, newDisputeView(d))
}

// GetBattle returns a battle with its match and dispute.
// GET /api/battles/{battleId}
func (h *BattleHandler) GetBattle(w http.ResponseWriter, r *http.Request) {
	details, err := h.battles.GetBattle(r.Context(), r.PathValue("battleId"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get battle", err)
		return
	}
	writeJSON(w, http.StatusOK, newBattleDetailsView(details))
}

// GetReceipt returns the archived settlement receipt of a battle.
// GET /api/receipts/{battleId}
func (h *BattleHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	if h.receipts == nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	receipt, err := h.receipts.Get(r.Context(), r.PathValue("battleId"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
