package handler

import (
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/Engineer-Box/gmdemo/internal/service"
)

type battleView struct {
	ID                      string              `json:"id"`
	ScheduledAt             time.Time           `json:"date"`
	PotAmount               int64               `json:"total_wager_amount"`
	WagerPerPerson          int64               `json:"wager_amount_per_person"`
	Lifecycle               domain.Lifecycle    `json:"lifecycle"`
	Status                  string              `json:"status"`
	CancellationRequestedBy domain.Side         `json:"cancellation_requested_by,omitempty"`
	InvitedTeamID           string              `json:"invited_team_id,omitempty"`
	Options                 domain.MatchOptions `json:"match_options"`
	CreatedAt               time.Time           `json:"created_at"`
}

func newBattleView(b domain.Battle) battleView {
	return battleView{
		ID:                      b.ID,
		ScheduledAt:             b.ScheduledAt,
		PotAmount:               b.PotAmount,
		WagerPerPerson:          b.WagerPerPerson(),
		Lifecycle:               b.Lifecycle,
		Status:                  string(b.Status.Kind),
		CancellationRequestedBy: b.Status.CancellationRequestedBy,
		InvitedTeamID:           b.InvitedTeamID,
		Options:                 b.Options,
		CreatedAt:               b.CreatedAt,
	}
}

type matchView struct {
	ID          string            `json:"id"`
	HomeTeamID  string            `json:"home_team,omitempty"`
	AwayTeamID  string            `json:"away_team,omitempty"`
	Status      string            `json:"status"`
	HomeVote    domain.Side       `json:"home_team_vote,omitempty"`
	AwayVote    domain.Side       `json:"away_team_vote,omitempty"`
	Result      domain.Side       `json:"result,omitempty"`
	DisputeID   string            `json:"dispute,omitempty"`
	LastVoteAt  *time.Time        `json:"last_vote_date,omitempty"`
	CompletedAt *time.Time        `json:"completed_date,omitempty"`
	Meta        *domain.MatchMeta `json:"match_meta,omitempty"`
}

func newMatchView(m domain.Match) matchView {
	return matchView{
		ID:          m.ID,
		HomeTeamID:  m.HomeTeamID,
		AwayTeamID:  m.AwayTeamID,
		Status:      string(m.Status.Kind),
		HomeVote:    m.Status.HomeVote,
		AwayVote:    m.Status.AwayVote,
		Result:      m.Status.Result,
		DisputeID:   m.Status.DisputeID,
		LastVoteAt:  m.LastVoteAt,
		CompletedAt: m.CompletedAt,
		Meta:        m.Meta,
	}
}

type disputeView struct {
	ID             string      `json:"id"`
	MatchID        string      `json:"match"`
	ResolvedWinner domain.Side `json:"resolved_winner,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
}

func newDisputeView(d domain.Dispute) disputeView {
	return disputeView{
		ID:             d.ID,
		MatchID:        d.MatchID,
		ResolvedWinner: d.ResolvedWinner,
		CreatedAt:      d.CreatedAt,
		ResolvedAt:     d.ResolvedAt,
	}
}

type battleDetailsView struct {
	Battle  battleView   `json:"battle"`
	Match   matchView    `json:"match"`
	Dispute *disputeView `json:"dispute,omitempty"`
}

func newBattleDetailsView(d service.BattleDetails) battleDetailsView {
	v := battleDetailsView{Battle: newBattleView(d.Battle), Match: newMatchView(d.Match)}
	if d.Dispute != nil {
		dv := newDisputeView(*d.Dispute)
		v.Dispute = &dv
	}
	return v
}

type notificationView struct {
	ID        string                  `json:"id"`
	Kind      domain.NotificationKind `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	BattleID  string                  `json:"battle,omitempty"`
	Read      bool                    `json:"seen"`
	CreatedAt time.Time               `json:"created_at"`
}
