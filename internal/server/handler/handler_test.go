package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/Engineer-Box/gmdemo/internal/server/middleware"
	"github.com/Engineer-Box/gmdemo/internal/service"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeBattles struct {
	created   service.CreateBattleInput
	captain   string
	joined    service.JoinBattleInput
	cancelOut service.CancelOutcome
	err       error
	details   service.BattleDetails
}

func (f *fakeBattles) GetBattle(_ context.Context, id string) (service.BattleDetails, error) {
	if f.err != nil {
		return service.BattleDetails{}, f.err
	}
	return f.details, nil
}

func (f *fakeBattles) CreateBattle(_ context.Context, _ domain.Profile, captain string, in service.CreateBattleInput) (domain.Battle, error) {
	f.captain, f.created = captain, in
	if f.err != nil {
		return domain.Battle{}, f.err
	}
	return domain.Battle{ID: "b1", PotAmount: in.WagerPerPerson * 2, Options: domain.MatchOptions{TeamSize: 1}, Lifecycle: domain.LifecycleActive}, nil
}

func (f *fakeBattles) JoinBattle(_ context.Context, _ domain.Profile, id string, in service.JoinBattleInput) (domain.Battle, error) {
	f.joined = in
	return domain.Battle{ID: id}, f.err
}

func (f *fakeBattles) CancelBattle(context.Context, domain.Profile, string) (service.CancelOutcome, error) {
	return f.cancelOut, f.err
}

func (f *fakeBattles) WithdrawCancellationRequest(context.Context, domain.Profile, string) error {
	return f.err
}

func (f *fakeBattles) DeclineInvitation(context.Context, domain.Profile, string) error { return f.err }

type fakeScores struct {
	side, winner domain.Side
	result       service.ReportResult
	err          error
}

func (f *fakeScores) ReportScore(_ context.Context, _ domain.Profile, _ string, side, winner domain.Side) (service.ReportResult, error) {
	f.side, f.winner = side, winner
	return f.result, f.err
}

func (f *fakeScores) OpenDispute(_ context.Context, _ domain.Profile, matchID string) (domain.Dispute, error) {
	return domain.Dispute{ID: "d1", MatchID: matchID}, f.err
}

func (f *fakeScores) ResolveDispute(_ context.Context, id string, winner domain.Side) (domain.SettlementReceipt, error) {
	f.winner = winner
	return domain.SettlementReceipt{BattleID: "b1", Winner: winner}, f.err
}

// authed builds a request carrying an authenticated caller.
func authed(method, target, body string, pathValues ...string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(pathValues); i += 2 {
		r.SetPathValue(pathValues[i], pathValues[i+1])
	}
	return r.WithContext(middleware.WithCaller(r.Context(), domain.Profile{ID: "p1"}))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestCreateBattleDecodesAttributeInputs(t *testing.T) {
	battles := &fakeBattles{}
	h := NewBattleHandler(battles, &fakeScores{}, nil, discard())

	body := `{
		"wager_amount_per_person": 500,
		"team_selection": ["tp1"],
		"date": "2030-01-02T15:04:05Z",
		"match_options": {
			"series": 3,
			"region": "eu",
			"custom_attribute_inputs": [
				{"attribute_id": "game_mode", "value": "ctf"},
				{"attribute_id": "rules", "value": ["hardcore", "no_snipers"]}
			]
		}
	}`
	rec := httptest.NewRecorder()
	h.CreateBattle(rec, authed("POST", "/api/battles/create/tp1", body, "captainTeamProfileId", "tp1"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	in := battles.created
	if battles.captain != "tp1" || in.WagerPerPerson != 500 || in.Series != 3 || in.Region != domain.RegionEurope {
		t.Errorf("input = %+v captain=%s", in, battles.captain)
	}
	if !in.ScheduledAt.Equal(time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC)) {
		t.Errorf("scheduled = %v", in.ScheduledAt)
	}
	if len(in.CustomAttributes) != 2 {
		t.Fatalf("attributes = %+v", in.CustomAttributes)
	}
	if a := in.CustomAttributes[0]; a.List || len(a.Values) != 1 || a.Values[0] != "ctf" {
		t.Errorf("single attribute = %+v", a)
	}
	if a := in.CustomAttributes[1]; !a.List || len(a.Values) != 2 {
		t.Errorf("list attribute = %+v", a)
	}

	var view battleView
	decode(t, rec, &view)
	if view.ID != "b1" || view.PotAmount != 1000 || view.WagerPerPerson != 500 {
		t.Errorf("view = %+v", view)
	}
}

func TestCreateBattleRejects(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"no caller", httptest.NewRequest("POST", "/", strings.NewReader(`{}`)), http.StatusUnauthorized},
		{"unknown field", authed("POST", "/", `{"wager":1}`), http.StatusBadRequest},
		{"bad attribute value", authed("POST", "/", `{"match_options":{"custom_attribute_inputs":[{"attribute_id":"x","value":3}]}}`), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewBattleHandler(&fakeBattles{}, &fakeScores{}, nil, discard()).CreateBattle(rec, tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestServiceErrorStatuses(t *testing.T) {
	tests := []struct {
		err  error
		code int
		name string
	}{
		{fmt.Errorf("x: %w", domain.ErrBattleUnavailable), http.StatusConflict, "battle_unavailable"},
		{domain.ErrSquadNotEligible, http.StatusBadRequest, "squad_not_eligible"},
		{domain.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
		{domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBattleHandler(&fakeBattles{err: tt.err}, &fakeScores{}, nil, discard())
			rec := httptest.NewRecorder()
			h.JoinBattle(rec, authed("POST", "/", `{"team_profile_id":"tp2","team_selection":["tp2"]}`, "battleId", "b1"))
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["error"] != tt.name {
				t.Errorf("error = %q, want %q", body["error"], tt.name)
			}
		})
	}
}

func TestCancelBattleReportsOutcome(t *testing.T) {
	h := NewBattleHandler(&fakeBattles{cancelOut: service.CancelRequested}, &fakeScores{}, nil, discard())
	rec := httptest.NewRecorder()
	h.CancelBattle(rec, authed("GET", "/", "", "battleId", "b1"))

	var body map[string]string
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || body["outcome"] != string(service.CancelRequested) || body["battle"] != "b1" {
		t.Errorf("status=%d body=%v", rec.Code, body)
	}
}

func TestReportScore(t *testing.T) {
	scores := &fakeScores{result: service.ReportResult{
		Match:   domain.Match{ID: "m1", Status: domain.MatchStatus{Kind: domain.MatchHomeVoted, HomeVote: domain.SideHome}},
		Outcome: domain.VotePending,
	}}
	h := NewBattleHandler(&fakeBattles{}, scores, nil, discard())

	rec := httptest.NewRecorder()
	h.ReportScore(rec, authed("POST", "/", `{"reporting_side":"home","reported_winners_side":"home"}`, "battleId", "b1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if scores.side != domain.SideHome || scores.winner != domain.SideHome {
		t.Errorf("sides = %s/%s", scores.side, scores.winner)
	}
	var resp reportScoreResponse
	decode(t, rec, &resp)
	if resp.Outcome != "pending" || resp.Match.HomeVote != domain.SideHome {
		t.Errorf("resp = %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.ReportScore(rec, authed("POST", "/", `{"reporting_side":"left","reported_winners_side":"home"}`, "battleId", "b1"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad side status = %d", rec.Code)
	}
}

func TestGetBattleIncludesDispute(t *testing.T) {
	battles := &fakeBattles{details: service.BattleDetails{
		Battle:  domain.Battle{ID: "b1", Options: domain.MatchOptions{TeamSize: 2}, PotAmount: 400},
		Match:   domain.Match{ID: "m1", Status: domain.MatchStatus{Kind: domain.MatchDisputed, DisputeID: "d1"}},
		Dispute: &domain.Dispute{ID: "d1", MatchID: "m1"},
	}}
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	r.SetPathValue("battleId", "b1")
	NewBattleHandler(battles, &fakeScores{}, nil, discard()).GetBattle(rec, r)

	var view battleDetailsView
	decode(t, rec, &view)
	if view.Battle.WagerPerPerson != 100 || view.Match.DisputeID != "d1" || view.Dispute == nil || view.Dispute.ID != "d1" {
		t.Errorf("view = %+v", view)
	}
}

type fakeReceipts map[string]domain.SettlementReceipt

func (f fakeReceipts) Get(_ context.Context, id string) (domain.SettlementReceipt, error) {
	r, ok := f[id]
	if !ok {
		return domain.SettlementReceipt{}, domain.ErrNotFound
	}
	return r, nil
}

func TestGetReceipt(t *testing.T) {
	h := NewBattleHandler(&fakeBattles{}, &fakeScores{}, fakeReceipts{"b1": {BattleID: "b1", Pot: 200}}, discard())
	for id, want := range map[string]int{"b1": http.StatusOK, "b2": http.StatusNotFound} {
		r := httptest.NewRequest("GET", "/", nil)
		r.SetPathValue("battleId", id)
		rec := httptest.NewRecorder()
		h.GetReceipt(rec, r)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", id, rec.Code, want)
		}
	}
}

func TestResolveDispute(t *testing.T) {
	scores := &fakeScores{}
	h := NewAdminHandler(scores, nil, discard())

	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"winner":"away"}`))
	r.SetPathValue("id", "d1")
	rec := httptest.NewRecorder()
	h.ResolveDispute(rec, r)
	if rec.Code != http.StatusOK || scores.winner != domain.SideAway {
		t.Fatalf("status=%d winner=%s", rec.Code, scores.winner)
	}

	scores.err = domain.ErrIllegalTransition
	rec = httptest.NewRecorder()
	h.ResolveDispute(rec, httptest.NewRequest("POST", "/", strings.NewReader(`{"winner":"home"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("resolved twice status = %d", rec.Code)
	}
}

type fixedFees int64

func (f fixedFees) Add(context.Context, int64) (int64, error) { return int64(f), nil }
func (f fixedFees) Total(context.Context) (int64, error)      { return int64(f), nil }

func TestFees(t *testing.T) {
	rec := httptest.NewRecorder()
	NewAdminHandler(&fakeScores{}, fixedFees(250), discard()).Fees(rec, httptest.NewRequest("GET", "/", nil))
	var body map[string]int64
	decode(t, rec, &body)
	if body["collected"] != 250 {
		t.Errorf("body = %v", body)
	}
}

type fakeRankings struct {
	gotSubject domain.RankingSubject
	gotGame    string
	gotPeriod  domain.RankingPeriod
}

func (f *fakeRankings) Project(context.Context, domain.MatchProjection) error { return nil }
func (f *fakeRankings) Reset(context.Context) error                          { return nil }
func (f *fakeRankings) Standing(_ context.Context, s domain.RankingSubject, id, game string, p domain.RankingPeriod) (domain.Standing, error) {
	f.gotSubject, f.gotGame, f.gotPeriod = s, game, p
	return domain.Standing{SubjectID: id, Rank: 3, XP: 120}, nil
}

func TestRankingStanding(t *testing.T) {
	tests := []struct {
		name, kind, query string
		want              int
		period            domain.RankingPeriod
	}{
		{"profile all time", "profile", "", http.StatusOK, domain.RankingPeriod{}},
		{"game team monthly", "game_team", "?game=g1&year=2026&month=4", http.StatusOK, domain.RankingPeriod{Year: 2026, Month: 4}},
		{"unknown kind", "clan", "", http.StatusBadRequest, domain.RankingPeriod{}},
		{"game board needs game", "game_profile", "", http.StatusBadRequest, domain.RankingPeriod{}},
		{"month without year", "profile", "?month=3", http.StatusBadRequest, domain.RankingPeriod{}},
		{"month out of range", "profile", "?year=2026&month=13", http.StatusBadRequest, domain.RankingPeriod{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rankings := &fakeRankings{}
			r := httptest.NewRequest("GET", "/api/rankings"+tt.query, nil)
			r.SetPathValue("kind", tt.kind)
			r.SetPathValue("subjectId", "s1")
			rec := httptest.NewRecorder()
			NewRankingHandler(rankings, discard()).Standing(rec, r)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			if rankings.gotPeriod != tt.period {
				t.Errorf("period = %+v, want %+v", rankings.gotPeriod, tt.period)
			}
			var v standingView
			decode(t, rec, &v)
			if v.Rank != 3 || v.XP != 120 || v.SubjectID != "s1" {
				t.Errorf("view = %+v", v)
			}
		})
	}
}

type memInbox []domain.Notification

func (m memInbox) Create(context.Context, domain.Notification) error { return nil }
func (m memInbox) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }
func (m memInbox) ListForProfile(_ context.Context, id string, opts domain.ListOpts) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range m {
		if n.ProfileID == id {
			out = append(out, n)
		}
	}
	return out, nil
}

func TestNotificationList(t *testing.T) {
	inbox := memInbox{
		{ID: "n1", ProfileID: "p1", Kind: domain.NotifyBattleConfirmed},
		{ID: "n2", ProfileID: "p2", Kind: domain.NotifyBattleExpired},
	}
	rec := httptest.NewRecorder()
	NewNotificationHandler(inbox, discard()).List(rec, authed("GET", "/api/notifications", ""))

	var out []notificationView
	decode(t, rec, &out)
	if len(out) != 1 || out[0].ID != "n1" || out[0].Kind != domain.NotifyBattleConfirmed {
		t.Errorf("out = %+v", out)
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": ok}, discard()).HealthCheck(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": down}, discard()).HealthCheck(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d", rec.Code)
	}
}
