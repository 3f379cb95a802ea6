package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

func TestCreateBattleEscrowsEveryMember(t *testing.T) {
	h := newHarness(t)
	h.seedGame()
	home := h.seedTeam("home", 2, 1000)
	away := h.seedTeam("away", 2, 1000)
	ctx := context.Background()

	b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, h.createInput(500, home))
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}
	if b.PotAmount != 2000 {
		t.Fatalf("pot = %d, want 2000", b.PotAmount)
	}
	if b.Status.Kind != domain.BattleAwaitingOpponent || b.Lifecycle != domain.LifecycleActive {
		t.Fatalf("unexpected state %s/%s", b.Lifecycle, b.Status.Kind)
	}
	outs := h.entries(b.ID, domain.TxOut)
	if len(outs) != 2 {
		t.Fatalf("outs after create = %d, want 2", len(outs))
	}
	for _, tx := range outs {
		if tx.Amount != 500 {
			t.Fatalf("out amount = %d, want 500", tx.Amount)
		}
	}
	m := h.match(b.ID)
	if m.HomeTeamID == "" || m.Status.Kind != domain.MatchAwaitingOpponent {
		t.Fatalf("match not linked to home roster: %+v", m)
	}
	if got := len(h.notes.ofKind(domain.NotifyEnrolledInBattle)); got != 2 {
		t.Fatalf("enrolled notifications = %d, want 2", got)
	}

	if _, err := h.battles.JoinBattle(ctx, away.captainProfile(h), b.ID, JoinBattleInput{
		CaptainTeamProfileID: away.captain.ID,
		TeamProfileIDs:       away.memberIDs(),
	}); err != nil {
		t.Fatalf("JoinBattle: %v", err)
	}
	if got := len(h.entries(b.ID, domain.TxOut)); got != 4 {
		t.Fatalf("outs after join = %d, want 4", got)
	}
	if got := h.battle(b.ID).Status.Kind; got != domain.BattleReady {
		t.Fatalf("battle status = %s, want ready", got)
	}
	if got := len(h.notes.ofKind(domain.NotifyBattleConfirmed)); got != 4 {
		t.Fatalf("confirmed notifications = %d, want 4", got)
	}
}

func TestCreateBattleValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *harness, in *CreateBattleInput, caller *domain.Profile, captainID *string)
		wantErr error
	}{
		{
			name:    "negative wager",
			mutate:  func(_ *harness, in *CreateBattleInput, _ *domain.Profile, _ *string) { in.WagerPerPerson = -1 },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "series of two",
			mutate:  func(_ *harness, in *CreateBattleInput, _ *domain.Profile, _ *string) { in.Series = 2 },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "start in the past",
			mutate: func(h *harness, in *CreateBattleInput, _ *domain.Profile, _ *string) {
				in.ScheduledAt = h.now().Add(-time.Minute)
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "unknown region",
			mutate:  func(_ *harness, in *CreateBattleInput, _ *domain.Profile, _ *string) { in.Region = "mars" },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "missing select attribute",
			mutate:  func(_ *harness, in *CreateBattleInput, _ *domain.Profile, _ *string) { in.CustomAttributes = nil },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "invalid option",
			mutate: func(_ *harness, in *CreateBattleInput, _ *domain.Profile, _ *string) {
				in.CustomAttributes = []domain.AttributeSelection{{AttributeID: "game_mode", Values: []string{"koth"}}}
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "invited team is own team",
			mutate: func(_ *harness, in *CreateBattleInput, _ *domain.Profile, _ *string) {
				in.InvitedTeamID = "team-home"
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "roster member from another team",
			mutate: func(_ *harness, in *CreateBattleInput, _ *domain.Profile, _ *string) {
				in.TeamProfileIDs = []string{"other-tp1"}
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "caller does not own captain profile",
			mutate: func(h *harness, _ *CreateBattleInput, caller *domain.Profile, _ *string) {
				*caller = h.w.profiles["other-p0"]
			},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name: "captain is a plain member",
			mutate: func(h *harness, in *CreateBattleInput, caller *domain.Profile, captainID *string) {
				*captainID = "home-tp1"
				*caller = h.w.profiles["home-p1"]
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "unknown captain profile",
			mutate:  func(_ *harness, _ *CreateBattleInput, _ *domain.Profile, captainID *string) { *captainID = "nope" },
			wantErr: domain.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.seedGame()
			home := h.seedTeam("home", 2, 1000)
			h.seedTeam("other", 2, 1000)

			in := h.createInput(100, home)
			caller := home.captainProfile(h)
			captainID := home.captain.ID
			tt.mutate(h, &in, &caller, &captainID)

			_, err := h.battles.CreateBattle(context.Background(), caller, captainID, in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateBattle error = %v, want %v", err, tt.wantErr)
			}
			if len(h.w.selections) != 0 || len(h.w.members) != 0 || len(h.w.txOrder) != 0 {
				t.Fatalf("rejected create left records: %d selections, %d members, %d txs",
					len(h.w.selections), len(h.w.members), len(h.w.txOrder))
			}
		})
	}
}

func TestCreateBattleInsufficientBalanceLeavesNoResidue(t *testing.T) {
	h := newHarness(t)
	h.seedGame()
	home := h.seedTeam("home", 3, 1000)
	h.w.txs["dep-home-p2"] = domain.Transaction{ID: "dep-home-p2", ProfileID: "home-p2", Type: domain.TxDeposit, Amount: 100, Confirmed: true}

	_, err := h.battles.CreateBattle(context.Background(), home.captainProfile(h), home.captain.ID, h.createInput(500, home))
	if !errors.Is(err, domain.ErrSquadNotEligible) {
		t.Fatalf("CreateBattle error = %v, want ErrSquadNotEligible", err)
	}
	assertNoLiveBattle(t, h)
}

func TestCreateBattleHoldFailureUnwindsEarlierHolds(t *testing.T) {
	h := newHarness(t)
	h.seedGame()
	home := h.seedTeam("home", 3, 1000)
	// The captain is written last, so the first two holds land before this fails.
	h.w.failOn("ledger.Hold:home-p0", domain.ErrInsufficientFunds)

	_, err := h.battles.CreateBattle(context.Background(), home.captainProfile(h), home.captain.ID, h.createInput(500, home))
	if !errors.Is(err, domain.ErrSquadNotEligible) {
		t.Fatalf("CreateBattle error = %v, want ErrSquadNotEligible", err)
	}
	assertNoLiveBattle(t, h)
	for _, pid := range []string{"home-p0", "home-p1", "home-p2"} {
		if b, _ := h.ledger.Balance(context.Background(), pid); b != 1000 {
			t.Fatalf("balance of %s = %d after unwind, want 1000", pid, b)
		}
	}
}

func assertNoLiveBattle(t *testing.T, h *harness) {
	t.Helper()
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	for id, b := range h.w.battles {
		if b.Lifecycle != domain.LifecycleDeleted {
			t.Fatalf("battle %s left in %s", id, b.Lifecycle)
		}
	}
	for id, m := range h.w.matches {
		if m.Lifecycle != domain.LifecycleDeleted {
			t.Fatalf("match %s left in %s", id, m.Lifecycle)
		}
	}
	if len(h.w.selections) != 0 || len(h.w.members) != 0 {
		t.Fatalf("roster residue: %d selections, %d members", len(h.w.selections), len(h.w.members))
	}
	for _, tx := range h.w.txs {
		if tx.Type == domain.TxOut {
			t.Fatalf("escrow residue: %+v", tx)
		}
	}
}

func TestJoinBattleConcurrentJoinsHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	h.seedGame()
	home := h.seedTeam("home", 2, 1000)
	challengers := []seededTeam{
		h.seedTeam("a", 2, 1000),
		h.seedTeam("b", 2, 1000),
		h.seedTeam("c", 2, 1000),
		h.seedTeam("d", 2, 1000),
	}
	ctx := context.Background()
	b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, h.createInput(500, home))
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		wins    int
		refused int
	)
	for _, c := range challengers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.battles.JoinBattle(ctx, c.captainProfile(h), b.ID, JoinBattleInput{
				CaptainTeamProfileID: c.captain.ID,
				TeamProfileIDs:       c.memberIDs(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrBattleUnavailable):
				refused++
			default:
				t.Errorf("JoinBattle: unexpected error %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 || refused != len(challengers)-1 {
		t.Fatalf("wins = %d, refused = %d", wins, refused)
	}
	if got := len(h.entries(b.ID, domain.TxOut)); got != 4 {
		t.Fatalf("outs = %d, want 4", got)
	}
}

func TestJoinBattleRules(t *testing.T) {
	ctx := context.Background()

	t.Run("same team cannot join", func(t *testing.T) {
		h := newHarness(t)
		h.seedGame()
		home := h.seedTeam("home", 1, 1000)
		b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, h.createInput(100, home))
		if err != nil {
			t.Fatalf("CreateBattle: %v", err)
		}
		_, err = h.battles.JoinBattle(ctx, home.captainProfile(h), b.ID, JoinBattleInput{CaptainTeamProfileID: home.captain.ID})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("JoinBattle error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("only the invited team may join", func(t *testing.T) {
		h := newHarness(t)
		h.seedGame()
		home := h.seedTeam("home", 1, 1000)
		invited := h.seedTeam("invited", 1, 1000)
		other := h.seedTeam("other", 1, 1000)
		in := h.createInput(100, home)
		in.InvitedTeamID = invited.team.ID
		b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, in)
		if err != nil {
			t.Fatalf("CreateBattle: %v", err)
		}
		if got := len(h.notes.ofKind(domain.NotifyBattleInviteReceived)); got != 1 {
			t.Fatalf("invite notifications = %d, want 1", got)
		}
		_, err = h.battles.JoinBattle(ctx, other.captainProfile(h), b.ID, JoinBattleInput{CaptainTeamProfileID: other.captain.ID})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("JoinBattle by uninvited team error = %v, want ErrInvalidInput", err)
		}
		if _, err := h.battles.JoinBattle(ctx, invited.captainProfile(h), b.ID, JoinBattleInput{CaptainTeamProfileID: invited.captain.ID}); err != nil {
			t.Fatalf("JoinBattle by invited team: %v", err)
		}
	})

	t.Run("expired battle is unavailable", func(t *testing.T) {
		h := newHarness(t)
		h.seedGame()
		home := h.seedTeam("home", 1, 1000)
		away := h.seedTeam("away", 1, 1000)
		b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, h.createInput(100, home))
		if err != nil {
			t.Fatalf("CreateBattle: %v", err)
		}
		h.advance(2 * time.Hour)
		_, err = h.battles.JoinBattle(ctx, away.captainProfile(h), b.ID, JoinBattleInput{CaptainTeamProfileID: away.captain.ID})
		if !errors.Is(err, domain.ErrBattleUnavailable) {
			t.Fatalf("JoinBattle error = %v, want ErrBattleUnavailable", err)
		}
	})

	t.Run("caller must own the captain profile", func(t *testing.T) {
		h := newHarness(t)
		h.seedGame()
		home := h.seedTeam("home", 1, 1000)
		away := h.seedTeam("away", 1, 1000)
		b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, h.createInput(100, home))
		if err != nil {
			t.Fatalf("CreateBattle: %v", err)
		}
		_, err = h.battles.JoinBattle(ctx, home.captainProfile(h), b.ID, JoinBattleInput{CaptainTeamProfileID: away.captain.ID})
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("JoinBattle error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("untrusting member is not eligible", func(t *testing.T) {
		h := newHarness(t)
		h.seedGame()
		home := h.seedTeam("home", 2, 1000)
		away := h.seedTeam("away", 2, 1000)
		p := h.w.profiles["away-p1"]
		p.TrustMode = false
		h.w.profiles[p.ID] = p
		b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, h.createInput(100, home))
		if err != nil {
			t.Fatalf("CreateBattle: %v", err)
		}
		_, err = h.battles.JoinBattle(ctx, away.captainProfile(h), b.ID, JoinBattleInput{
			CaptainTeamProfileID: away.captain.ID,
			TeamProfileIDs:       away.memberIDs(),
		})
		if !errors.Is(err, domain.ErrSquadNotEligible) {
			t.Fatalf("JoinBattle error = %v, want ErrSquadNotEligible", err)
		}
		if got := len(h.entries(b.ID, domain.TxOut)); got != 2 {
			t.Fatalf("outs = %d, want only the home side's 2", got)
		}
		if m := h.match(b.ID); m.AwayTeamID != "" || m.Status.Kind != domain.MatchAwaitingOpponent {
			t.Fatalf("match changed by failed join: %+v", m)
		}
	})
}

func TestJoinBattleGeneratesMeta(t *testing.T) {
	h := newHarness(t)
	h.seedGame()
	home := h.seedTeam("home", 1, 1000)
	away := h.seedTeam("away", 1, 1000)
	b := h.readyBattle(100, home, away)

	m := h.match(b.ID)
	if m.Meta == nil {
		t.Fatal("match meta not generated")
	}
	if got := m.Meta.Single["Game mode"]; got != "Capture the flag" {
		t.Fatalf("game mode = %q", got)
	}
	if len(m.Meta.Series) != 1 || m.Meta.Series[0]["Map"] != "Dust" {
		t.Fatalf("series meta = %+v", m.Meta.Series)
	}
}

func TestCancelUnjoinedBattle(t *testing.T) {
	h := newHarness(t)
	h.seedGame()
	home := h.seedTeam("home", 2, 1000)
	ctx := context.Background()
	b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, h.createInput(500, home))
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	if _, err := h.battles.CancelBattle(ctx, h.w.profiles["home-p1"], b.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("CancelBattle by member error = %v, want ErrUnauthorized", err)
	}

	out, err := h.battles.CancelBattle(ctx, home.captainProfile(h), b.ID)
	if err != nil {
		t.Fatalf("CancelBattle: %v", err)
	}
	if out != CancelExecuted {
		t.Fatalf("outcome = %s, want cancelled", out)
	}
	if got := h.battle(b.ID).Lifecycle; got != domain.LifecycleCancelled {
		t.Fatalf("lifecycle = %s", got)
	}
	if got := len(h.entries(b.ID, domain.TxOut)); got != 0 {
		t.Fatalf("outs after cancel = %d, want 0", got)
	}

	out, err = h.battles.CancelBattle(ctx, home.captainProfile(h), b.ID)
	if err != nil || out != CancelAlreadyCancelled {
		t.Fatalf("second CancelBattle = %s, %v", out, err)
	}
}

func TestCancellationHandshake(t *testing.T) {
	h := newHarness(t)
	h.seedGame()
	home := h.seedTeam("home", 2, 1000)
	away := h.seedTeam("away", 2, 1000)
	ctx := context.Background()
	b := h.readyBattle(500, home, away)
	homeCap, awayCap := home.captainProfile(h), away.captainProfile(h)

	steps := []struct {
		name    string
		run     func() (CancelOutcome, error)
		want    CancelOutcome
		wantErr error
		by      domain.Side
	}{
		{name: "away requests", run: func() (CancelOutcome, error) { return h.battles.CancelBattle(ctx, awayCap, b.ID) }, want: CancelRequested, by: domain.SideAway},
		{name: "away repeats", run: func() (CancelOutcome, error) { return h.battles.CancelBattle(ctx, awayCap, b.ID) }, want: CancelAlreadyRequested, by: domain.SideAway},
		{
			name:    "home cannot withdraw away's request",
			run:     func() (CancelOutcome, error) { return "", h.battles.WithdrawCancellationRequest(ctx, homeCap, b.ID) },
			wantErr: domain.ErrUnauthorized,
			by:      domain.SideAway,
		},
		{name: "away withdraws", run: func() (CancelOutcome, error) { return "", h.battles.WithdrawCancellationRequest(ctx, awayCap, b.ID) }, by: domain.SideNone},
		{
			name:    "withdraw with nothing pending",
			run:     func() (CancelOutcome, error) { return "", h.battles.WithdrawCancellationRequest(ctx, awayCap, b.ID) },
			wantErr: domain.ErrInvalidInput,
			by:      domain.SideNone,
		},
		{name: "home requests", run: func() (CancelOutcome, error) { return h.battles.CancelBattle(ctx, homeCap, b.ID) }, want: CancelRequested, by: domain.SideHome},
	}
	for _, st := range steps {
		got, err := st.run()
		if st.wantErr != nil {
			if !errors.Is(err, st.wantErr) {
				t.Fatalf("%s: error = %v, want %v", st.name, err, st.wantErr)
			}
		} else if err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		if got != st.want {
			t.Fatalf("%s: outcome = %q, want %q", st.name, got, st.want)
		}
		if by := h.battle(b.ID).Status.CancellationRequestedBy; by != st.by {
			t.Fatalf("%s: requested by = %q, want %q", st.name, by, st.by)
		}
		if h.battle(b.ID).Lifecycle != domain.LifecycleActive {
			t.Fatalf("%s: battle cancelled early", st.name)
		}
	}

	out, err := h.battles.CancelBattle(ctx, awayCap, b.ID)
	if err != nil || out != CancelExecuted {
		t.Fatalf("accepting CancelBattle = %s, %v", out, err)
	}
	if got := h.battle(b.ID).Lifecycle; got != domain.LifecycleCancelled {
		t.Fatalf("lifecycle = %s", got)
	}
	if got := len(h.entries(b.ID, domain.TxOut)); got != 0 {
		t.Fatalf("outs after cancel = %d, want 0", got)
	}
	cancelled := h.notes.ofKind(domain.NotifyBattleCancelled)
	if len(cancelled) != 1 || cancelled[0].ProfileID != homeCap.ID {
		t.Fatalf("battle_cancelled notifications = %+v", cancelled)
	}
	if got := len(h.notes.ofKind(domain.NotifyCancellationWithdrawn)); got != 1 {
		t.Fatalf("withdrawn notifications = %d, want 1", got)
	}
}

func TestCancelFailureRestoresBattle(t *testing.T) {
	h := newHarness(t)
	h.seedGame()
	home := h.seedTeam("home", 2, 1000)
	ctx := context.Background()
	b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, h.createInput(500, home))
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}
	h.w.failOn("ledger.Void", errors.New("ledger offline"))

	if _, err := h.battles.CancelBattle(ctx, home.captainProfile(h), b.ID); err == nil {
		t.Fatal("CancelBattle succeeded with a failing ledger")
	}
	if got := h.battle(b.ID).Lifecycle; got != domain.LifecycleActive {
		t.Fatalf("lifecycle after failed cancel = %s, want active", got)
	}
	if got := len(h.entries(b.ID, domain.TxOut)); got != 2 {
		t.Fatalf("outs after failed cancel = %d, want 2", got)
	}
}

func TestWithdrawCancellationUnknownBattle(t *testing.T) {
	h := newHarness(t)
	err := h.battles.WithdrawCancellationRequest(context.Background(), domain.Profile{ID: "x"}, "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestDeclineInvitation(t *testing.T) {
	h := newHarness(t)
	h.seedGame()
	home := h.seedTeam("home", 1, 1000)
	invited := h.seedTeam("invited", 2, 1000)
	ctx := context.Background()
	in := h.createInput(300, home)
	in.InvitedTeamID = invited.team.ID
	b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, in)
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	if err := h.battles.DeclineInvitation(ctx, h.w.profiles["invited-p1"], b.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("decline by member error = %v, want ErrUnauthorized", err)
	}
	if err := h.battles.DeclineInvitation(ctx, invited.captainProfile(h), b.ID); err != nil {
		t.Fatalf("DeclineInvitation: %v", err)
	}
	if got := h.battle(b.ID).Lifecycle; got != domain.LifecycleCancelled {
		t.Fatalf("lifecycle = %s", got)
	}
	if got := len(h.entries(b.ID, domain.TxOut)); got != 0 {
		t.Fatalf("outs = %d, want 0", got)
	}
	declined := h.notes.ofKind(domain.NotifyInviteDeclined)
	if len(declined) != 1 || declined[0].ProfileID != home.captain.ProfileID {
		t.Fatalf("invite_declined notifications = %+v", declined)
	}
	if err := h.battles.DeclineInvitation(ctx, invited.captainProfile(h), b.ID); !errors.Is(err, domain.ErrBattleUnavailable) {
		t.Fatalf("second decline error = %v, want ErrBattleUnavailable", err)
	}
}

func TestSweeperExpiresUnjoinedBattles(t *testing.T) {
	h := newHarness(t)
	h.seedGame()
	home := h.seedTeam("home", 1, 1000)
	ctx := context.Background()
	b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, h.createInput(200, home))
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	if st := h.sweeper.SweepOnce(ctx); st.Expired != 0 {
		t.Fatalf("expired before start: %+v", st)
	}
	h.advance(90 * time.Minute)
	if st := h.sweeper.SweepOnce(ctx); st.Expired != 1 {
		t.Fatalf("sweep stats = %+v, want one expiry", st)
	}
	if got := h.battle(b.ID).Lifecycle; got != domain.LifecycleCancelled {
		t.Fatalf("lifecycle = %s", got)
	}
	expired := h.notes.ofKind(domain.NotifyBattleExpired)
	if len(expired) != 1 || expired[0].Message != "The battle for Arena has expired" {
		t.Fatalf("expiry notifications = %+v", expired)
	}
	if st := h.sweeper.SweepOnce(ctx); st.Expired != 0 {
		t.Fatalf("second sweep expired again: %+v", st)
	}
}
