package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// world is the shared in-memory state behind every fake store.
type world struct {
	mu sync.Mutex

	battles    map[string]domain.Battle
	matches    map[string]domain.Match
	selections map[string]domain.TeamSelection
	members    map[string]domain.TeamSelectionProfile
	disputes   map[string]domain.Dispute
	txs        map[string]domain.Transaction
	txOrder    []string

	profiles     map[string]domain.Profile
	teams        map[string]domain.Team
	teamProfiles map[string]domain.TeamProfile
	games        map[string]domain.Game

	// failures maps an operation name to the error it should return.
	failures map[string]error
}

func newWorld() *world {
	return &world{
		battles:      map[string]domain.Battle{},
		matches:      map[string]domain.Match{},
		selections:   map[string]domain.TeamSelection{},
		members:      map[string]domain.TeamSelectionProfile{},
		disputes:     map[string]domain.Dispute{},
		txs:          map[string]domain.Transaction{},
		profiles:     map[string]domain.Profile{},
		teams:        map[string]domain.Team{},
		teamProfiles: map[string]domain.TeamProfile{},
		games:        map[string]domain.Game{},
		failures:     map[string]error{},
	}
}

func (w *world) failOn(op string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[op] = err
}

// fail must be called with w.mu held.
func (w *world) fail(op string) error {
	return w.failures[op]
}

func (w *world) stores() Stores {
	return Stores{
		Battles:    fakeBattles{w},
		Matches:    fakeMatches{w},
		Selections: fakeSelections{w},
		Disputes:   fakeDisputes{w},
		Roster:     fakeRoster{w},
	}
}

// --- battles ---

type fakeBattles struct{ w *world }

func (f fakeBattles) Create(_ context.Context, b domain.Battle) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("battles.Create"); err != nil {
		return err
	}
	f.w.battles[b.ID] = b
	return nil
}

func (f fakeBattles) GetByID(_ context.Context, id string) (domain.Battle, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	b, ok := f.w.battles[id]
	if !ok || b.Lifecycle == domain.LifecycleDeleted {
		return domain.Battle{}, domain.ErrNotFound
	}
	return b, nil
}

func (f fakeBattles) Update(_ context.Context, b domain.Battle) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("battles.Update"); err != nil {
		return err
	}
	if _, ok := f.w.battles[b.ID]; !ok {
		return domain.ErrNotFound
	}
	f.w.battles[b.ID] = b
	return nil
}

func (f fakeBattles) Delete(_ context.Context, id string) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	b, ok := f.w.battles[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Lifecycle = domain.LifecycleDeleted
	f.w.battles[id] = b
	return nil
}

func (f fakeBattles) ListExpiredOpen(_ context.Context, now time.Time, limit int) ([]domain.Battle, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []domain.Battle
	for _, b := range f.w.battles {
		if b.Lifecycle == domain.LifecycleActive && b.Status.Kind == domain.BattleAwaitingOpponent && b.ScheduledAt.Before(now) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- matches ---

type fakeMatches struct{ w *world }

func (f fakeMatches) Create(_ context.Context, m domain.Match) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("matches.Create"); err != nil {
		return err
	}
	f.w.matches[m.ID] = m
	return nil
}

func (f fakeMatches) GetByID(_ context.Context, id string) (domain.Match, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	m, ok := f.w.matches[id]
	if !ok || m.Lifecycle == domain.LifecycleDeleted {
		return domain.Match{}, domain.ErrNotFound
	}
	return m, nil
}

func (f fakeMatches) GetByBattle(_ context.Context, battleID string) (domain.Match, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for _, m := range f.w.matches {
		if m.BattleID == battleID && m.Lifecycle != domain.LifecycleDeleted {
			return m, nil
		}
	}
	return domain.Match{}, domain.ErrNotFound
}

func (f fakeMatches) Update(_ context.Context, m domain.Match) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("matches.Update:" + string(m.Status.Kind)); err != nil {
		return err
	}
	if cur, ok := f.w.matches[m.ID]; !ok || cur.Lifecycle == domain.LifecycleDeleted {
		return domain.ErrNotFound
	}
	f.w.matches[m.ID] = m
	return nil
}

func (f fakeMatches) Delete(_ context.Context, id string) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	m, ok := f.w.matches[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Lifecycle = domain.LifecycleDeleted
	f.w.matches[id] = m
	return nil
}

func (f fakeMatches) ListStaleVotes(_ context.Context, before time.Time, limit int) ([]domain.Match, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []domain.Match
	for _, m := range f.w.matches {
		if m.Lifecycle == domain.LifecycleDeleted || m.Status.DisputeID != "" || m.LastVoteAt == nil {
			continue
		}
		if f.w.battles[m.BattleID].Lifecycle != domain.LifecycleActive {
			continue
		}
		switch m.Status.Kind {
		case domain.MatchHomeVoted, domain.MatchAwayVoted, domain.MatchAgreed:
			if m.LastVoteAt.Before(before) {
				out = append(out, m)
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeMatches) ListDisputed(_ context.Context, limit int) ([]domain.Match, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []domain.Match
	for _, m := range f.w.matches {
		if m.Lifecycle == domain.LifecycleDeleted || m.Status.Kind != domain.MatchDisputed {
			continue
		}
		if f.w.battles[m.BattleID].Lifecycle != domain.LifecycleActive || !f.w.disputes[m.Status.DisputeID].Resolved() {
			continue
		}
		out = append(out, m)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeMatches) ListSettled(_ context.Context, opts domain.ListOpts) ([]domain.Match, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []domain.Match
	for _, m := range f.w.matches {
		if m.Lifecycle != domain.LifecycleDeleted && m.Status.Kind == domain.MatchSettled {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// --- selections ---

type fakeSelections struct{ w *world }

func (f fakeSelections) Create(_ context.Context, s domain.TeamSelection) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("selections.Create"); err != nil {
		return err
	}
	f.w.selections[s.ID] = s
	return nil
}

func (f fakeSelections) GetByID(_ context.Context, id string) (domain.TeamSelection, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	s, ok := f.w.selections[id]
	if !ok {
		return domain.TeamSelection{}, domain.ErrNotFound
	}
	return s, nil
}

func (f fakeSelections) SetOutcome(_ context.Context, id string, o domain.Outcome) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if o.Settled() {
		if err := f.w.fail("selections.SetOutcome"); err != nil {
			return err
		}
	}
	s, ok := f.w.selections[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Outcome = o
	f.w.selections[id] = s
	return nil
}

func (f fakeSelections) Delete(_ context.Context, id string) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if _, ok := f.w.selections[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.w.selections, id)
	return nil
}

func (f fakeSelections) CreateMember(_ context.Context, m domain.TeamSelectionProfile) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("selections.CreateMember"); err != nil {
		return err
	}
	f.w.members[m.ID] = m
	return nil
}

func (f fakeSelections) ListMembers(_ context.Context, selectionID string) ([]domain.TeamSelectionProfile, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []domain.TeamSelectionProfile
	for _, m := range f.w.members {
		if m.SelectionID == selectionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeSelections) SetMemberOutcome(_ context.Context, id string, o domain.Outcome) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	m, ok := f.w.members[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Outcome = o
	f.w.members[id] = m
	return nil
}

func (f fakeSelections) DeleteMember(_ context.Context, id string) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if _, ok := f.w.members[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.w.members, id)
	return nil
}

func (f fakeSelections) SumRatingDeltas(_ context.Context, profileID, gameID string) (int64, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var sum int64
	for _, m := range f.w.members {
		if m.ProfileID != profileID || m.Outcome.RatingDelta == nil {
			continue
		}
		sel := f.w.selections[m.SelectionID]
		match := f.w.matches[sel.MatchID]
		if f.w.battles[match.BattleID].Options.GameID == gameID {
			sum += *m.Outcome.RatingDelta
		}
	}
	return sum, nil
}

// --- disputes ---

type fakeDisputes struct{ w *world }

func (f fakeDisputes) Create(_ context.Context, d domain.Dispute) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if err := f.w.fail("disputes.Create"); err != nil {
		return err
	}
	f.w.disputes[d.ID] = d
	return nil
}

func (f fakeDisputes) GetByID(_ context.Context, id string) (domain.Dispute, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	d, ok := f.w.disputes[id]
	if !ok {
		return domain.Dispute{}, domain.ErrNotFound
	}
	return d, nil
}

func (f fakeDisputes) GetByMatch(_ context.Context, matchID string) (domain.Dispute, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for _, d := range f.w.disputes {
		if d.MatchID == matchID {
			return d, nil
		}
	}
	return domain.Dispute{}, domain.ErrNotFound
}

func (f fakeDisputes) Resolve(_ context.Context, id string, winner domain.Side, at time.Time) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	d, ok := f.w.disputes[id]
	if !ok {
		return domain.ErrNotFound
	}
	if d.Resolved() {
		return domain.ErrIllegalTransition
	}
	d.ResolvedWinner = winner
	d.ResolvedAt = &at
	f.w.disputes[id] = d
	return nil
}

// --- roster ---

type fakeRoster struct{ w *world }

func (f fakeRoster) GetProfile(_ context.Context, id string) (domain.Profile, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	p, ok := f.w.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return p, nil
}

func (f fakeRoster) GetProfileByWallet(_ context.Context, wallet string) (domain.Profile, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for _, p := range f.w.profiles {
		if p.Wallet == wallet {
			return p, nil
		}
	}
	return domain.Profile{}, domain.ErrNotFound
}

func (f fakeRoster) GetTeam(_ context.Context, id string) (domain.Team, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	t, ok := f.w.teams[id]
	if !ok {
		return domain.Team{}, domain.ErrNotFound
	}
	return t, nil
}

func (f fakeRoster) GetTeamProfile(_ context.Context, id string) (domain.TeamProfile, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	tp, ok := f.w.teamProfiles[id]
	if !ok {
		return domain.TeamProfile{}, domain.ErrNotFound
	}
	return tp, nil
}

func (f fakeRoster) ListTeamProfiles(_ context.Context, teamID string) ([]domain.TeamProfile, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	var out []domain.TeamProfile
	for _, tp := range f.w.teamProfiles {
		if tp.TeamID == teamID {
			out = append(out, tp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeRoster) GetGame(_ context.Context, id string) (domain.Game, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	g, ok := f.w.games[id]
	if !ok {
		return domain.Game{}, domain.ErrNotFound
	}
	return g, nil
}

// --- ledger ---

// fakeLedger applies the balance rule directly on the world's entries.
type fakeLedger struct {
	w     *world
	newID func() string
}

func (l *fakeLedger) balanceLocked(profileID string) int64 {
	var b int64
	for _, tx := range l.w.txs {
		if tx.ProfileID != profileID {
			continue
		}
		switch {
		case tx.Type.Debit():
			b -= tx.Amount
		case tx.Confirmed:
			b += tx.Amount
		}
	}
	return b
}

func (l *fakeLedger) Balance(_ context.Context, profileID string) (int64, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	return l.balanceLocked(profileID), nil
}

func (l *fakeLedger) add(tx domain.Transaction) {
	l.w.txs[tx.ID] = tx
	l.w.txOrder = append(l.w.txOrder, tx.ID)
}

func (l *fakeLedger) Hold(_ context.Context, profileID, battleID string, amount int64) (domain.Transaction, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	if err := l.w.fail("ledger.Hold:" + profileID); err != nil {
		return domain.Transaction{}, err
	}
	if l.balanceLocked(profileID) < amount {
		return domain.Transaction{}, domain.ErrInsufficientFunds
	}
	tx := domain.Transaction{ID: l.newID(), ProfileID: profileID, BattleID: battleID, Type: domain.TxOut, Amount: amount, Confirmed: true}
	l.add(tx)
	return tx, nil
}

func (l *fakeLedger) Credit(_ context.Context, profileID, battleID string, amount int64) (domain.Transaction, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	if err := l.w.fail("ledger.Credit"); err != nil {
		return domain.Transaction{}, err
	}
	tx := domain.Transaction{ID: l.newID(), ProfileID: profileID, BattleID: battleID, Type: domain.TxIn, Amount: amount, Confirmed: true}
	l.add(tx)
	return tx, nil
}

func (l *fakeLedger) Void(_ context.Context, tx domain.Transaction) error {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	if err := l.w.fail("ledger.Void"); err != nil {
		return err
	}
	if _, ok := l.w.txs[tx.ID]; !ok {
		return domain.ErrNotFound
	}
	delete(l.w.txs, tx.ID)
	return nil
}

func (l *fakeLedger) Restore(_ context.Context, tx domain.Transaction) error {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	l.w.txs[tx.ID] = tx
	return nil
}

func (l *fakeLedger) ListForBattle(_ context.Context, battleID string) ([]domain.Transaction, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	var out []domain.Transaction
	for _, id := range l.w.txOrder {
		if tx, ok := l.w.txs[id]; ok && tx.BattleID == battleID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// --- side collaborators ---

// fakeLocks is a process-local lock manager with real mutual exclusion.
type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks { return &fakeLocks{held: map[string]bool{}} }

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return nil
}

func (n *recordingNotifier) ofKind(kind domain.NotificationKind) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Notification
	for _, note := range n.sent {
		if note.Kind == kind {
			out = append(out, note)
		}
	}
	return out
}

type fakeFees struct {
	mu    sync.Mutex
	total int64
}

func (f *fakeFees) Add(_ context.Context, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total += amount
	return f.total, nil
}

func (f *fakeFees) Total(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total, nil
}

type fakeProjector struct {
	mu        sync.Mutex
	processed map[string]bool
	applied   []domain.MatchProjection
}

func (p *fakeProjector) Project(_ context.Context, mp domain.MatchProjection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.processed == nil {
		p.processed = map[string]bool{}
	}
	if p.processed[mp.MatchID] {
		return nil
	}
	p.processed[mp.MatchID] = true
	p.applied = append(p.applied, mp)
	return nil
}

func (p *fakeProjector) Standing(context.Context, domain.RankingSubject, string, string, domain.RankingPeriod) (domain.Standing, error) {
	return domain.Standing{}, nil
}

func (p *fakeProjector) Reset(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = nil
	p.applied = nil
	return nil
}

type fakeBus struct {
	mu     sync.Mutex
	events [][]byte
}

func (b *fakeBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

// fakeInbox is the persisted notification inbox the sweeper prunes.
type fakeInbox struct {
	mu   sync.Mutex
	rows []domain.Notification
}

func (i *fakeInbox) Create(_ context.Context, n domain.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.rows = append(i.rows, n)
	return nil
}

func (i *fakeInbox) ListForProfile(_ context.Context, profileID string, _ domain.ListOpts) ([]domain.Notification, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []domain.Notification
	for _, n := range i.rows {
		if n.ProfileID == profileID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (i *fakeInbox) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	kept := i.rows[:0]
	for _, n := range i.rows {
		if !n.CreatedAt.Before(before) {
			kept = append(kept, n)
		}
	}
	removed := int64(len(i.rows) - len(kept))
	i.rows = kept
	return removed, nil
}

type fakeArchive struct {
	mu       sync.Mutex
	receipts []domain.SettlementReceipt
}

func (a *fakeArchive) Put(_ context.Context, r domain.SettlementReceipt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receipts = append(a.receipts, r)
	return nil
}

// --- harness ---

var testStart = time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	w      *world
	clock  time.Time
	seq    int
	seqMu  sync.Mutex
	ledger *fakeLedger
	locks  *fakeLocks
	notes  *recordingNotifier
	fees   *fakeFees
	proj   *fakeProjector
	bus    *fakeBus
	arch   *fakeArchive
	inbox  *fakeInbox

	rosters    *RosterService
	battles    *BattleService
	settlement *SettlementService
	scores     *ScoreService
	sweeper    *Sweeper
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		w:     newWorld(),
		clock: testStart,
		locks: newFakeLocks(),
		notes: &recordingNotifier{},
		fees:  &fakeFees{},
		proj:  &fakeProjector{},
		bus:   &fakeBus{},
		arch:  &fakeArchive{},
		inbox: &fakeInbox{},
	}
	h.ledger = &fakeLedger{w: h.w, newID: h.nextID}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stores := h.w.stores()
	lease := NewBattleLease(h.locks, time.Second, time.Second)

	h.rosters = NewRosterService(stores, h.ledger, logger)
	h.rosters.now, h.rosters.newID = h.now, h.nextID
	h.battles = NewBattleService(stores, h.ledger, h.rosters, lease, h.notes, h.bus, logger)
	h.battles.fx.now, h.battles.fx.newID = h.now, h.nextID
	h.battles.pick = func(int) int { return 0 }
	h.settlement = NewSettlementService(stores, h.ledger, h.fees, h.proj, h.arch, lease, h.notes, h.bus, logger)
	h.settlement.fx.now, h.settlement.fx.newID = h.now, h.nextID
	h.scores = NewScoreService(stores, h.settlement, lease, h.notes, h.bus, logger)
	h.scores.fx.now, h.scores.fx.newID = h.now, h.nextID
	h.sweeper = NewSweeper(stores.Battles, stores.Matches, h.inbox, h.battles, h.scores, 24*time.Hour, 24*time.Hour, time.Minute, 50, logger)
	h.sweeper.now = h.now
	return h
}

func (h *harness) now() time.Time {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	return h.clock
}

func (h *harness) advance(d time.Duration) {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	h.clock = h.clock.Add(d)
}

func (h *harness) nextID() string {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	h.seq++
	return fmt.Sprintf("id-%04d", h.seq)
}

const testGameID = "game-1"

// seedGame adds a game with a required single-select game mode.
func (h *harness) seedGame() {
	h.w.games[testGameID] = domain.Game{
		ID:    testGameID,
		Title: "Arena",
		CustomAttributes: []domain.CustomAttribute{
			{
				AttributeID: "game_mode",
				DisplayName: "Game mode",
				Kind:        domain.AttributeSelect,
				Options: []domain.AttributeOption{
					{OptionID: "random", DisplayName: "Random"},
					{OptionID: "ctf", DisplayName: "Capture the flag"},
					{OptionID: "tdm", DisplayName: "Team deathmatch"},
				},
			},
			{
				AttributeID: "map",
				DisplayName: "Map",
				Kind:        domain.AttributePickRandom,
				Options: []domain.AttributeOption{
					{OptionID: "dust", DisplayName: "Dust"},
					{OptionID: "nuke", DisplayName: "Nuke"},
				},
			},
		},
	}
}

type seededTeam struct {
	team    domain.Team
	captain domain.TeamProfile
	members []domain.TeamProfile // includes the captain, captain first
}

func (t seededTeam) captainProfile(h *harness) domain.Profile {
	return h.w.profiles[t.captain.ProfileID]
}

func (t seededTeam) memberIDs() []string {
	ids := make([]string, 0, len(t.members))
	for _, m := range t.members {
		ids = append(ids, m.ID)
	}
	return ids
}

// seedTeam adds a team of size members, each with a confirmed deposit.
func (h *harness) seedTeam(name string, size int, deposit int64) seededTeam {
	st := seededTeam{team: domain.Team{ID: "team-" + name, Name: name, GameID: testGameID}}
	h.w.teams[st.team.ID] = st.team
	for i := range size {
		pid := fmt.Sprintf("%s-p%d", name, i)
		h.w.profiles[pid] = domain.Profile{ID: pid, Username: pid, Wallet: "0x" + pid, WagerMode: true, TrustMode: true}
		role := domain.RoleMember
		if i == 0 {
			role = domain.RoleFounder
		}
		tp := domain.TeamProfile{ID: fmt.Sprintf("%s-tp%d", name, i), TeamID: st.team.ID, ProfileID: pid, Role: role}
		h.w.teamProfiles[tp.ID] = tp
		st.members = append(st.members, tp)
		if deposit > 0 {
			h.w.txs["dep-"+pid] = domain.Transaction{ID: "dep-" + pid, ProfileID: pid, Type: domain.TxDeposit, Amount: deposit, Confirmed: true}
		}
	}
	st.captain = st.members[0]
	return st
}

func (h *harness) createInput(wager int64, home seededTeam) CreateBattleInput {
	return CreateBattleInput{
		WagerPerPerson:   wager,
		TeamProfileIDs:   home.memberIDs(),
		ScheduledAt:      h.now().Add(time.Hour),
		Series:           1,
		Region:           domain.RegionEurope,
		CustomAttributes: []domain.AttributeSelection{{AttributeID: "game_mode", Values: []string{"ctf"}}},
	}
}

// readyBattle creates and joins a battle between home and away and moves the
// clock past its start.
func (h *harness) readyBattle(wager int64, home, away seededTeam) domain.Battle {
	h.t.Helper()
	ctx := context.Background()
	b, err := h.battles.CreateBattle(ctx, home.captainProfile(h), home.captain.ID, h.createInput(wager, home))
	if err != nil {
		h.t.Fatalf("CreateBattle: %v", err)
	}
	b, err = h.battles.JoinBattle(ctx, away.captainProfile(h), b.ID, JoinBattleInput{
		CaptainTeamProfileID: away.captain.ID,
		TeamProfileIDs:       away.memberIDs(),
	})
	if err != nil {
		h.t.Fatalf("JoinBattle: %v", err)
	}
	h.advance(2 * time.Hour)
	return b
}

func (h *harness) match(battleID string) domain.Match {
	h.t.Helper()
	m, err := h.w.stores().Matches.GetByBattle(context.Background(), battleID)
	if err != nil {
		h.t.Fatalf("GetByBattle(%s): %v", battleID, err)
	}
	return m
}

func (h *harness) battle(battleID string) domain.Battle {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	return h.w.battles[battleID]
}

// entries counts the live escrow entries of a battle by type.
func (h *harness) entries(battleID string, typ domain.TransactionType) []domain.Transaction {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	var out []domain.Transaction
	for _, id := range h.w.txOrder {
		if tx, ok := h.w.txs[id]; ok && tx.BattleID == battleID && tx.Type == typ {
			out = append(out, tx)
		}
	}
	return out
}
