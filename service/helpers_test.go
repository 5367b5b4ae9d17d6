package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loyaltycast/models"
)

func newMembershipProgram() *models.Program {
	return &models.Program{
		ID:              1,
		TenantID:        "tenant-a",
		WalletProgramID: "wp-membership",
		Name:            "Coffee Club",
		Protocol:        models.ProtocolMembership,
		Tiers: models.TierThresholds{
			BronzeMax: 999,
			SilverMax: 4999,
			GoldMax:   14999,
		},
		Birthday: models.BirthdayConfig{
			Enabled:      true,
			RewardPoints: 100,
			Message:      "Happy birthday {name}! Enjoy {points} points.",
		},
	}
}

func newCouponProgram() *models.Program {
	return &models.Program{
		ID:              2,
		TenantID:        "tenant-a",
		WalletProgramID: "wp-coupon",
		Protocol:        models.ProtocolCoupon,
	}
}

func newTicketProgram() *models.Program {
	return &models.Program{
		ID:              3,
		TenantID:        "tenant-a",
		WalletProgramID: "wp-ticket",
		Protocol:        models.ProtocolEventTicket,
	}
}

func newMember(id int64, record models.ProtocolRecord) *models.Member {
	return &models.Member{
		ID:               id,
		ProgramID:        1,
		WalletInternalID: fmt.Sprintf("pass-%d", id),
		ExternalID:       fmt.Sprintf("EXT-%d", id),
		Status:           models.MemberStatusInstalled,
		Active:           true,
		Record:           record,
	}
}

func newMembers(n int) []*models.Member {
	out := make([]*models.Member, n)
	for i := range out {
		out[i] = newMember(int64(i+1), models.MembershipRecord{})
	}
	return out
}

func withBirthday(m *models.Member, name string, birth time.Time) *models.Member {
	m.Profile = &models.MemberProfile{FirstName: name, BirthDate: &birth}
	return m
}

func ptr[T any](v T) *T {
	return &v
}

// recordingSleeper counts inter-batch delays without sleeping
type recordingSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
}

// fakeGateway records sends and fails for configured pass ids
type fakeGateway struct {
	mu     sync.Mutex
	sent   map[string]string
	failOn map[string]error
	block  bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sent:   make(map[string]string),
		failOn: make(map[string]error),
	}
}

func (g *fakeGateway) SendMessage(ctx context.Context, walletInternalID, walletProgramID, text string) error {
	if g.block {
		<-ctx.Done()
		return ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.failOn[walletInternalID]; ok {
		return err
	}
	g.sent[walletInternalID] = text
	return nil
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

// fakeCampaignLogs is an in-memory append-only log store
type fakeCampaignLogs struct {
	mu      sync.Mutex
	entries []*models.CampaignLog
	err     error
}

func (l *fakeCampaignLogs) Append(ctx context.Context, entry *models.CampaignLog) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	copied := *entry
	copied.ID = int64(len(l.entries) + 1)
	l.entries = append(l.entries, &copied)
	return copied.ID, nil
}

func (l *fakeCampaignLogs) Query(ctx context.Context, programID *int64, limit int) ([]*models.CampaignLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.CampaignLog
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := l.entries[i]
		if programID == nil || (e.ProgramID != nil && *e.ProgramID == *programID) {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeClaims enforces (member, year) uniqueness the way the store constraint does
type fakeClaims struct {
	mu     sync.Mutex
	claims map[string]bool
}

func newFakeClaims() *fakeClaims {
	return &fakeClaims{claims: make(map[string]bool)}
}

func (c *fakeClaims) Claim(ctx context.Context, memberID int64, year int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprintf("%d/%d", memberID, year)
	if c.claims[key] {
		return false, nil
	}
	c.claims[key] = true
	return true, nil
}

func (c *fakeClaims) Release(ctx context.Context, memberID int64, year int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, fmt.Sprintf("%d/%d", memberID, year))
	return nil
}

func (c *fakeClaims) has(memberID int64, year int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claims[fmt.Sprintf("%d/%d", memberID, year)]
}

// fakePoints credits balances and fails the next failures calls
type fakePoints struct {
	mu       sync.Mutex
	balances map[int64]int64
	grants   int
	failures int
}

func newFakePoints() *fakePoints {
	return &fakePoints{balances: make(map[int64]int64)}
}

func (p *fakePoints) GrantPoints(ctx context.Context, memberID int64, amount int64, description string, metadata map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return fmt.Errorf("balance procedure unavailable")
	}
	p.balances[memberID] += amount
	p.grants++
	return nil
}
