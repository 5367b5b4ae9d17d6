package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"loyaltycast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var birthdayToday = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type birthdayFixture struct {
	programs *MockProgramRepository
	members  *MockMemberRepository
	claims   *fakeClaims
	points   *fakePoints
	gateway  *fakeGateway
	logs     *fakeCampaignLogs
	service  *birthdayService
}

func newBirthdayFixture(maxDetails int) *birthdayFixture {
	f := &birthdayFixture{
		programs: new(MockProgramRepository),
		members:  new(MockMemberRepository),
		claims:   newFakeClaims(),
		points:   newFakePoints(),
		gateway:  newFakeGateway(),
		logs:     &fakeCampaignLogs{},
	}

	dispatcher, _ := newTestDispatcher(f.gateway, f.logs, nil)
	svc := NewBirthdayService(f.programs, f.members, f.claims, f.points, dispatcher, f.logs, nil, BirthdayConfig{
		Location:   time.UTC,
		MaxDetails: maxDetails,
	}).(*birthdayService)
	svc.now = func() time.Time { return birthdayToday }
	svc.newRunID = func() string { return "run-1" }
	f.service = svc
	return f
}

func (f *birthdayFixture) withMembers(program *models.Program, members ...*models.Member) {
	f.programs.On("ListBirthdayEnabled", mock.Anything).Return([]*models.Program{program}, nil)
	f.members.On("ListWithBirthDates", mock.Anything, program.ID).Return(members, nil)
}

func birthdayMember(id int64, name string, birth time.Time) *models.Member {
	return withBirthday(newMember(id, models.MembershipRecord{}), name, birth)
}

func TestBirthdayJob_GrantsOncePerYear(t *testing.T) {
	ctx := context.Background()
	f := newBirthdayFixture(100)
	program := newMembershipProgram()
	f.withMembers(program,
		birthdayMember(1, "Ana", time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)),
		birthdayMember(2, "Ben", time.Date(1985, 7, 1, 0, 0, 0, 0, time.UTC)),
	)

	first, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{IncludeDetails: true})
	require.NoError(t, err)
	assert.Equal(t, 1, first.ProgramsScanned)
	assert.Equal(t, 1, first.Eligible)
	assert.Equal(t, 1, first.Succeeded)
	assert.Equal(t, 1, first.Notified)
	assert.Equal(t, "Happy birthday Ana! Enjoy 100 points.", f.gateway.sent["pass-1"])

	second, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{IncludeDetails: true})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Succeeded)
	assert.Equal(t, 1, second.Skipped)
	require.Len(t, second.Details, 1)
	assert.Equal(t, models.BirthdayOutcomeSkipped, second.Details[0].Status)
	assert.Equal(t, "already gifted this year", second.Details[0].Reason)

	assert.Equal(t, int64(100), f.points.balances[1])
	assert.Equal(t, 1, f.points.grants)
}

func TestBirthdayJob_GrantFailureReleasesClaim(t *testing.T) {
	ctx := context.Background()
	f := newBirthdayFixture(100)
	program := newMembershipProgram()
	f.withMembers(program, birthdayMember(1, "Ana", time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)))
	f.points.failures = 1

	failed, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{IncludeDetails: true})
	require.NoError(t, err)
	assert.Equal(t, 1, failed.Failed)
	assert.Equal(t, models.BirthdayOutcomeFailed, failed.Details[0].Status)
	assert.False(t, f.claims.has(1, 2026))
	assert.Equal(t, 0, f.gateway.count())

	retried, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, retried.Succeeded)
	assert.True(t, f.claims.has(1, 2026))
	assert.Equal(t, int64(100), f.points.balances[1])
}

func TestBirthdayJob_NotificationFailureKeepsReward(t *testing.T) {
	ctx := context.Background()
	f := newBirthdayFixture(100)
	program := newMembershipProgram()
	f.withMembers(program, birthdayMember(1, "Ana", time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)))
	f.gateway.failOn["pass-1"] = errors.New("pass deleted")

	result, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{IncludeDetails: true})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Notified)
	assert.False(t, result.Details[0].Notified)
	assert.True(t, f.claims.has(1, 2026))
	assert.Equal(t, int64(100), f.points.balances[1])
}

func TestBirthdayJob_DryRunTouchesNothing(t *testing.T) {
	ctx := context.Background()
	f := newBirthdayFixture(100)
	program := newMembershipProgram()
	f.withMembers(program,
		birthdayMember(1, "Ana", time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)),
		birthdayMember(2, "Ben", time.Date(2001, 3, 14, 0, 0, 0, 0, time.UTC)),
	)

	result, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{DryRun: true})

	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.Eligible)
	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Details, 2)
	for _, d := range result.Details {
		assert.Equal(t, models.BirthdayOutcomeSuccess, d.Status)
		assert.Equal(t, "would be processed", d.Reason)
	}
	assert.Nil(t, result.CampaignLogID)
	assert.Empty(t, f.logs.entries)
	assert.Zero(t, f.points.grants)
	assert.Zero(t, f.gateway.count())
	assert.False(t, f.claims.has(1, 2026))
}

func TestBirthdayJob_SelectionMatchesBetweenDryAndLiveRuns(t *testing.T) {
	ctx := context.Background()
	f := newBirthdayFixture(100)
	program := newMembershipProgram()

	uninstalled := birthdayMember(3, "Cy", time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC))
	uninstalled.Status = models.MemberStatusUninstalled
	f.withMembers(program,
		birthdayMember(1, "Ana", time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)),
		birthdayMember(2, "Ben", time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC)),
		uninstalled,
	)

	dry, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{DryRun: true})
	require.NoError(t, err)
	live, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{IncludeDetails: true})
	require.NoError(t, err)

	assert.Equal(t, dry.Eligible, live.Eligible)
	require.Len(t, live.Details, 1)
	assert.Equal(t, dry.Details[0].MemberID, live.Details[0].MemberID)
}

func TestBirthdayJob_WritesOneCrossProgramLogEntry(t *testing.T) {
	ctx := context.Background()
	f := newBirthdayFixture(100)

	first := newMembershipProgram()
	second := newMembershipProgram()
	second.ID = 9
	second.WalletProgramID = "wp-other"

	f.programs.On("ListBirthdayEnabled", mock.Anything).Return([]*models.Program{first, second}, nil)
	f.members.On("ListWithBirthDates", mock.Anything, first.ID).Return([]*models.Member{
		birthdayMember(1, "Ana", time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)),
	}, nil)
	f.members.On("ListWithBirthDates", mock.Anything, second.ID).Return([]*models.Member{
		birthdayMember(2, "Ben", time.Date(1980, 3, 14, 0, 0, 0, 0, time.UTC)),
	}, nil)

	result, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 2, result.ProgramsScanned)
	assert.Equal(t, 2, result.Succeeded)
	assert.Nil(t, result.Details)
	require.Len(t, f.logs.entries, 1)
	entry := f.logs.entries[0]
	assert.Nil(t, entry.ProgramID)
	assert.Equal(t, models.SegmentBirthday, entry.TargetSegment)
	assert.Equal(t, 2, entry.RecipientCount)
	assert.Equal(t, 2, entry.SuccessCount)
	assert.Equal(t, "Birthday rewards 2026-03-14", entry.CampaignName)
	require.NotNil(t, result.CampaignLogID)
	assert.Equal(t, entry.ID, *result.CampaignLogID)
}

func TestBirthdayJob_DetailsAreCapped(t *testing.T) {
	ctx := context.Background()
	f := newBirthdayFixture(2)
	program := newMembershipProgram()

	var members []*models.Member
	for i := int64(1); i <= 5; i++ {
		members = append(members, birthdayMember(i, fmt.Sprintf("M%d", i), time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)))
	}
	f.withMembers(program, members...)

	result, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 5, result.Eligible)
	assert.Equal(t, 5, result.Succeeded)
	assert.Len(t, result.Details, 2)
	assert.True(t, result.DetailsTruncated)
}

func TestBirthdayJob_NonPositiveDetailsCapUsesDefault(t *testing.T) {
	ctx := context.Background()
	f := newBirthdayFixture(0)
	program := newMembershipProgram()
	f.withMembers(program,
		birthdayMember(1, "Ana", time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)),
		birthdayMember(2, "Ben", time.Date(2001, 3, 14, 0, 0, 0, 0, time.UTC)),
	)

	result, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, defaultMaxDetails, f.service.cfg.MaxDetails)
	assert.Len(t, result.Details, 2)
	assert.False(t, result.DetailsTruncated)
}

func TestBirthdayJob_ExplicitDate(t *testing.T) {
	ctx := context.Background()
	f := newBirthdayFixture(100)
	program := newMembershipProgram()
	f.withMembers(program, birthdayMember(1, "Ana", time.Date(1990, 12, 25, 0, 0, 0, 0, time.UTC)))

	date := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	result, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{Date: &date})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.True(t, f.claims.has(1, 2025))
}

func TestBirthdayJob_SkipsProgramsWithoutReward(t *testing.T) {
	ctx := context.Background()
	f := newBirthdayFixture(100)
	program := newMembershipProgram()
	program.Birthday.RewardPoints = 0

	f.programs.On("ListBirthdayEnabled", mock.Anything).Return([]*models.Program{program}, nil)

	result, err := f.service.RunBirthdayJob(ctx, BirthdayRunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 0, result.ProgramsScanned)
	f.members.AssertNotCalled(t, "ListWithBirthDates", mock.Anything, mock.Anything)
}

func TestBirthdayJob_StoreFailurePropagates(t *testing.T) {
	f := newBirthdayFixture(100)
	f.programs.On("ListBirthdayEnabled", mock.Anything).Return(nil, errors.New("db down"))

	_, err := f.service.RunBirthdayJob(context.Background(), BirthdayRunOptions{})

	assert.ErrorIs(t, err, ErrSystemFailure)
	assert.Empty(t, f.logs.entries)
}

func TestIsBirthday(t *testing.T) {
	leap := time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsBirthday(&leap, time.Date(2028, 2, 29, 8, 0, 0, 0, time.UTC)))
	assert.False(t, IsBirthday(&leap, time.Date(2027, 2, 28, 8, 0, 0, 0, time.UTC)))
	assert.False(t, IsBirthday(&leap, time.Date(2027, 3, 1, 8, 0, 0, 0, time.UTC)))
	assert.False(t, IsBirthday(nil, time.Now()))
}

func TestRenderBirthdayMessage(t *testing.T) {
	named := withBirthday(newMember(1, models.MembershipRecord{}), "Ana", time.Now())
	anonymous := newMember(2, models.MembershipRecord{})

	assert.Equal(t, "Hi Ana, here are 250 points", RenderBirthdayMessage("Hi {name}, here are {points} points", named, 250))
	assert.Equal(t, "Happy birthday Ana! We've added 10 points to your account.", RenderBirthdayMessage("", named, 10))
	assert.Equal(t, "Happy birthday! We've added 10 points to your account.", RenderBirthdayMessage("  ", anonymous, 10))
}
