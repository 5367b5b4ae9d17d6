package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loyaltycast/events"
	"loyaltycast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(gateway WalletGateway, logs CampaignLogRepository, publisher EventPublisher) (*Dispatcher, *recordingSleeper) {
	d := NewDispatcher(gateway, logs, publisher, DispatchConfig{
		BatchSize:   50,
		BatchDelay:  200 * time.Millisecond,
		SendTimeout: time.Second,
	})
	sleeper := &recordingSleeper{}
	d.sleep = sleeper.sleep
	return d, sleeper
}

func TestDispatcher_BatchesWithDelayBetween(t *testing.T) {
	gateway := newFakeGateway()
	logs := &fakeCampaignLogs{}
	d, sleeper := newTestDispatcher(gateway, logs, nil)

	summary, err := d.Dispatch(context.Background(), Dispatch{
		Program:      newMembershipProgram(),
		Recipients:   newMembers(120),
		Message:      "Double points this weekend",
		CampaignName: "Weekend promo",
		Segment:      models.SegmentAllActive,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 120, summary.Total)
	assert.Equal(t, 120, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, sleeper.calls)
	assert.Equal(t, 120, gateway.count())

	require.Len(t, logs.entries, 1)
	entry := logs.entries[0]
	assert.Equal(t, 120, entry.RecipientCount)
	assert.Equal(t, 120, entry.SuccessCount)
	assert.Equal(t, 0, entry.FailureCount)
	assert.Equal(t, "Double points this weekend", entry.MessageBody)
	assert.Equal(t, models.SegmentAllActive, entry.TargetSegment)
	require.NotNil(t, entry.ProgramID)
	assert.Equal(t, int64(1), *entry.ProgramID)
}

func TestDispatcher_PartialFailureIsCounted(t *testing.T) {
	gateway := newFakeGateway()
	gateway.failOn["pass-3"] = errors.New("pass not found")
	gateway.failOn["pass-7"] = errors.New("gateway 502")
	logs := &fakeCampaignLogs{}
	d, _ := newTestDispatcher(gateway, logs, nil)

	summary, err := d.Dispatch(context.Background(), Dispatch{
		Program:    newMembershipProgram(),
		Recipients: newMembers(10),
		Message:    "Hello members",
		Segment:    models.SegmentVIP,
	})

	require.NoError(t, err)
	assert.Equal(t, 8, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 2, logs.entries[0].FailureCount)
}

func TestDispatcher_ZeroRecipientsStillLogs(t *testing.T) {
	mockGateway := new(MockWalletGateway)
	logs := &fakeCampaignLogs{}
	d, sleeper := newTestDispatcher(mockGateway, logs, nil)

	summary, err := d.Dispatch(context.Background(), Dispatch{
		Program: newMembershipProgram(),
		Message: "Nobody hears this",
		Segment: models.SegmentTierPlatinum,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Batches)
	assert.Empty(t, sleeper.calls)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, 0, logs.entries[0].RecipientCount)
	mockGateway.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_SendsWithinBatchConcurrently(t *testing.T) {
	var inFlight, peak int32
	var arrived sync.WaitGroup
	arrived.Add(50)
	release := make(chan struct{})

	mockGateway := new(MockWalletGateway)
	mockGateway.On("SendMessage", mock.Anything, mock.Anything, "wp-membership", "Flash sale today").
		Run(func(args mock.Arguments) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			arrived.Done()
			<-release
			atomic.AddInt32(&inFlight, -1)
		}).
		Return(nil)

	go func() {
		arrived.Wait()
		close(release)
	}()

	d, _ := newTestDispatcher(mockGateway, &fakeCampaignLogs{}, nil)

	done := make(chan *DispatchSummary, 1)
	go func() {
		summary, _ := d.Dispatch(context.Background(), Dispatch{
			Program:    newMembershipProgram(),
			Recipients: newMembers(50),
			Message:    "Flash sale today",
			Segment:    models.SegmentAllActive,
		})
		done <- summary
	}()

	select {
	case summary := <-done:
		assert.Equal(t, 50, summary.Succeeded)
		assert.Equal(t, int32(50), atomic.LoadInt32(&peak))
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("batch sends were not issued concurrently")
	}
}

func TestDispatcher_CallerCancellationDoesNotAbortRun(t *testing.T) {
	mockGateway := new(MockWalletGateway)
	mockGateway.On("SendMessage",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }),
		mock.Anything, mock.Anything, mock.Anything,
	).Return(nil)
	logs := &fakeCampaignLogs{}
	d, _ := newTestDispatcher(mockGateway, logs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := d.Dispatch(ctx, Dispatch{
		Program:    newMembershipProgram(),
		Recipients: newMembers(3),
		Message:    "Still delivered",
		Segment:    models.SegmentAllActive,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Len(t, logs.entries, 1)
}

func TestDispatcher_SendOneTimesOut(t *testing.T) {
	gateway := newFakeGateway()
	gateway.block = true
	d := NewDispatcher(gateway, &fakeCampaignLogs{}, nil, DispatchConfig{
		BatchSize:   50,
		SendTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	ok := d.SendOne(context.Background(), "wp-membership", newMember(1, models.MembershipRecord{}), "Are you there?")

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDispatcher_SendOneRecoversPanic(t *testing.T) {
	mockGateway := new(MockWalletGateway)
	mockGateway.On("SendMessage", mock.Anything, "pass-1", "wp-membership", "Hello there").
		Run(func(args mock.Arguments) { panic("nil pointer in client") })
	d, _ := newTestDispatcher(mockGateway, &fakeCampaignLogs{}, nil)

	ok := d.SendOne(context.Background(), "wp-membership", newMember(1, models.MembershipRecord{}), "Hello there")

	assert.False(t, ok)
}

func TestDispatcher_LogWriteFailure(t *testing.T) {
	gateway := newFakeGateway()
	logs := &fakeCampaignLogs{err: errors.New("disk full")}
	mockPublisher := new(MockEventPublisher)
	d, _ := newTestDispatcher(gateway, logs, mockPublisher)

	summary, err := d.Dispatch(context.Background(), Dispatch{
		Program:    newMembershipProgram(),
		Recipients: newMembers(2),
		Message:    "Hello members",
		Segment:    models.SegmentAllActive,
	})

	assert.ErrorIs(t, err, ErrSystemFailure)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Succeeded)
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestDispatcher_PublishesEventAfterLog(t *testing.T) {
	mockPublisher := new(MockEventPublisher)
	mockPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		ev, ok := e.(events.CampaignDispatchedEvent)
		return ok && ev.CampaignLogID == 1 && ev.Recipients == 4 && ev.Segment == "ALL_ACTIVE"
	})).Return()
	d, _ := newTestDispatcher(newFakeGateway(), &fakeCampaignLogs{}, mockPublisher)

	_, err := d.Dispatch(context.Background(), Dispatch{
		Program:      newMembershipProgram(),
		Recipients:   newMembers(4),
		Message:      "Hello members",
		CampaignName: "Hello",
		Segment:      models.SegmentAllActive,
	})

	require.NoError(t, err)
	mockPublisher.AssertExpectations(t)
}
