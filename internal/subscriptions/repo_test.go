package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/pagination"
)

func TestListReminderCandidates(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	soon, err := svc.Create(ctx, userID, trialInput("Soon"))
	require.NoError(t, err)

	far := trialInput("Far")
	far.RenewalDate = date("2026-09-01")
	_, err = svc.Create(ctx, userID, far)
	require.NoError(t, err)

	kept := trialInput("Kept")
	kept.Intent = enums.IntentKeep
	rule := enums.CancelByRuleOneDayBefore
	kept.CancelByRule = &rule
	_, err = svc.Create(ctx, userID, kept)
	require.NoError(t, err)

	gone, err := svc.Create(ctx, userID, trialInput("Gone"))
	require.NoError(t, err)
	_, err = svc.RecordCancellation(ctx, userID, gone.ID, CancellationInput{Status: enums.SubscriptionStatusCancelled})
	require.NoError(t, err)

	subs, err := repo.ListReminderCandidates(ctx, date("2026-03-01"), date("2026-03-14"), nil, 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, soon.ID, subs[0].ID)
}

func TestListPageWalksByCursor(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	current := fixedNow
	svc.(*service).now = func() time.Time { return current }
	for i := 0; i < 5; i++ {
		current = fixedNow.Add(time.Duration(i) * time.Minute)
		_, err := svc.Create(ctx, userID, trialInput("Sub"))
		require.NoError(t, err)
	}

	first, err := repo.ListPage(ctx, nil, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)

	last := first[len(first)-1]
	rest, err := repo.ListPage(ctx, pagination.After(last.CreatedAt, last.ID), 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.True(t, rest[0].CreatedAt.After(last.CreatedAt))
}

func TestCountByUserAndUpdateDerived(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	sub, err := svc.Create(ctx, userID, trialInput("Netflix"))
	require.NoError(t, err)

	count, err := repo.CountByUser(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.NoError(t, repo.LockUser(ctx, userID))

	sub.CancelByDate = date("2026-02-01")
	sub.ProofStatus = enums.ProofStatusMissing
	require.NoError(t, repo.UpdateDerived(ctx, sub))

	stored, err := repo.FindByID(ctx, userID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, date("2026-02-01"), stored.CancelByDate)
	assert.True(t, Drifted(stored))

	missing, err := repo.FindByID(ctx, uuid.New(), sub.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
