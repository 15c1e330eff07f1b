//go:build integration

package tracking

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"regnotify/internal/notify/models"
	"regnotify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "registration_sync")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seed(id int64) {
	err := s.store.Upsert(context.Background(), models.Registration{
		ID:             id,
		RegistrationNo: "REG-" + strconv.FormatInt(id, 10),
		Name:           "Registrant",
		Mobile:         "9" + strconv.FormatInt(1000000000+id, 10)[1:],
		Village:        "Tankara",
		State:          "Gujarat",
		Position:       "member",
		Age:            40,
		Gender:         "male",
		TotalMembers:   3,
		Connected:      "yes",
	})
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestUpsertRefreshesOnlyRegistrantFields() {
	ctx := context.Background()
	s.seed(1)
	s.Require().NoError(s.store.MarkSent(ctx, 1, models.StageConfirmation))

	err := s.store.Upsert(ctx, models.Registration{
		ID: 1, RegistrationNo: "REG-1", Name: "Renamed", Mobile: "9000000001",
	})
	s.Require().NoError(err)

	row, err := s.store.FindByNoOrMobile(ctx, "REG-1", "")
	s.Require().NoError(err)
	s.Equal("Renamed", row.Name)
	s.True(row.Confirmation.Sent, "upsert must not reset stage bookkeeping")
	s.NotNil(row.Confirmation.SentAt)
}

func (s *PostgresStoreSuite) TestPendingOrderAndLimit() {
	ctx := context.Background()
	for id := int64(10); id >= 1; id-- {
		s.seed(id)
	}

	pending, err := s.store.Pending(ctx, models.StageConfirmation, 5)
	s.Require().NoError(err)
	s.Require().Len(pending, 5)
	for i, record := range pending {
		s.Equal(int64(i+1), record.RegistrationID, "oldest registration first")
	}
}

func (s *PostgresStoreSuite) TestFailedAttemptStartsCooldown() {
	ctx := context.Background()
	s.seed(1)

	s.Require().NoError(s.store.MarkFailed(ctx, 1, models.StageConfirmation, false))

	pending, err := s.store.Pending(ctx, models.StageConfirmation, 5)
	s.Require().NoError(err)
	s.Empty(pending, "row must cool down after an attempt")
}

func (s *PostgresStoreSuite) TestPermanentFailureExhaustsImmediately() {
	ctx := context.Background()
	s.seed(1)

	s.Require().NoError(s.store.MarkFailed(ctx, 1, models.StageConfirmation, true))

	// Backdate the attempt so the cooldown cannot mask the retry cap.
	_, err := s.postgres.Pool.Exec(ctx,
		`UPDATE registration_sync SET last_attempt = now() - interval '1 hour' WHERE registration_id = 1`)
	s.Require().NoError(err)

	pending, err := s.store.Pending(ctx, models.StageConfirmation, 5)
	s.Require().NoError(err)
	s.Empty(pending)

	stats, err := s.store.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.PermanentlyFailed)
}

func (s *PostgresStoreSuite) TestBarcodeEligibilityWindow() {
	ctx := context.Background()
	s.seed(1)

	pending, err := s.store.Pending(ctx, models.StageBarcode, 5)
	s.Require().NoError(err)
	s.Empty(pending, "barcode must never precede confirmation")

	s.Require().NoError(s.store.MarkSent(ctx, 1, models.StageConfirmation))

	// Backdate the confirmation past the barcode delay.
	_, err = s.postgres.Pool.Exec(ctx,
		`UPDATE registration_sync SET user_sent_at = now() - interval '5 seconds' WHERE registration_id = 1`)
	s.Require().NoError(err)

	pending, err = s.store.Pending(ctx, models.StageBarcode, 5)
	s.Require().NoError(err)
	s.Len(pending, 1)

	won, err := s.store.ClaimProcessing(ctx, 1)
	s.Require().NoError(err)
	s.Require().True(won)

	pending, err = s.store.Pending(ctx, models.StageBarcode, 5)
	s.Require().NoError(err)
	s.Empty(pending, "locked row must not be selected for barcode")
}

func (s *PostgresStoreSuite) TestChangeRequestWaitsOneMinute() {
	ctx := context.Background()
	s.seed(1)
	s.Require().NoError(s.store.MarkSent(ctx, 1, models.StageConfirmation))

	pending, err := s.store.Pending(ctx, models.StageChangeRequest, 5)
	s.Require().NoError(err)
	s.Empty(pending)

	_, err = s.postgres.Pool.Exec(ctx,
		`UPDATE registration_sync SET user_sent_at = now() - interval '2 minutes' WHERE registration_id = 1`)
	s.Require().NoError(err)

	pending, err = s.store.Pending(ctx, models.StageChangeRequest, 5)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *PostgresStoreSuite) TestConcurrentClaimProcessing() {
	ctx := context.Background()
	s.seed(1)

	const workers = 10
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.store.ClaimProcessing(ctx, 1)
			s.NoError(err)
			if won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "exactly one claimant must win the lock")
}

func (s *PostgresStoreSuite) TestMarkSentReleasesBarcodeLock() {
	ctx := context.Background()
	s.seed(1)
	s.Require().NoError(s.store.MarkSent(ctx, 1, models.StageConfirmation))

	won, err := s.store.ClaimProcessing(ctx, 1)
	s.Require().NoError(err)
	s.Require().True(won)

	s.Require().NoError(s.store.MarkSent(ctx, 1, models.StageBarcode))

	won, err = s.store.ClaimProcessing(ctx, 1)
	s.Require().NoError(err)
	s.True(won, "success must release the processing lock")
}

func (s *PostgresStoreSuite) TestReleaseStale() {
	ctx := context.Background()
	s.seed(1)
	s.seed(2)

	won, err := s.store.ClaimProcessing(ctx, 1)
	s.Require().NoError(err)
	s.Require().True(won)

	released, err := s.store.ReleaseStale(ctx, models.StaleLockThreshold)
	s.Require().NoError(err)
	s.Zero(released, "fresh lock must survive the reaper")

	_, err = s.postgres.Pool.Exec(ctx,
		`UPDATE registration_sync SET updated_at = now() - interval '10 minutes' WHERE registration_id = 1`)
	s.Require().NoError(err)

	released, err = s.store.ReleaseStale(ctx, models.StaleLockThreshold)
	s.Require().NoError(err)
	s.Equal(int64(1), released)

	won, err = s.store.ClaimProcessing(ctx, 1)
	s.Require().NoError(err)
	s.True(won, "reaped row is claimable again")
}

func (s *PostgresStoreSuite) TestFindByNoOrMobile() {
	ctx := context.Background()
	s.seed(1)
	s.seed(2)

	row, err := s.store.FindByNoOrMobile(ctx, "REG-2", "")
	s.Require().NoError(err)
	s.Equal(int64(2), row.RegistrationID)

	_, err = s.store.FindByNoOrMobile(ctx, "REG-404", "0000000000")
	s.Error(err)
}

func (s *PostgresStoreSuite) TestWatermark() {
	ctx := context.Background()

	max, err := s.store.MaxRegistrationID(ctx)
	s.Require().NoError(err)
	s.Zero(max)

	s.seed(7)
	s.seed(3)

	max, err = s.store.MaxRegistrationID(ctx)
	s.Require().NoError(err)
	s.Equal(int64(7), max)
}
