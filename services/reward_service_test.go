// kodata-dao/services/reward_service_test.go
package services

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"kodata-dao/models"
)

func newRewardHarness(t *testing.T) (*gorm.DB, *chainStub, *RewardService) {
	t.Helper()
	db := newTestDB(t)
	stub := &chainStub{}
	tokens := NewTokenService(db, stub)
	return db, stub, NewRewardService(db, tokens)
}

func rewardApp(svc *RewardService, userID string, admin bool) *fiber.App {
	app := fiber.New()
	app.Get("/rewards/stats", svc.GetStats)
	app.Get("/rewards/:userId", asUser(userID, admin), svc.GetHistory)
	app.Post("/manual-reward", asUser(userID, admin), svc.ManualReward)
	return app
}

func TestManualRewardMints(t *testing.T) {
	db, stub, svc := newRewardHarness(t)

	admin := seedAdmin(t, db)
	user := seedUser(t, db, "0x04a1c0ffee")

	resp := doJSON(t, rewardApp(svc, admin.ID, true), "POST", "/manual-reward", fiber.Map{
		"user_id": user.ID,
		"amount":  50.0,
		"reason":  "community call moderation",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		TxHash     *string `json:"tx_hash"`
		TransferID string  `json:"transfer_id"`
	}
	decodeBody(t, resp, &body)
	require.NotNil(t, body.TxHash)

	var transfer models.TokenTransfer
	require.NoError(t, db.First(&transfer, "id = ?", body.TransferID).Error)
	assert.Equal(t, models.TransferManualReward, transfer.Kind)
	assert.Equal(t, models.TransferSubmitted, transfer.Status)
	assert.Equal(t, 50.0, transfer.Amount)
	require.NotNil(t, transfer.Metadata)
	assert.Contains(t, *transfer.Metadata, "community call moderation")
	assert.Contains(t, *transfer.Metadata, admin.ID)

	require.Len(t, stub.mintCalls, 1)
	assert.Equal(t, user.StarknetAddress, stub.mintCalls[0].recipient)
}

func TestManualRewardCreditsWithoutStarknetAddress(t *testing.T) {
	db, stub, svc := newRewardHarness(t)

	admin := seedAdmin(t, db)
	user := seedUser(t, db, "")

	resp := doJSON(t, rewardApp(svc, admin.ID, true), "POST", "/manual-reward", fiber.Map{
		"user_id": user.ID,
		"amount":  30.0,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Message string  `json:"message"`
		Amount  float64 `json:"amount"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "Reward credited off-chain", body.Message)

	var gotUser models.User
	require.NoError(t, db.First(&gotUser, "id = ?", user.ID).Error)
	assert.Equal(t, 30.0, gotUser.Credits)

	var transfer models.TokenTransfer
	require.NoError(t, db.First(&transfer, "kind = ?", models.TransferManualReward).Error)
	assert.Equal(t, models.TransferFailed, transfer.Status)
	assert.Contains(t, transfer.Error, "credited off-chain")
	assert.Empty(t, stub.mintCalls)
}

func TestManualRewardMintFailure(t *testing.T) {
	db, stub, svc := newRewardHarness(t)
	stub.mintErr = errors.New("starkli: fee estimation failed")

	admin := seedAdmin(t, db)
	user := seedUser(t, db, "0x04a1c0ffee")

	resp := doJSON(t, rewardApp(svc, admin.ID, true), "POST", "/manual-reward", fiber.Map{
		"user_id": user.ID,
		"amount":  20.0,
	})
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var body struct {
		Error      string `json:"error"`
		TransferID string `json:"transfer_id"`
	}
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Error, "fee estimation failed")

	var transfer models.TokenTransfer
	require.NoError(t, db.First(&transfer, "id = ?", body.TransferID).Error)
	assert.Equal(t, models.TransferFailed, transfer.Status)
}

func TestManualRewardValidation(t *testing.T) {
	db, _, svc := newRewardHarness(t)
	admin := seedAdmin(t, db)
	app := rewardApp(svc, admin.ID, true)

	resp := doJSON(t, app, "POST", "/manual-reward", fiber.Map{"user_id": uuid.NewString(), "amount": 10.0})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	user := seedUser(t, db, "0x04a1c0ffee")
	resp = doJSON(t, app, "POST", "/manual-reward", fiber.Map{"user_id": user.ID, "amount": 0})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetHistoryScope(t *testing.T) {
	db, _, svc := newRewardHarness(t)

	admin := seedAdmin(t, db)
	alice := seedUser(t, db, "0x04a1aaaa")
	bob := seedUser(t, db, "0x04a1bbbb")

	for _, kind := range []models.TransferKind{models.TransferSubmissionReward, models.TransferStake} {
		require.NoError(t, db.Create(&models.TokenTransfer{
			ID:        uuid.NewString(),
			Kind:      kind,
			UserID:    &alice.ID,
			Recipient: alice.StarknetAddress,
			Amount:    10,
			Status:    models.TransferSubmitted,
		}).Error)
	}

	resp := doJSON(t, rewardApp(svc, alice.ID, false), "GET", "/rewards/"+alice.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Transfers []models.TokenTransfer `json:"transfers"`
	}
	decodeBody(t, resp, &body)
	assert.Len(t, body.Transfers, 2)

	resp = doJSON(t, rewardApp(svc, alice.ID, false), "GET", "/rewards/"+alice.ID+"?kind=stake", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &body)
	require.Len(t, body.Transfers, 1)
	assert.Equal(t, models.TransferStake, body.Transfers[0].Kind)

	resp = doJSON(t, rewardApp(svc, bob.ID, false), "GET", "/rewards/"+alice.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, rewardApp(svc, admin.ID, true), "GET", "/rewards/"+alice.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestGetStatsAggregatesLedger(t *testing.T) {
	db, _, svc := newRewardHarness(t)

	u1 := seedUser(t, db, "0x04a1aaaa")
	u2 := seedUser(t, db, "0x04a1bbbb")
	require.NoError(t, db.Model(u1).Update("credits", 25).Error)

	rows := []models.TokenTransfer{
		{ID: uuid.NewString(), Kind: models.TransferSubmissionReward, UserID: &u1.ID, Amount: 100, Status: models.TransferSubmitted},
		{ID: uuid.NewString(), Kind: models.TransferManualReward, UserID: &u2.ID, Amount: 50, Status: models.TransferConfirmed},
		{ID: uuid.NewString(), Kind: models.TransferManualReward, UserID: &u1.ID, Amount: 10, Status: models.TransferQueued},
		{ID: uuid.NewString(), Kind: models.TransferSubmissionReward, UserID: &u2.ID, Amount: 100, Status: models.TransferFailed},
		// Stakes are not rewards and must stay out of the totals.
		{ID: uuid.NewString(), Kind: models.TransferStake, UserID: &u1.ID, Amount: 30, Status: models.TransferSubmitted},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	resp := doJSON(t, rewardApp(svc, u1.ID, false), "GET", "/rewards/stats", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		TotalMinted      float64 `json:"total_minted"`
		RewardCount      int64   `json:"reward_count"`
		UniqueRecipients int64   `json:"unique_recipients"`
		PendingRewards   int64   `json:"pending_rewards"`
		FailedRewards    int64   `json:"failed_rewards"`
		OffchainCredits  float64 `json:"offchain_credits"`
		BaseRewardAmount float64 `json:"base_reward_amount"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 150.0, body.TotalMinted)
	assert.EqualValues(t, 2, body.RewardCount)
	assert.EqualValues(t, 2, body.UniqueRecipients)
	assert.EqualValues(t, 1, body.PendingRewards)
	assert.EqualValues(t, 1, body.FailedRewards)
	assert.Equal(t, 25.0, body.OffchainCredits)
	assert.Equal(t, 100.0, body.BaseRewardAmount)
}
