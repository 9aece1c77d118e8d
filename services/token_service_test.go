// kodata-dao/services/token_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"kodata-dao/models"
)

func newTokenHarness(t *testing.T) (*gorm.DB, *chainStub, *TokenService) {
	t.Helper()
	db := newTestDB(t)
	stub := &chainStub{}
	return db, stub, NewTokenService(db, stub)
}

func tokenApp(svc *TokenService, userID string) *fiber.App {
	app := fiber.New()
	app.Get("/balance/:address", svc.GetBalance)
	app.Get("/info", svc.GetTokenInfo)
	app.Post("/stake", asUser(userID, false), svc.Stake)
	app.Post("/unstake", asUser(userID, false), svc.Unstake)
	app.Post("/claim-rewards", asUser(userID, false), svc.ClaimRewards)
	app.Post("/mint", asUser(userID, true), svc.AdminMint)
	app.Post("/transfer", asUser(userID, true), svc.AdminTransfer)
	return app
}

func TestGetBalanceZeroForUnseenAddress(t *testing.T) {
	_, stub, svc := newTokenHarness(t)
	stub.balance = 0

	app := tokenApp(svc, "")
	resp := doJSON(t, app, "GET", "/balance/0x04a1fresh", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// An address the chain has never seen holds zero; that is not an error.
	var body struct {
		Address string  `json:"address"`
		Balance float64 `json:"balance"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "0x04a1fresh", body.Address)
	assert.Equal(t, 0.0, body.Balance)
}

func TestGetBalanceValidation(t *testing.T) {
	_, stub, svc := newTokenHarness(t)
	app := tokenApp(svc, "")

	resp := doJSON(t, app, "GET", "/balance/deadbeef", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	stub.balanceErr = errors.New("rpc timeout")
	resp = doJSON(t, app, "GET", "/balance/0x04a1fresh", nil)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
}

func TestGetTokenInfo(t *testing.T) {
	_, stub, svc := newTokenHarness(t)
	app := tokenApp(svc, "")

	resp := doJSON(t, app, "GET", "/info", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "MAD", body.Symbol)
	assert.EqualValues(t, 18, body.Decimals)

	stub.infoErr = errors.New("contract not deployed")
	resp = doJSON(t, app, "GET", "/info", nil)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
}

func TestStakeRecordsTransfer(t *testing.T) {
	db, stub, svc := newTokenHarness(t)
	user := seedUser(t, db, "0x04a1c0ffee")

	app := tokenApp(svc, user.ID)
	resp := doJSON(t, app, "POST", "/stake", fiber.Map{"amount": 25.0})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Message    string  `json:"message"`
		TxHash     *string `json:"tx_hash"`
		TransferID string  `json:"transfer_id"`
	}
	decodeBody(t, resp, &body)
	require.NotNil(t, body.TxHash)

	var transfer models.TokenTransfer
	require.NoError(t, db.First(&transfer, "id = ?", body.TransferID).Error)
	assert.Equal(t, models.TransferStake, transfer.Kind)
	assert.Equal(t, models.TransferSubmitted, transfer.Status)
	assert.Equal(t, 25.0, transfer.Amount)
	assert.Equal(t, user.StarknetAddress, transfer.Recipient)

	assert.Equal(t, []float64{25}, stub.stakeAmounts)
}

func TestStakeValidation(t *testing.T) {
	db, _, svc := newTokenHarness(t)

	noAddr := seedUser(t, db, "")
	resp := doJSON(t, tokenApp(svc, noAddr.ID), "POST", "/stake", fiber.Map{"amount": 10.0})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	user := seedUser(t, db, "0x04a1c0ffee")
	app := tokenApp(svc, user.ID)

	resp = doJSON(t, app, "POST", "/stake", fiber.Map{"amount": 0})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, "POST", "/stake", fiber.Map{"amount": -3})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	var transferCount int64
	db.Model(&models.TokenTransfer{}).Count(&transferCount)
	assert.Zero(t, transferCount)
}

func TestClaimRewardsNeedsNoAmount(t *testing.T) {
	db, _, svc := newTokenHarness(t)
	user := seedUser(t, db, "0x04a1c0ffee")

	resp := doJSON(t, tokenApp(svc, user.ID), "POST", "/claim-rewards", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var transfer models.TokenTransfer
	require.NoError(t, db.First(&transfer, "kind = ?", models.TransferClaimRewards).Error)
	assert.Equal(t, models.TransferSubmitted, transfer.Status)
}

func TestStakeFailureMarksTransfer(t *testing.T) {
	db, stub, svc := newTokenHarness(t)
	stub.stakeErr = errors.New("starkli: invoke reverted")
	user := seedUser(t, db, "0x04a1c0ffee")

	resp := doJSON(t, tokenApp(svc, user.ID), "POST", "/stake", fiber.Map{"amount": 5.0})
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var body struct {
		Error      string `json:"error"`
		TransferID string `json:"transfer_id"`
	}
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Error, "invoke reverted")

	// The intent row survives as FAILED so nothing on-chain is invisible.
	var transfer models.TokenTransfer
	require.NoError(t, db.First(&transfer, "id = ?", body.TransferID).Error)
	assert.Equal(t, models.TransferFailed, transfer.Status)
	assert.Contains(t, transfer.Error, "invoke reverted")
}

func TestAdminMintValidation(t *testing.T) {
	db, _, svc := newTokenHarness(t)
	admin := seedAdmin(t, db)
	app := tokenApp(svc, admin.ID)

	resp := doJSON(t, app, "POST", "/mint", fiber.Map{"to": "not-an-address", "amount": 10.0})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, "POST", "/mint", fiber.Map{"to": "0x04a1dead", "amount": -1})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminMintRecordsTransfer(t *testing.T) {
	db, stub, svc := newTokenHarness(t)
	admin := seedAdmin(t, db)

	resp := doJSON(t, tokenApp(svc, admin.ID), "POST", "/mint", fiber.Map{"to": "0x04a1dead", "amount": 40.0})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var transfer models.TokenTransfer
	require.NoError(t, db.First(&transfer, "kind = ?", models.TransferAdminMint).Error)
	assert.Equal(t, models.TransferSubmitted, transfer.Status)
	assert.Equal(t, "0x04a1dead", transfer.Recipient)
	require.Len(t, stub.mintCalls, 1)
	assert.Equal(t, 40.0, stub.mintCalls[0].amount)
}

func TestExecuteRejectsUnknownKind(t *testing.T) {
	db, _, svc := newTokenHarness(t)

	transfer := &models.TokenTransfer{
		ID:     uuid.NewString(),
		Kind:   models.TransferKind("teleport"),
		Status: models.TransferQueued,
	}
	require.NoError(t, db.Create(transfer).Error)

	err := svc.Execute(context.Background(), transfer)
	require.Error(t, err)

	var got models.TokenTransfer
	require.NoError(t, db.First(&got, "id = ?", transfer.ID).Error)
	assert.Equal(t, models.TransferFailed, got.Status)
	assert.Contains(t, got.Error, "unknown transfer kind")
}
