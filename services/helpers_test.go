// kodata-dao/services/helpers_test.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"kodata-dao/chain"
	"kodata-dao/middleware"
	"kodata-dao/models"
	"kodata-dao/utils"
)

// newTestDB opens an in-memory database with the full schema. A single
// connection keeps every query on the same in-memory instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.Task{},
		&models.Submission{},
		&models.TokenTransfer{},
		&models.Proposal{},
		&models.Vote{},
	))
	return db
}

type mintCall struct {
	recipient string
	amount    float64
}

type approveCall struct {
	contributor string
	contentHash string
}

// chainStub is a scriptable StarknetClient. The zero value answers every call
// successfully with canned data; set the err/status fields to script outages.
type chainStub struct {
	mu sync.Mutex

	balance     float64
	balanceErr  error
	infoErr     error
	mintErr     error
	transferErr error
	stakeErr    error
	approveErr  error
	txStatus    chain.TxStatus
	txStatusErr error

	mintCalls    []mintCall
	approveCalls []approveCall
	stakeAmounts []float64
	invocations  int
}

func (s *chainStub) nextHash(prefix string) string {
	s.invocations++
	return fmt.Sprintf("0x%s%04d", prefix, s.invocations)
}

func (s *chainStub) GetTokenInfo(ctx context.Context) (*chain.TokenInfo, error) {
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	return &chain.TokenInfo{
		Address:     "0x04a1token",
		Name:        "MAD Token",
		Symbol:      "MAD",
		Decimals:    18,
		TotalSupply: 1_000_000,
	}, nil
}

func (s *chainStub) GetContractInfo(ctx context.Context) (*chain.ContractInfo, error) {
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	return &chain.ContractInfo{Address: "0x04a1platform", Admin: "0x04a1admin", SubmissionCount: 7}, nil
}

func (s *chainStub) GetBalance(ctx context.Context, address string) (float64, error) {
	return s.balance, s.balanceErr
}

func (s *chainStub) ApproveSubmission(ctx context.Context, contributor, contentHash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.approveErr != nil {
		return "", s.approveErr
	}
	s.approveCalls = append(s.approveCalls, approveCall{contributor: contributor, contentHash: contentHash})
	return s.nextHash("a9"), nil
}

func (s *chainStub) Mint(ctx context.Context, recipient string, amount float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mintErr != nil {
		return "", s.mintErr
	}
	s.mintCalls = append(s.mintCalls, mintCall{recipient: recipient, amount: amount})
	return s.nextHash("b1"), nil
}

func (s *chainStub) Transfer(ctx context.Context, recipient string, amount float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transferErr != nil {
		return "", s.transferErr
	}
	return s.nextHash("c2"), nil
}

func (s *chainStub) Stake(ctx context.Context, amount float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stakeErr != nil {
		return "", s.stakeErr
	}
	s.stakeAmounts = append(s.stakeAmounts, amount)
	return s.nextHash("d3"), nil
}

func (s *chainStub) Unstake(ctx context.Context, amount float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stakeErr != nil {
		return "", s.stakeErr
	}
	return s.nextHash("e4"), nil
}

func (s *chainStub) ClaimRewards(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextHash("f5"), nil
}

func (s *chainStub) TransactionStatus(ctx context.Context, txHash string) (chain.TxStatus, error) {
	if s.txStatusErr != nil {
		return "", s.txStatusErr
	}
	if s.txStatus == "" {
		return chain.TxConfirmed, nil
	}
	return s.txStatus, nil
}

func (s *chainStub) ChainStatus(ctx context.Context) chain.Status {
	return chain.Status{Reachable: true, ChainID: "SN_SEPOLIA", BlockNumber: 42}
}

// relayerStub records enqueued submission ids in place of the real relayer.
type relayerStub struct {
	mu   sync.Mutex
	ids  []string
	full bool
}

func (r *relayerStub) Enqueue(submissionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.ids = append(r.ids, submissionID)
	return true
}

func (r *relayerStub) QueueDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *relayerStub) enqueued() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

// reputationStub stands in for the Lisk client.
type reputationStub struct {
	result    chain.TxResult
	reachable bool
}

func (s *reputationStub) IncreaseReputation(ctx context.Context, contributor string, points int64) chain.TxResult {
	return s.result
}

func (s *reputationStub) ChainStatus(ctx context.Context) chain.Status {
	if s.reachable {
		return chain.Status{Reachable: true, ChainID: "4202", BlockNumber: 9}
	}
	return chain.Status{Reachable: false, Error: "dial tcp: connection refused"}
}

// asUser injects the locals the auth middleware would have set.
func asUser(userID string, admin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.UserIDKey, userID)
		c.Locals(middleware.IsAdminKey, admin)
		return c.Next()
	}
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func randomWallet() string {
	raw := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return "0x" + raw[:40]
}

func seedUser(t *testing.T, db *gorm.DB, starknetAddress string) *models.User {
	t.Helper()
	user := &models.User{
		ID:              uuid.NewString(),
		WalletAddress:   randomWallet(),
		StarknetAddress: starknetAddress,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	admin := &models.User{
		ID:            uuid.NewString(),
		WalletAddress: randomWallet(),
		IsAdmin:       true,
	}
	require.NoError(t, db.Create(admin).Error)
	return admin
}

func seedTask(t *testing.T, db *gorm.DB, createdBy string, status models.TaskStatus) *models.Task {
	t.Helper()
	id := uuid.NewString()
	task := &models.Task{
		ID:        id,
		Title:     "Label road signs",
		Slug:      "label-road-signs-" + id[:8],
		Status:    status,
		CreatedBy: createdBy,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func seedSubmission(t *testing.T, db *gorm.DB, taskID, userID string, status models.SubmissionStatus) *models.Submission {
	t.Helper()
	id := uuid.NewString()
	content := []byte("payload-" + id)
	submission := &models.Submission{
		ID:          id,
		TaskID:      taskID,
		UserID:      userID,
		ContentHash: utils.SHA256Hex(content),
		StorageKey:  "submissions/" + taskID + "/" + id + ".txt",
		StorageURL:  "/uploads/submissions/" + taskID + "/" + id + ".txt",
		Status:      status,
	}
	require.NoError(t, db.Create(submission).Error)
	return submission
}
