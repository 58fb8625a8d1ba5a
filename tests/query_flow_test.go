package tests

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/queryloom/queryloom/app/dto"
	businessflow "github.com/queryloom/queryloom/business_flow"
	"github.com/queryloom/queryloom/models"
	"github.com/queryloom/queryloom/repository"
	testingutil "github.com/queryloom/queryloom/testing"
	"github.com/queryloom/queryloom/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueryFlow(testDB *testingutil.TestDB) businessflow.QueryFlow {
	return businessflow.NewQueryFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewThreadRepository(testDB.DB),
		repository.NewMessageRepository(testDB.DB),
		repository.NewQueryTaskRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		nil,
		nil,
		testDB.DB,
	)
}

func newChatFlow(testDB *testingutil.TestDB) businessflow.ChatFlow {
	return businessflow.NewChatFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewThreadRepository(testDB.DB),
		repository.NewMessageRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		testDB.DB,
	)
}

func TestSubmitQuery(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newQueryFlow(testDB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		user, err := fixtures.CreateTestUser("acme", models.UserRoleUser)
		require.NoError(t, err)

		var firstThreadID string

		t.Run("CreatesThreadAndPendingTask", func(t *testing.T) {
			result, err := flow.SubmitQuery(context.Background(), &dto.SubmitQueryRequest{
				TenantID: "acme",
				UserID:   user.ID,
				Question: "total sales by region",
			}, metadata)
			require.NoError(t, err)
			assert.NotEmpty(t, result.TaskID)
			assert.NotEmpty(t, result.ThreadID)
			firstThreadID = result.ThreadID

			threadRepo := repository.NewThreadRepository(testDB.DB)
			thread, err := threadRepo.ByUUID(context.Background(), uuid.MustParse(result.ThreadID))
			require.NoError(t, err)
			require.NotNil(t, thread)
			assert.Equal(t, utils.DefaultThreadTitle, thread.Title)

			taskRepo := repository.NewQueryTaskRepository(testDB.DB)
			task, err := taskRepo.ByTaskID(context.Background(), uuid.MustParse(result.TaskID))
			require.NoError(t, err)
			require.NotNil(t, task)
			assert.Equal(t, models.QueryTaskStatusPending, task.Status)

			messageRepo := repository.NewMessageRepository(testDB.DB)
			pending, err := messageRepo.LastWithoutResult(context.Background(), thread.ID)
			require.NoError(t, err)
			require.NotNil(t, pending)
			assert.Equal(t, "total sales by region", pending.Question)
		})

		t.Run("FollowUpReusesThread", func(t *testing.T) {
			result, err := flow.SubmitQuery(context.Background(), &dto.SubmitQueryRequest{
				TenantID: "acme",
				UserID:   user.ID,
				Question: "only for Q1",
				ThreadID: &firstThreadID,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, firstThreadID, result.ThreadID)

			threadRepo := repository.NewThreadRepository(testDB.DB)
			thread, err := threadRepo.ByUUID(context.Background(), uuid.MustParse(firstThreadID))
			require.NoError(t, err)

			messageRepo := repository.NewMessageRepository(testDB.DB)
			messages, err := messageRepo.ListByThread(context.Background(), thread.ID)
			require.NoError(t, err)
			assert.Len(t, messages, 2)
		})

		t.Run("BlankQuestionRejected", func(t *testing.T) {
			_, err := flow.SubmitQuery(context.Background(), &dto.SubmitQueryRequest{
				TenantID: "acme",
				UserID:   user.ID,
				Question: "   ",
			}, metadata)
			require.Error(t, err)
		})

		t.Run("ViewerCannotSubmit", func(t *testing.T) {
			viewer, err := fixtures.CreateTestUser("acme", models.UserRoleViewer)
			require.NoError(t, err)

			_, err = flow.SubmitQuery(context.Background(), &dto.SubmitQueryRequest{
				TenantID: "acme",
				UserID:   viewer.ID,
				Question: "total sales",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsQueryNotPermitted(err))
		})

		t.Run("ForeignThreadRejected", func(t *testing.T) {
			other, err := fixtures.CreateTestUser("acme", models.UserRoleUser)
			require.NoError(t, err)

			_, err = flow.SubmitQuery(context.Background(), &dto.SubmitQueryRequest{
				TenantID: "acme",
				UserID:   other.ID,
				Question: "sneaky question",
				ThreadID: &firstThreadID,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsThreadAccessDenied(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGetResult(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newQueryFlow(testDB)
		taskRepo := repository.NewQueryTaskRepository(testDB.DB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		user, err := fixtures.CreateTestUser("acme", models.UserRoleUser)
		require.NoError(t, err)

		submitted, err := flow.SubmitQuery(context.Background(), &dto.SubmitQueryRequest{
			TenantID: "acme",
			UserID:   user.ID,
			Question: "total sales",
		}, metadata)
		require.NoError(t, err)

		t.Run("PendingBeforeProcessing", func(t *testing.T) {
			result, err := flow.GetResult(context.Background(), submitted.TaskID, "acme", user.ID, metadata)
			require.NoError(t, err)
			assert.Equal(t, dto.TaskStatusPending, result.Status)
			assert.NotNil(t, result.Columns, "collections are never null on the wire")
			assert.NotNil(t, result.Suggestions)
		})

		t.Run("RunningReportsPendingOnTheWire", func(t *testing.T) {
			task, err := taskRepo.ByTaskID(context.Background(), uuid.MustParse(submitted.TaskID))
			require.NoError(t, err)
			task.Status = models.QueryTaskStatusRunning
			require.NoError(t, taskRepo.Update(context.Background(), task))

			result, err := flow.GetResult(context.Background(), submitted.TaskID, "acme", user.ID, metadata)
			require.NoError(t, err)
			assert.Equal(t, dto.TaskStatusPending, result.Status)
		})

		t.Run("CompletedCarriesResult", func(t *testing.T) {
			task, err := taskRepo.ByTaskID(context.Background(), uuid.MustParse(submitted.TaskID))
			require.NoError(t, err)
			task.SQL = "SELECT region, SUM(amount) FROM sales GROUP BY region"
			task.Columns = pq.StringArray{"region", "sum"}
			task.Rows = json.RawMessage(`[{"region":"west","sum":42}]`)
			task.RowCount = 1
			task.Success = utils.ToPtr(true)
			require.NoError(t, taskRepo.MarkCompleted(context.Background(), task))

			result, err := flow.GetResult(context.Background(), submitted.TaskID, "acme", user.ID, metadata)
			require.NoError(t, err)
			assert.Equal(t, dto.TaskStatusCompleted, result.Status)
			assert.True(t, result.Success)
			assert.Equal(t, 1, result.RowCount)
			assert.Equal(t, []string{"region", "sum"}, result.Columns)
		})

		t.Run("CrossUserAccessDenied", func(t *testing.T) {
			other, err := fixtures.CreateTestUser("acme", models.UserRoleUser)
			require.NoError(t, err)

			_, err = flow.GetResult(context.Background(), submitted.TaskID, "acme", other.ID, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsTaskAccessDenied(err))
		})

		t.Run("UnknownTask", func(t *testing.T) {
			_, err := flow.GetResult(context.Background(), uuid.New().String(), "acme", user.ID, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsTaskNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestChatFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		queryFlow := newQueryFlow(testDB)
		chatFlow := newChatFlow(testDB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		user, err := fixtures.CreateTestUser("acme", models.UserRoleUser)
		require.NoError(t, err)

		first, err := queryFlow.SubmitQuery(context.Background(), &dto.SubmitQueryRequest{
			TenantID: "acme",
			UserID:   user.ID,
			Question: "total sales",
		}, metadata)
		require.NoError(t, err)

		second, err := queryFlow.SubmitQuery(context.Background(), &dto.SubmitQueryRequest{
			TenantID: "acme",
			UserID:   user.ID,
			Question: "orders per customer",
		}, metadata)
		require.NoError(t, err)
		require.NotEqual(t, first.ThreadID, second.ThreadID)

		t.Run("HistoryListsAllMessages", func(t *testing.T) {
			history, err := chatFlow.ChatHistory(context.Background(), &dto.ChatHistoryRequest{
				UserID:   user.ID,
				TenantID: "acme",
			}, metadata)
			require.NoError(t, err)
			require.Len(t, history.Messages, 2)

			threadIDs := map[string]bool{}
			for _, m := range history.Messages {
				threadIDs[m.ThreadID] = true
				assert.False(t, m.HasResult)
			}
			assert.Len(t, threadIDs, 2)
		})

		t.Run("RenameThread", func(t *testing.T) {
			renamed, err := chatFlow.RenameThread(context.Background(), &dto.RenameThreadRequest{
				ThreadID: first.ThreadID,
				TenantID: "acme",
				Title:    "Sales deep dive",
			}, user.ID, metadata)
			require.NoError(t, err)
			assert.Equal(t, "Sales deep dive", renamed.Title)
		})

		t.Run("RenameForeignThreadDenied", func(t *testing.T) {
			other, err := fixtures.CreateTestUser("acme", models.UserRoleUser)
			require.NoError(t, err)

			_, err = chatFlow.RenameThread(context.Background(), &dto.RenameThreadRequest{
				ThreadID: first.ThreadID,
				TenantID: "acme",
				Title:    "hijacked",
			}, other.ID, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsThreadAccessDenied(err))
		})

		t.Run("DeleteThreadRemovesMessages", func(t *testing.T) {
			_, err := chatFlow.DeleteThread(context.Background(), &dto.DeleteThreadRequest{
				ThreadID: second.ThreadID,
				TenantID: "acme",
			}, user.ID, metadata)
			require.NoError(t, err)

			history, err := chatFlow.ChatHistory(context.Background(), &dto.ChatHistoryRequest{
				UserID:   user.ID,
				TenantID: "acme",
			}, metadata)
			require.NoError(t, err)
			require.Len(t, history.Messages, 1)
			assert.Equal(t, first.ThreadID, history.Messages[0].ThreadID)
		})

		t.Run("DeleteUnknownThread", func(t *testing.T) {
			_, err := chatFlow.DeleteThread(context.Background(), &dto.DeleteThreadRequest{
				ThreadID: uuid.New().String(),
				TenantID: "acme",
			}, user.ID, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsThreadNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}
