package repositories

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cvmatcher/backend/internal/config"
	"cvmatcher/backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "hash", Role: role}
	require.NoError(t, NewUserRepository(db).Create(user))
	return user
}

func TestUserRepositoryEmailIsCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	created := createUser(t, db, "  HR@Example.com ", models.RoleHR)

	found, err := repo.FindByEmail("hr@example.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "hr@example.com", found.Email)

	_, err = repo.FindByEmail("nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.UpdatePassword(created.ID, "new-hash"))
	found, err = repo.FindByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", found.PasswordHash)

	require.NoError(t, repo.UpdateAvatarPath(created.ID, "avatars/user-1/a.png"))
	found, err = repo.FindByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "avatars/user-1/a.png", found.AvatarPath)

	assert.ErrorIs(t, repo.UpdateAvatarPath(9999, "x"), ErrNotFound)
}

func TestLLMConfigUpsertReplacesWholeConfig(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "a@example.com", models.RoleCandidate)
	repo := NewLLMConfigRepository(db)

	_, err := repo.FindByUserID(user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Upsert(&models.LLMConfig{
		UserID: user.ID, Provider: "openai", APIKey: "sk-1", ModelName: "gpt-4o-mini",
		Temperature: 0.2, TopP: 1, MaxTokens: 1024,
	}))
	require.NoError(t, repo.Upsert(&models.LLMConfig{
		UserID: user.ID, Provider: "ollama", ModelName: "llama3", BaseURL: "http://localhost:11434",
		Temperature: 0.5, TopP: 0.9, MaxTokens: 512,
	}))

	cfg, err := repo.FindByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Provider)
	assert.Empty(t, cfg.APIKey, "previous api key must not survive a full replace")
	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
	assert.Equal(t, 512, cfg.MaxTokens)

	var count int64
	require.NoError(t, db.Model(&models.LLMConfig{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCollectionDeleteCascadesToCVs(t *testing.T) {
	db := newTestDB(t)
	hr := createUser(t, db, "hr@example.com", models.RoleHR)
	collections := NewCollectionRepository(db)
	cvs := NewCVRepository(db)

	collection := &models.Collection{OwnerID: hr.ID, Name: "Backend"}
	require.NoError(t, collections.Create(collection))

	inCollection := &models.CV{OwnerID: hr.ID, CollectionID: &collection.ID, Filename: "a.pdf", ObjectKey: "user-1/a.pdf"}
	outside := &models.CV{OwnerID: hr.ID, Filename: "b.pdf", ObjectKey: "user-1/b.pdf"}
	require.NoError(t, cvs.Create(inCollection))
	require.NoError(t, cvs.Create(outside))

	listed, err := collections.ListByOwner(hr.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.EqualValues(t, 1, listed[0].CVCount)

	deleted, err := collections.Delete(hr.ID, collection.ID)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, inCollection.ID, deleted[0].ID)

	_, err = cvs.FindByID(hr.ID, inCollection.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = cvs.FindByID(hr.ID, outside.ID)
	assert.NoError(t, err)

	_, err = collections.Delete(hr.ID, collection.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCVRepositoryOwnership(t *testing.T) {
	db := newTestDB(t)
	owner := createUser(t, db, "owner@example.com", models.RoleHR)
	other := createUser(t, db, "other@example.com", models.RoleHR)
	repo := NewCVRepository(db)

	cv := &models.CV{OwnerID: owner.ID, Filename: "cv.txt", ObjectKey: "k", ContentText: "Go developer"}
	require.NoError(t, repo.Create(cv))

	_, err := repo.FindByID(other.ID, cv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := repo.FindByIDs(owner.ID, []uint{cv.ID, 9999})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = repo.FindByIDs(other.ID, []uint{cv.ID})
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.ErrorIs(t, repo.Delete(other.ID, cv.ID), ErrNotFound)

	meta := datatypes.JSON(`{"full_name":"Ada"}`)
	require.NoError(t, repo.UpdateParsedMetadata(owner.ID, cv.ID, meta))
	reloaded, err := repo.FindByID(owner.ID, cv.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"full_name":"Ada"}`, string(reloaded.ParsedMetadata))

	collection := &models.Collection{OwnerID: owner.ID, Name: "Data"}
	require.NoError(t, NewCollectionRepository(db).Create(collection))
	require.NoError(t, repo.AssignCollection(owner.ID, cv.ID, &collection.ID))

	inCollection, err := repo.ListByOwner(owner.ID, &collection.ID)
	require.NoError(t, err)
	assert.Len(t, inCollection, 1)

	require.NoError(t, repo.AssignCollection(owner.ID, cv.ID, nil))
	inCollection, err = repo.ListByOwner(owner.ID, &collection.ID)
	require.NoError(t, err)
	assert.Empty(t, inCollection)
}

func TestEvaluationRepositoryLifecycle(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "eval@example.com", models.RoleHR)
	repo := NewEvaluationRepository(db)

	run := &models.EvaluationRun{
		OwnerID: user.ID, DatasetKey: "user-1/eval.csv", CVColumn: "cv", JDColumn: "jd", LabelColumn: "label",
		Threshold: 0.5, Status: models.StatusQueued,
	}
	require.NoError(t, repo.Create(run))

	pending, err := repo.FindPendingRuns(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	claimed, err := repo.ClaimQueued(run.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ClaimQueued(run.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "a run is claimed only once")

	requeued, err := repo.Requeue(run.ID)
	require.NoError(t, err)
	assert.True(t, requeued)
	requeued, err = repo.Requeue(run.ID)
	require.NoError(t, err)
	assert.False(t, requeued, "only processing runs are requeued")

	claimed, err = repo.ClaimQueued(run.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	n, err := repo.RequeueStale(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "recently claimed runs stay in processing")

	require.NoError(t, repo.UpdateMetrics(run.ID, datatypes.JSON(`{"accuracy":1}`)))
	done, err := repo.FindByOwner(user.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)

	_, err = repo.FindByOwner(user.ID+1, run.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
