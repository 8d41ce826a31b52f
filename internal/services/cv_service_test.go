package services

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cvmatcher/backend/internal/config"
	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/repositories"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

type cvFixture struct {
	svc     CVService
	storage ObjectStorage
	vectors *memVectorStore
	owner   uint
	other   uint
}

func newCVFixture(t *testing.T) *cvFixture {
	t.Helper()
	db := newTestDB(t)

	users := repositories.NewUserRepository(db)
	owner := &models.User{Email: "hr@example.com", PasswordHash: "x", Role: models.RoleHR}
	other := &models.User{Email: "other@example.com", PasswordHash: "x", Role: models.RoleHR}
	require.NoError(t, users.Create(owner))
	require.NoError(t, users.Create(other))

	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	vectors := &memVectorStore{}

	svc := NewCVService(
		repositories.NewCVRepository(db),
		repositories.NewCollectionRepository(db),
		store,
		NewTextExtractor("", nil, zap.NewNop()),
		NewSearchService(fakeEmbedder{}, vectors, zap.NewNop()),
		zap.NewNop(),
	)
	return &cvFixture{svc: svc, storage: store, vectors: vectors, owner: owner.ID, other: other.ID}
}

func TestCVServiceUploadAndFetch(t *testing.T) {
	f := newCVFixture(t)
	ctx := context.Background()

	cv, err := f.svc.Upload(ctx, f.owner, "jane.txt", []byte("Jane Doe\nPython developer"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nPython developer", cv.ContentText)
	assert.NotEmpty(t, f.vectors.chunks)

	data, name, err := f.svc.File(ctx, f.owner, cv.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane.txt", name)
	assert.Equal(t, "Jane Doe\nPython developer", string(data))

	_, err = f.svc.Get(ctx, f.other, cv.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestCVServiceRejectsUnsupportedExtension(t *testing.T) {
	f := newCVFixture(t)

	_, err := f.svc.Upload(context.Background(), f.owner, "photo.png", []byte("png"), nil)
	assert.True(t, llm.IsValidationError(err))
}

func TestCVServiceUploadIntoForeignCollection(t *testing.T) {
	f := newCVFixture(t)
	ctx := context.Background()

	col, err := f.svc.CreateCollection(ctx, f.other, models.CollectionRequest{Name: "Theirs"})
	require.NoError(t, err)

	_, err = f.svc.Upload(ctx, f.owner, "cv.txt", []byte("text"), &col.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestCVServiceDeleteCollectionCascades(t *testing.T) {
	f := newCVFixture(t)
	ctx := context.Background()

	col, err := f.svc.CreateCollection(ctx, f.owner, models.CollectionRequest{Name: "Backend 2025"})
	require.NoError(t, err)

	_, err = f.svc.CreateCollection(ctx, f.owner, models.CollectionRequest{Name: "backend 2025"})
	assert.ErrorIs(t, err, ErrCollectionExists)

	inCol, err := f.svc.Upload(ctx, f.owner, "a.txt", []byte("Python"), &col.ID)
	require.NoError(t, err)
	loose, err := f.svc.Upload(ctx, f.owner, "b.md", []byte("Sales"), nil)
	require.NoError(t, err)

	got, err := f.svc.GetCollection(ctx, f.owner, col.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.CVCount)

	n, err := f.svc.DeleteCollection(ctx, f.owner, col.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.Get(ctx, f.owner, inCol.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = f.svc.Get(ctx, f.owner, loose.ID)
	assert.NoError(t, err)

	for _, c := range f.vectors.chunks {
		assert.NotEqual(t, inCol.ID, c.CVID)
	}
}

func TestCVServiceAssignCollection(t *testing.T) {
	f := newCVFixture(t)
	ctx := context.Background()

	col, err := f.svc.CreateCollection(ctx, f.owner, models.CollectionRequest{Name: "Shortlist"})
	require.NoError(t, err)
	cv, err := f.svc.Upload(ctx, f.owner, "a.txt", []byte("Python"), nil)
	require.NoError(t, err)

	updated, err := f.svc.AssignCollection(ctx, f.owner, cv.ID, &col.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.CollectionID)
	assert.Equal(t, col.ID, *updated.CollectionID)

	listed, err := f.svc.List(ctx, f.owner, &col.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	updated, err = f.svc.AssignCollection(ctx, f.owner, cv.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.CollectionID)
}

func TestCVServiceMatchInputsKeepsRequestOrder(t *testing.T) {
	f := newCVFixture(t)
	ctx := context.Background()

	a, err := f.svc.Upload(ctx, f.owner, "a.txt", []byte("first"), nil)
	require.NoError(t, err)
	b, err := f.svc.Upload(ctx, f.owner, "b.txt", []byte("second"), nil)
	require.NoError(t, err)
	foreign, err := f.svc.Upload(ctx, f.other, "c.txt", []byte("third"), nil)
	require.NoError(t, err)

	inputs, err := f.svc.MatchInputs(ctx, f.owner, []uint{b.ID, foreign.ID, a.ID, b.ID, 999})
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, b.ID, inputs[0].ID)
	assert.Equal(t, "second", inputs[0].Text)
	assert.Equal(t, "a.txt", inputs[1].Filename)
}
