package batches

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newFailingRepository returns a dry-run repository whose inserts fail with
// insertErr, the way a translated driver error would.
func newFailingRepository(t *testing.T, insertErr error) Repository {
	db, err := gorm.Open(postgres.Open("host=localhost user=portal dbname=portal sslmode=disable"), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_insert", func(tx *gorm.DB) {
		tx.AddError(insertErr)
	}))
	return NewRepository(db)
}

func testSource() *BatchSource {
	return &BatchSource{
		ID:           uuid.New(),
		BatchID:      uuid.New(),
		LandID:       uuid.New(),
		VolumeKg:     250,
		LandSnapshot: datatypes.NewJSONType(LandSnapshot{Name: "Kebun Utara"}),
	}
}

func TestRepository_CreateSourceDuplicateLand(t *testing.T) {
	repo := newFailingRepository(t, gorm.ErrDuplicatedKey)

	err := repo.CreateSource(context.Background(), testSource())

	assert.ErrorIs(t, err, ErrLandAlreadyUsed)
}

func TestRepository_CreateSourceOtherErrorsPassThrough(t *testing.T) {
	boom := errors.New("connection reset")
	repo := newFailingRepository(t, boom)

	err := repo.CreateSource(context.Background(), testSource())

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrLandAlreadyUsed)
}
