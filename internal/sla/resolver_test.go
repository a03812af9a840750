package sla

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"device-maintenance-backend/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	testDB, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := testDB.DB()
		sqlDB.Close()
	})
	require.NoError(t, testDB.AutoMigrate(&model.SLADefinition{}))
	return testDB
}

func TestResolver_Resolve(t *testing.T) {
	testDB := newTestDB(t)
	resolver := NewResolver(testDB, 24, 72)
	ctx := context.Background()

	definitions := []model.SLADefinition{
		{Name: "catch-all", ResponseTimeHours: 12, ResolutionTimeHours: 48, IsActive: true},
		{Name: "imaging", DeviceCategory: "imaging", ResponseTimeHours: 8, ResolutionTimeHours: 24, IsActive: true},
		{Name: "imaging critical", DeviceCategory: "imaging", Priority: model.PriorityCritical,
			ResponseTimeHours: 1, ResolutionTimeHours: 6, IsActive: true},
		{Name: "retired", DeviceCategory: "imaging", ResponseTimeHours: 99, ResolutionTimeHours: 99, IsActive: false},
	}
	for i := range definitions {
		require.NoError(t, testDB.Create(&definitions[i]).Error)
	}

	t.Run("most specific match wins", func(t *testing.T) {
		terms := resolver.Resolve(ctx, "imaging", "", "", model.PriorityCritical)
		assert.Equal(t, "imaging critical", terms.Name)
		assert.Equal(t, 1, terms.ResponseHours)
	})

	t.Run("category match beats the catch-all", func(t *testing.T) {
		terms := resolver.Resolve(ctx, "imaging", "", "", model.PriorityLow)
		assert.Equal(t, "imaging", terms.Name)
	})

	t.Run("wildcard definition applies when nothing specific matches", func(t *testing.T) {
		terms := resolver.Resolve(ctx, "laboratory", "", "", model.PriorityMedium)
		assert.Equal(t, "catch-all", terms.Name)
		assert.Equal(t, 12, terms.ResponseHours)
		assert.Equal(t, 48, terms.ResolutionHours)
	})

	t.Run("inactive definitions are ignored", func(t *testing.T) {
		terms := resolver.Resolve(ctx, "imaging", "", "", "")
		assert.NotEqual(t, "retired", terms.Name)
	})
}

func TestResolver_Fallback(t *testing.T) {
	testDB := newTestDB(t)
	resolver := NewResolver(testDB, 24, 72)

	terms := resolver.Resolve(context.Background(), "imaging", "", "", model.PriorityHigh)
	assert.Equal(t, "system default", terms.Name)
	assert.Equal(t, 24, terms.ResponseHours)
	assert.Equal(t, 72, terms.ResolutionHours)
}

func TestTerms_Deadlines(t *testing.T) {
	from := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	terms := Terms{ResponseHours: 4, ResolutionHours: 24}

	response, resolution := terms.Deadlines(from)
	assert.Equal(t, from.Add(4*time.Hour), response)
	assert.Equal(t, from.Add(24*time.Hour), resolution)
}
