package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"device-maintenance-backend/internal/db"
	"device-maintenance-backend/internal/notification"
	"device-maintenance-backend/internal/sla"
	"device-maintenance-backend/internal/store"
)

// newTestStore opens a per-test in-memory SQLite database with the production
// schema applied.
func newTestStore(t *testing.T) (store.Store, *gorm.DB) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := testDB.DB()
		sqlDB.Close()
	})

	require.NoError(t, db.Migrate(testDB))
	return store.NewGormStore(testDB), testDB
}

// sinkStub records events synchronously so tests can assert on exactly what
// the engine raised.
type sinkStub struct {
	mu     sync.Mutex
	events []notification.Event
}

func (s *sinkStub) Notify(ev notification.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sinkStub) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]string, len(s.events))
	for i, ev := range s.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// stubResolver returns fixed SLA terms regardless of the request.
type stubResolver struct {
	terms sla.Terms
}

func (r *stubResolver) Resolve(ctx context.Context, category, severity, impact, priority string) sla.Terms {
	return r.terms
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
