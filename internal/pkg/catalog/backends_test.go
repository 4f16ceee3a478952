package catalog

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/database"
	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
)

func newGormBackend(t *testing.T) docstore.Backend {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return docstore.NewGormBackend(db)
}

func newRedisBackend(t *testing.T) docstore.Backend {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return docstore.NewRedisBackend(client, "pricesync")
}

func allBackends() map[string]func(t *testing.T) docstore.Backend {
	return map[string]func(t *testing.T) docstore.Backend{
		"memory":     func(*testing.T) docstore.Backend { return docstore.NewMemoryBackend() },
		"privileged": newGormBackend,
		"degraded":   newRedisBackend,
	}
}

func TestReconcileAcrossBackends(t *testing.T) {
	for name, open := range allBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			seed(t, store,
				planRow("Personal", "Monthly", "Free", "0"),
				planRow("Business", "Monthly", "Team", "99"),
			)
			snapshot := []models.PriceListRow{planRow("Personal", "Monthly", "Startup", "49")}

			res, err := newTestReconciler(store).Reconcile(ctx, snapshot)
			require.NoError(t, err)
			assert.True(t, res.Cleanup.OK())
			assert.Equal(t, 1, res.Cleanup.Deleted)
			assert.Equal(t, 1, res.Count)
			assert.Equal(t, []string{"business__monthly__team", "personal__monthly__startup"}, persistedIDs(t, store))

			doc, err := store.Get(ctx, models.CatalogCollection, "personal__monthly__startup")
			require.NoError(t, err)
			assert.Equal(t, float64(49), doc.Fields["price"])

			meta, err := newTestReconciler(store).Meta(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, meta.Count)
			assert.True(t, meta.UpdatedAt.Equal(fixedNow()))

			again, err := newTestReconciler(store).Reconcile(ctx, snapshot)
			require.NoError(t, err)
			assert.Equal(t, 0, again.Cleanup.Deleted)
			assert.Equal(t, []string{"business__monthly__team", "personal__monthly__startup"}, persistedIDs(t, store))

			got, err := NewResolver(&docstore.Paths{Privileged: store}).Resolve(ctx, Request{
				Segment: "Personal", BillingCycle: "Monthly", PlanName: "Startup",
			})
			require.NoError(t, err)
			assert.Equal(t, "49.00", got.Price.StringFixed(2))
		})
	}
}
