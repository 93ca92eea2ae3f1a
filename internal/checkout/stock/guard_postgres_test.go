package stock

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("POS_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("POS_TEST_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	require.NoError(t, conn.AutoMigrate(&models.Category{}, &models.Product{}))
	return conn
}

func TestDecrementPostgresRowLockPreventsOversell(t *testing.T) {
	conn := openPostgres(t)
	productID := seedProduct(t, conn, 5)
	t.Cleanup(func() {
		conn.Delete(&models.Product{}, "id = ?", productID)
	})

	assertNoOversell(t, db.NewFromConn(conn), productID)
}
