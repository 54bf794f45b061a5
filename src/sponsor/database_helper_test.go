package sponsor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mysomeid/sponsor/src/utils/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// In memory database shared by all connections opened with the same name
func testDatabaseName(t *testing.T) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
}

func openTestDatabase(name string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	err = db.AutoMigrate(model.Tables()...)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func mustOpenTestDatabase(t *testing.T) *gorm.DB {
	db, err := openTestDatabase(testDatabaseName(t))
	require.NoError(t, err)
	return db
}

func testConnector(name string) model.Connector {
	return func(ctx context.Context) (*gorm.DB, error) {
		return openTestDatabase(name)
	}
}
