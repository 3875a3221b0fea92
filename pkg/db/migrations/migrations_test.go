package migrations

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/suite"
)

type MigratorTestSuite struct {
	suite.Suite
	db *sqlx.DB
}

func TestMigratorSuite(t *testing.T) {
	suite.Run(t, new(MigratorTestSuite))
}

func (s *MigratorTestSuite) SetupTest() {
	db, err := sqlx.Open("sqlite3", ":memory:")
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	s.db = db
}

func (s *MigratorTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *MigratorTestSuite) TestEmbeddedMigrationsApplyOnce() {
	// Setup
	ctx := context.Background()
	migrator := NewMigrator(s.db, Embedded(), nil)

	// Execute
	first, err := migrator.MigrateUp(ctx)
	s.Require().NoError(err)
	second, err := migrator.MigrateUp(ctx)
	s.Require().NoError(err)

	// Assert
	s.Equal(2, first)
	s.Equal(0, second)
	var tables []string
	s.Require().NoError(s.db.Select(&tables, "SELECT name FROM sqlite_master WHERE type='table' AND name IN ('users','transactions') ORDER BY name"))
	s.Equal([]string{"transactions", "users"}, tables)
}

func (s *MigratorTestSuite) TestLoadMigrationsSorted() {
	// Setup
	source := fstest.MapFS{
		"002_second.sql":    {Data: []byte("SELECT 2;")},
		"001_first_one.sql": {Data: []byte("SELECT 1;")},
		"README.md":         {Data: []byte("ignored")},
	}

	// Execute
	migrations, err := NewMigrator(s.db, source, nil).LoadMigrations()

	// Assert
	s.Require().NoError(err)
	s.Require().Len(migrations, 2)
	s.Equal("001", migrations[0].Version)
	s.Equal("first one", migrations[0].Description)
	s.Equal("002", migrations[1].Version)
}

func (s *MigratorTestSuite) TestInvalidFilename() {
	source := fstest.MapFS{"broken.sql": {Data: []byte("SELECT 1;")}}

	_, err := NewMigrator(s.db, source, nil).LoadMigrations()

	s.Error(err)
}

func (s *MigratorTestSuite) TestCreateMigration() {
	// Setup
	dir, err := os.MkdirTemp("", "migrations-test")
	s.Require().NoError(err)
	defer os.RemoveAll(dir)
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- init"), 0644))

	// Execute
	path, err := CreateMigration(dir, "add index", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	// Assert
	s.Require().NoError(err)
	s.Equal(filepath.Join(dir, "002_add_index.sql"), path)
	content, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Contains(string(content), "-- Migration: add index")
}
