//go:build integration

package sources

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/suite"
)

const (
	postgresUser     = "assistant"
	postgresPassword = "assistant_pwd"
	postgresDB       = "assistant_test"
)

func TestStorePostgres(t *testing.T) {
	suite.Run(t, new(StorePostgresSuite))
}

type StorePostgresSuite struct {
	suite.Suite
	pool     *dockertest.Pool
	resource *dockertest.Resource
	db       *sql.DB
	dsn      string
}

func (s *StorePostgresSuite) SetupSuite() {
	pool, err := dockertest.NewPool("")
	if err != nil {
		s.T().Fatalf("Could not connect to docker: %s", err)
	}
	s.pool = pool

	resource, err := pool.Run("postgres", "16-alpine", []string{
		"POSTGRES_USER=" + postgresUser,
		"POSTGRES_PASSWORD=" + postgresPassword,
		"POSTGRES_DB=" + postgresDB,
	})
	if err != nil {
		s.T().Fatalf("Could not start postgres: %s", err)
	}
	s.resource = resource
	_ = resource.Expire(120)

	s.dsn = fmt.Sprintf("postgres://%s:%s@localhost:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, resource.GetPort("5432/tcp"), postgresDB)

	if err := pool.Retry(func() error {
		db, err := sql.Open("pgx", s.dsn)
		if err != nil {
			return err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return err
		}
		s.db = db
		return nil
	}); err != nil {
		s.T().Fatalf("Could not connect to postgres: %s", err)
	}

	_, err = s.db.Exec(`CREATE TABLE messages (
		id SERIAL PRIMARY KEY,
		room TEXT,
		username TEXT,
		message TEXT,
		timestamp TIMESTAMPTZ
	)`)
	s.Require().NoError(err)
	_, err = s.db.Exec(`INSERT INTO messages (room, username, message, timestamp) VALUES
		('general', 'kim', '긴급 배포 확인', '2024-03-05 10:00:00+00'),
		('general', 'lee', 'ok', '2024-03-05 10:01:00+00'),
		('random', 'park', 'lunch', '2024-03-05 10:02:00+00')`)
	s.Require().NoError(err)
}

func (s *StorePostgresSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.pool != nil && s.resource != nil {
		_ = s.pool.Purge(s.resource)
	}
}

func (s *StorePostgresSuite) TestCollect() {
	src := NewStoreSource(StoreConfig{DSN: s.dsn, Room: "general", Since: 24 * time.Hour})
	src.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }

	records, err := src.Collect(context.Background())
	s.NoError(err)
	s.Require().Len(records, 2)
	s.Equal("1", records[0].Row.ID)
	s.Equal("kim", records[0].Row.Username)
	s.Equal("긴급 배포 확인", records[0].Row.Message)
	s.NotEmpty(records[0].Row.Timestamp)
}
