package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/inderhuila/sportsmed/internal/domain/athlete"
	"github.com/inderhuila/sportsmed/internal/domain/catalog"
	"github.com/inderhuila/sportsmed/internal/domain/downloadtoken"
	"github.com/inderhuila/sportsmed/internal/domain/history"
	"github.com/inderhuila/sportsmed/internal/platform/blobstore"
	"github.com/inderhuila/sportsmed/internal/platform/db"
	"github.com/inderhuila/sportsmed/pkg/dates"
)

// testDB is the server every test migrates its own schema into.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

var globalDB *testDB

// TestMain uses INTEGRATION_DATABASE_URL when set and otherwise starts a
// throwaway container. Without either the suite is skipped.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("INTEGRATION_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		if _, err := exec.LookPath("docker"); err != nil {
			fmt.Fprintln(os.Stderr, "skipping integration tests: set INTEGRATION_DATABASE_URL or install docker")
			os.Exit(0)
		}
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
			os.Exit(1)
		}
	}

	pool, err := db.NewPool(ctx, connStr, db.PoolOptions{MaxConns: 10})
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}

	globalDB = &testDB{Pool: pool, ConnStr: connStr, MigrationsDir: findMigrationsDir()}
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// newSchemaPool migrates a fresh schema and returns a pool whose sessions use
// it. The schema is dropped when the test ends.
func newSchemaPool(t *testing.T, prefix string) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	schema := fmt.Sprintf("it_%s_%s", prefix, strings.ReplaceAll(uuid.New().String()[:8], "-", ""))

	migrator := db.NewMigrator(globalDB.Pool, os.DirFS(globalDB.MigrationsDir), schema)
	_, err := migrator.Up(ctx)
	require.NoError(t, err, "migrate %s", schema)

	pool, err := db.NewPool(ctx, globalDB.ConnStr, db.PoolOptions{MaxConns: 5, Schema: schema})
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
		if _, err := globalDB.Pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			t.Logf("warning: drop schema %s: %v", schema, err)
		}
	})
	return pool
}

// stack is the service graph the server wires, on one test schema.
type stack struct {
	pool      *pgxpool.Pool
	catalogs  *catalog.Service
	athletes  *athlete.Service
	histories *history.Service
	tokens    *downloadtoken.Service
}

func newStack(t *testing.T, prefix string) *stack {
	t.Helper()
	pool := newSchemaPool(t, prefix)
	txm := db.NewTxManager(pool)
	logger := zerolog.Nop()
	files := blobstore.NewMemoryStore(blobstore.DefaultMaxFileSize)

	catalogs := catalog.NewService(catalog.NewRepoPG(pool), txm, logger)
	_, err := catalogs.Seed(context.Background(), catalog.DefaultSeed())
	require.NoError(t, err)

	athletes := athlete.NewService(athlete.NewRepoPG(pool), files, logger)
	renderer := history.NewPDFRenderer(time.UTC)
	histories := history.NewService(history.NewRepoPG(pool), txm, athletes, catalogs, files, renderer, logger)
	tokens := downloadtoken.NewService(downloadtoken.NewRepoPG(pool), txm, histories, renderer,
		downloadtoken.Options{BaseURL: "https://salud.example.org"}, logger)

	return &stack{pool: pool, catalogs: catalogs, athletes: athletes, histories: histories, tokens: tokens}
}

func (s *stack) itemID(t *testing.T, catalogName, code string) uuid.UUID {
	t.Helper()
	id, err := s.catalogs.ItemID(context.Background(), catalogName, code)
	require.NoError(t, err)
	return id
}

func (s *stack) createAthlete(t *testing.T, documentNumber string) *athlete.Athlete {
	t.Helper()
	a := &athlete.Athlete{
		DocumentTypeID: s.itemID(t, catalog.DocumentType, "CC"),
		DocumentNumber: documentNumber,
		FirstNames:     "Laura",
		LastNames:      "Perdomo Silva",
		BirthDate:      dates.NewDate(time.Date(2001, 3, 14, 0, 0, 0, 0, time.UTC)),
		SexID:          s.itemID(t, catalog.Sex, "F"),
		Email:          "laura@example.org",
		Sport:          "Atletismo",
		StatusID:       s.itemID(t, catalog.AthleteStatus, "ACT"),
	}
	require.NoError(t, s.athletes.Create(context.Background(), a))
	return a
}

func (s *stack) createHistory(t *testing.T, athleteID uuid.UUID) *history.ClinicalHistory {
	t.Helper()
	weight, height := 58.0, 168.0
	req := &history.CompleteRequest{
		AthleteID: athleteID,
		Sections: history.Sections{
			ConsultationReason: &history.ConsultationReason{Reason: "Control pretemporada"},
			VitalSigns:         &history.VitalSigns{WeightKG: &weight, HeightCM: &height},
			Diagnoses:          []history.Diagnosis{{Name: "Sana", CIE11Code: "QA00"}},
		},
	}
	h, err := s.histories.CreateComplete(context.Background(), req)
	require.NoError(t, err)
	return h
}
