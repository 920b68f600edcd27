// Package workflow implements the document review state machine: reviewer
// assignment, review transitions, retention calculation, archival and
// restore.
//
// Every transition follows the same shape: the primary state change commits
// in one transaction guarded by a per-document advisory lock, and only on
// that success do the side effects (notification, audit) run, each wrapped
// individually so one effect's failure never blocks another's.
package workflow

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lexvault/document-workflow-service/internal/repository"
)

// DB is the database handle the workflow engine needs: direct queries for
// reads plus transactions with per-document advisory locks for transitions.
// *database.DB satisfies it.
type DB interface {
	repository.DBTX
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
	AcquireAdvisoryLockTx(ctx context.Context, tx pgx.Tx, key int64) error
}

// Repos bundles the repositories the engine operates on.
type Repos struct {
	Users      repository.UserRepository
	Documents  repository.DocumentRepository
	Reviews    repository.ReviewRepository
	Retentions repository.RetentionRepository
	Archives   repository.ArchiveRepository
}

// RepoFactory builds a repository set over the given DBTX. The engine calls
// it twice: once over the pool for reads, and once per transaction so all
// writes of a transition share the same tx.
type RepoFactory func(db repository.DBTX) Repos

// PgRepos is the production RepoFactory backed by the PostgreSQL
// implementations.
func PgRepos(db repository.DBTX) Repos {
	return Repos{
		Users:      repository.NewPgUserRepository(db),
		Documents:  repository.NewPgDocumentRepository(db),
		Reviews:    repository.NewPgReviewRepository(db),
		Retentions: repository.NewPgRetentionRepository(db),
		Archives:   repository.NewPgArchiveRepository(db),
	}
}

// FileStore removes stored version files during permanent deletion.
// Deletion is best-effort; failures are logged and do not abort the delete.
type FileStore interface {
	Delete(ctx context.Context, path string) error
}

// documentLockKey derives the advisory lock key for a document from its UUID.
func documentLockKey(id [16]byte) int64 {
	h := fnv.New64a()
	h.Write(id[:])
	return int64(h.Sum64())
}

// nowUTC is the default clock.
func nowUTC() time.Time {
	return time.Now().UTC()
}
