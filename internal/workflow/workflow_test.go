package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/lexvault/document-workflow-service/internal/domain"
	"github.com/lexvault/document-workflow-service/internal/observability"
	"github.com/lexvault/document-workflow-service/internal/repository"
)

// testNamespaceSeq keeps prometheus namespaces unique per test, since
// promauto registers against the global registry.
var testNamespaceSeq int64

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("docflow_wf_test_%d", atomic.AddInt64(&testNamespaceSeq, 1)))
}

// ---------------------------------------------------------------------------
// Fake DB: transactions are pass-through, advisory locks are no-ops.
// ---------------------------------------------------------------------------

type fakeDB struct {
	txErr error
}

func (d *fakeDB) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if d.txErr != nil {
		return d.txErr
	}
	return fn(nil)
}

func (d *fakeDB) AcquireAdvisoryLockTx(ctx context.Context, tx pgx.Tx, key int64) error {
	return nil
}

func (d *fakeDB) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (d *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func (d *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memUserRepo struct {
	mu    sync.Mutex
	users []*domain.User
}

func (r *memUserRepo) add(u *domain.User) { r.users = append(r.users, u) }

func (r *memUserRepo) Get(ctx context.Context, firmID, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id && u.FirmID == firmID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.NewNotFoundError("user", id.String())
}

func (r *memUserRepo) ListActiveByRole(ctx context.Context, firmID uuid.UUID, role domain.ReviewerRole) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.FirmID == firmID && u.Role == role && u.IsActive {
			copied := *u
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memDocumentRepo struct {
	mu       sync.Mutex
	docs     map[uuid.UUID]*domain.Document
	versions []*domain.DocumentVersion

	createErr  error
	versionErr error
}

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{docs: make(map[uuid.UUID]*domain.Document)}
}

func (r *memDocumentRepo) add(doc *domain.Document) {
	copied := *doc
	r.docs[doc.ID] = &copied
}

func (r *memDocumentRepo) get(id uuid.UUID) *domain.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		copied := *doc
		return &copied
	}
	return nil
}

func (r *memDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; ok {
		return domain.NewAlreadyExistsError("document", doc.ID.String())
	}
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *memDocumentRepo) Get(ctx context.Context, firmID, id uuid.UUID) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.FirmID != firmID {
		return nil, domain.NewNotFoundError("document", id.String())
	}
	copied := *doc
	return &copied, nil
}

func (r *memDocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.NewNotFoundError("document", id.String())
	}
	copied := *doc
	return &copied, nil
}

func (r *memDocumentRepo) Update(ctx context.Context, firmID, id uuid.UUID, fn func(*domain.Document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.FirmID != firmID {
		return domain.NewNotFoundError("document", id.String())
	}
	copied := *doc
	if err := fn(&copied); err != nil {
		return err
	}
	copied.UpdatedAt = time.Now().UTC()
	r.docs[id] = &copied
	return nil
}

func (r *memDocumentRepo) List(ctx context.Context, filter repository.DocumentFilter) ([]*domain.Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Document
	for _, doc := range r.docs {
		if doc.FirmID == filter.FirmID {
			copied := *doc
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memDocumentRepo) CountInFlightForReviewer(ctx context.Context, reviewerID uuid.UUID, role domain.ReviewerRole) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, doc := range r.docs {
		assigned := doc.AssigneeForRole(role)
		if assigned == nil || *assigned != reviewerID {
			continue
		}
		for _, stage := range role.InFlightStages() {
			if doc.WorkflowStage == stage {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *memDocumentRepo) CreateVersion(ctx context.Context, version *domain.DocumentVersion) error {
	if r.versionErr != nil {
		return r.versionErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.versions {
		if v.DocumentID == version.DocumentID {
			v.IsCurrentVersion = false
		}
	}
	copied := *version
	r.versions = append(r.versions, &copied)
	return nil
}

func (r *memDocumentRepo) ListVersions(ctx context.Context, documentID uuid.UUID) ([]*domain.DocumentVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DocumentVersion
	for i := len(r.versions) - 1; i >= 0; i-- {
		if r.versions[i].DocumentID == documentID {
			copied := *r.versions[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memDocumentRepo) Delete(ctx context.Context, firmID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.FirmID != firmID {
		return domain.NewNotFoundError("document", id.String())
	}
	delete(r.docs, id)
	return nil
}

type memReviewRepo struct {
	mu        sync.Mutex
	reviews   []*domain.DocumentReview
	checklist []*domain.DocumentChecklistResult

	checklistErrs int // number of CreateChecklistResults calls to fail
}

func (r *memReviewRepo) CreateReview(ctx context.Context, review *domain.DocumentReview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.ID == review.ID {
			return domain.NewAlreadyExistsError("review", review.ID.String())
		}
	}
	copied := *review
	r.reviews = append(r.reviews, &copied)
	return nil
}

func (r *memReviewRepo) CreateChecklistResults(ctx context.Context, results []*domain.DocumentChecklistResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.checklistErrs > 0 {
		r.checklistErrs--
		return fmt.Errorf("checklist write failed")
	}
outer:
	for _, res := range results {
		for _, existing := range r.checklist {
			if existing.ReviewID == res.ReviewID && existing.ChecklistItemID == res.ChecklistItemID {
				continue outer
			}
		}
		copied := *res
		r.checklist = append(r.checklist, &copied)
	}
	return nil
}

func (r *memReviewRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.DocumentReview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DocumentReview
	for i := len(r.reviews) - 1; i >= 0; i-- {
		if r.reviews[i].DocumentID == documentID {
			copied := *r.reviews[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memReviewRepo) ListChecklistResults(ctx context.Context, reviewID uuid.UUID) ([]*domain.DocumentChecklistResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DocumentChecklistResult
	for _, res := range r.checklist {
		if res.ReviewID == reviewID {
			copied := *res
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memRetentionRepo struct {
	mu         sync.Mutex
	policies   []*domain.RetentionPolicy
	retentions map[uuid.UUID]*domain.DocumentRetention // by document ID
}

func newMemRetentionRepo() *memRetentionRepo {
	return &memRetentionRepo{retentions: make(map[uuid.UUID]*domain.DocumentRetention)}
}

func (r *memRetentionRepo) CreatePolicy(ctx context.Context, policy *domain.RetentionPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.policies {
		if p.ID == policy.ID {
			return domain.NewAlreadyExistsError("retention policy", policy.ID.String())
		}
	}
	copied := *policy
	r.policies = append(r.policies, &copied)
	return nil
}

func (r *memRetentionRepo) GetPolicy(ctx context.Context, firmID, id uuid.UUID) (*domain.RetentionPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.policies {
		if p.ID == id && p.FirmID == firmID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, domain.NewNotFoundError("retention policy", id.String())
}

func (r *memRetentionRepo) UpdatePolicy(ctx context.Context, policy *domain.RetentionPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.policies {
		if p.ID == policy.ID {
			copied := *policy
			r.policies[i] = &copied
			return nil
		}
	}
	return domain.NewNotFoundError("retention policy", policy.ID.String())
}

func (r *memRetentionRepo) SetDefaultPolicy(ctx context.Context, firmID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var target *domain.RetentionPolicy
	for _, p := range r.policies {
		if p.ID == id && p.FirmID == firmID {
			target = p
			break
		}
	}
	if target == nil {
		return domain.NewNotFoundError("retention policy", id.String())
	}
	for _, p := range r.policies {
		if p.FirmID == firmID && p.DocumentType == target.DocumentType {
			p.IsDefault = false
		}
	}
	target.IsDefault = true
	return nil
}

func (r *memRetentionRepo) GetDefaultPolicy(ctx context.Context, firmID uuid.UUID, documentType string) (*domain.RetentionPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.policies {
		if p.FirmID == firmID && p.DocumentType == documentType && p.IsDefault && p.IsActive {
			copied := *p
			return &copied, nil
		}
	}
	return nil, domain.NewNotFoundError("default retention policy", documentType)
}

func (r *memRetentionRepo) ListPolicies(ctx context.Context, firmID uuid.UUID, activeOnly bool) ([]*domain.RetentionPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RetentionPolicy
	for _, p := range r.policies {
		if p.FirmID != firmID {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		copied := *p
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memRetentionRepo) CreateRetention(ctx context.Context, retention *domain.DocumentRetention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.retentions[retention.DocumentID]; ok {
		return domain.NewAlreadyExistsError("document retention", retention.DocumentID.String())
	}
	copied := *retention
	r.retentions[retention.DocumentID] = &copied
	return nil
}

func (r *memRetentionRepo) GetByDocument(ctx context.Context, documentID uuid.UUID) (*domain.DocumentRetention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret, ok := r.retentions[documentID]
	if !ok {
		return nil, domain.NewNotFoundError("document retention", documentID.String())
	}
	copied := *ret
	return &copied, nil
}

func (r *memRetentionRepo) UpdateRetention(ctx context.Context, retention *domain.DocumentRetention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.retentions[retention.DocumentID]; !ok {
		return domain.NewNotFoundError("document retention", retention.DocumentID.String())
	}
	copied := *retention
	copied.UpdatedAt = time.Now().UTC()
	r.retentions[retention.DocumentID] = &copied
	return nil
}

func (r *memRetentionRepo) MarkArchived(ctx context.Context, documentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret, ok := r.retentions[documentID]
	if !ok {
		return domain.NewNotFoundError("document retention", documentID.String())
	}
	ret.IsArchived = true
	return nil
}

func (r *memRetentionRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.DocumentRetention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DocumentRetention
	for _, ret := range r.retentions {
		if ret.IsArchived || ret.ExpiryDate.After(now) {
			continue
		}
		copied := *ret
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRetentionRepo) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.retentions, documentID)
	return nil
}

type memArchiveRepo struct {
	mu       sync.Mutex
	archives []*domain.Archive

	// createErrFor fails Create for one document, for failure injection.
	createErrFor uuid.UUID
}

func (r *memArchiveRepo) Create(ctx context.Context, archive *domain.Archive) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErrFor != uuid.Nil && archive.DocumentID == r.createErrFor {
		return fmt.Errorf("insert failed")
	}
	for _, a := range r.archives {
		if a.DocumentID == archive.DocumentID && a.IsActive() {
			return domain.NewAlreadyExistsError("active archive", archive.DocumentID.String())
		}
	}
	copied := *archive
	r.archives = append(r.archives, &copied)
	return nil
}

func (r *memArchiveRepo) Get(ctx context.Context, firmID, id uuid.UUID) (*domain.Archive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.archives {
		if a.ID == id && a.FirmID == firmID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, domain.NewNotFoundError("archive", id.String())
}

func (r *memArchiveRepo) GetActiveByDocument(ctx context.Context, documentID uuid.UUID) (*domain.Archive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.archives {
		if a.DocumentID == documentID && a.IsActive() {
			copied := *a
			return &copied, nil
		}
	}
	return nil, domain.NewNotFoundError("active archive", documentID.String())
}

func (r *memArchiveRepo) MarkRestored(ctx context.Context, firmID, id uuid.UUID, restoredByID uuid.UUID, restoredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.archives {
		if a.ID == id && a.FirmID == firmID && a.IsActive() {
			a.IsRestored = true
			a.RestoredByID = &restoredByID
			a.RestoredAt = &restoredAt
			return nil
		}
	}
	return domain.NewNotFoundError("active archive", id.String())
}

func (r *memArchiveRepo) MarkDeleted(ctx context.Context, firmID, id uuid.UUID, deletedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.archives {
		if a.ID == id && a.FirmID == firmID && a.IsActive() {
			a.IsDeleted = true
			a.DeletedAt = &deletedAt
			return nil
		}
	}
	return domain.NewNotFoundError("active archive", id.String())
}

func (r *memArchiveRepo) List(ctx context.Context, filter repository.ArchiveFilter) ([]*domain.Archive, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Archive
	for _, a := range r.archives {
		if a.FirmID != filter.FirmID {
			continue
		}
		if filter.ActiveOnly && !a.IsActive() {
			continue
		}
		copied := *a
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

// ---------------------------------------------------------------------------
// Capture sinks and file store
// ---------------------------------------------------------------------------

type captureSink struct {
	mu            sync.Mutex
	notifications []*domain.Notification
	audits        []*domain.AuditEvent
	notifyErr     error
	auditErr      error
}

func (s *captureSink) Notify(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifyErr != nil {
		return s.notifyErr
	}
	copied := *n
	s.notifications = append(s.notifications, &copied)
	return nil
}

func (s *captureSink) Audit(ctx context.Context, e *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditErr != nil {
		return s.auditErr
	}
	copied := *e
	s.audits = append(s.audits, &copied)
	return nil
}

func (s *captureSink) notifiedUsers() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.notifications))
	for _, n := range s.notifications {
		ids = append(ids, n.UserID)
	}
	return ids
}

func (s *captureSink) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, 0, len(s.audits))
	for _, e := range s.audits {
		actions = append(actions, e.Action)
	}
	return actions
}

type captureFileStore struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *captureFileStore) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, path)
	return nil
}

// ---------------------------------------------------------------------------
// Test environment
// ---------------------------------------------------------------------------

type testEnv struct {
	engine   *Engine
	archiver *Archiver
	db       *fakeDB
	users    *memUserRepo
	docs     *memDocumentRepo
	reviews  *memReviewRepo
	rets     *memRetentionRepo
	archives *memArchiveRepo
	sink     *captureSink
	files    *captureFileStore

	firmID uuid.UUID
	now    time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		db:       &fakeDB{},
		users:    &memUserRepo{},
		docs:     newMemDocumentRepo(),
		reviews:  &memReviewRepo{},
		rets:     newMemRetentionRepo(),
		archives: &memArchiveRepo{},
		sink:     &captureSink{},
		files:    &captureFileStore{},
		firmID:   uuid.New(),
		now:      time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}

	repos := Repos{
		Users:      env.users,
		Documents:  env.docs,
		Reviews:    env.reviews,
		Retentions: env.rets,
		Archives:   env.archives,
	}
	factory := func(db repository.DBTX) Repos { return repos }

	metrics := newTestMetrics()
	logger := zerolog.Nop()
	effects := NewEffectRunner(env.sink, env.sink, metrics, logger)

	env.archiver = NewArchiver(env.db, factory, effects, metrics, logger)
	env.archiver.now = func() time.Time { return env.now }

	env.engine = NewEngine(env.db, factory, env.archiver, effects, env.files, metrics, logger)
	env.engine.now = func() time.Time { return env.now }

	return env
}

func (env *testEnv) addUser(role domain.ReviewerRole) *domain.User {
	u := &domain.User{
		ID:       uuid.New(),
		FirmID:   env.firmID,
		Name:     fmt.Sprintf("%s user", role),
		Email:    fmt.Sprintf("%s@example.com", uuid.New()),
		Role:     role,
		IsActive: true,
	}
	env.users.add(u)
	return u
}

func (env *testEnv) addDocument(stage domain.WorkflowStage, status domain.DocumentStatus) *domain.Document {
	doc := &domain.Document{
		ID:             uuid.New(),
		FirmID:         env.firmID,
		OwnerID:        uuid.New(),
		Title:          "engagement letter",
		Status:         status,
		WorkflowStage:  stage,
		DocumentType:   "Contract",
		CurrentVersion: 1,
		CreatedAt:      env.now,
		UpdatedAt:      env.now,
	}
	env.docs.add(doc)
	return doc
}
