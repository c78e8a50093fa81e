package moderation

import (
	"context"
	"errors"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/foundly/foundly/internal/item"
)

type fakeProvider struct {
	verdict Verdict
	err     error
}

func (p *fakeProvider) Classify(ctx context.Context, imageURL string) (Verdict, error) {
	_ = ctx
	_ = imageURL
	return p.verdict, p.err
}

type fakePublisher struct {
	published []string
}

func (p *fakePublisher) PublishJob(ctx context.Context, jobID, itemID string) error {
	_ = ctx
	_ = itemID
	p.published = append(p.published, jobID)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&item.Item{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, p Provider) (*Service, *item.Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	itemSvc := item.NewService(item.NewRepo(db), nil)
	return NewService(db, itemSvc, p, nil), itemSvc, db
}

func reportPhotoItem(t *testing.T, itemSvc *item.Service) *item.Item {
	t.Helper()
	it, err := itemSvc.Report(context.Background(), 1, item.ReportInput{
		Name: "camera", Description: "dslr", Kind: item.KindFound,
		ImageURL: "https://img.example.com/cam.jpg",
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	return it
}

func TestEnqueueCheck_IdempotentPerItem(t *testing.T) {
	svc, itemSvc, db := newTestService(t, &fakeProvider{})
	it := reportPhotoItem(t, itemSvc)

	pub := &fakePublisher{}
	j1, err := svc.EnqueueCheck(context.Background(), pub, it.ID, it.ImageURL)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	j2, err := svc.EnqueueCheck(context.Background(), pub, it.ID, it.ImageURL)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if j1.ID != j2.ID {
		t.Fatalf("expected same job, got %q and %q", j1.ID, j2.ID)
	}

	var cnt int64
	if err := db.Model(&Job{}).Count(&cnt).Error; err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 job row, got %d", cnt)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.published))
	}
}

func TestHandleJob_SafeApprovesItem(t *testing.T) {
	svc, itemSvc, _ := newTestService(t, &fakeProvider{
		verdict: Verdict{Adult: LikelihoodVeryUnlikely, Violence: LikelihoodUnlikely, Racy: LikelihoodPossible},
	})
	it := reportPhotoItem(t, itemSvc)

	pub := &fakePublisher{}
	j, err := svc.EnqueueCheck(context.Background(), pub, it.ID, it.ImageURL)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := svc.HandleJob(context.Background(), j.ID); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got, err := itemSvc.Get(context.Background(), it.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != item.StatusApproved {
		t.Fatalf("expected approved, got %q", got.Status)
	}

	job, err := svc.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != JobSucceeded || job.Safe == nil || !*job.Safe {
		t.Fatalf("unexpected job state: %+v", job)
	}
}

func TestHandleJob_UnsafeRejectsItemAndClearsImage(t *testing.T) {
	svc, itemSvc, _ := newTestService(t, &fakeProvider{
		verdict: Verdict{Adult: LikelihoodVeryLikely},
	})
	it := reportPhotoItem(t, itemSvc)

	pub := &fakePublisher{}
	j, err := svc.EnqueueCheck(context.Background(), pub, it.ID, it.ImageURL)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := svc.HandleJob(context.Background(), j.ID); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got, err := itemSvc.Get(context.Background(), it.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != item.StatusRejected {
		t.Fatalf("expected rejected, got %q", got.Status)
	}
	if got.ImageURL != "" {
		t.Fatalf("expected image cleared, got %q", got.ImageURL)
	}
}

func TestHandleJob_ProviderFailureMarksJobFailed(t *testing.T) {
	svc, itemSvc, _ := newTestService(t, &fakeProvider{err: errors.New("vision down")})
	it := reportPhotoItem(t, itemSvc)

	pub := &fakePublisher{}
	j, err := svc.EnqueueCheck(context.Background(), pub, it.ID, it.ImageURL)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := svc.HandleJob(context.Background(), j.ID); err == nil {
		t.Fatalf("expected error from handle")
	}

	job, err := svc.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != JobFailed || job.Error == nil {
		t.Fatalf("unexpected job state: %+v", job)
	}

	// the item stays pending for a retry
	got, err := itemSvc.Get(context.Background(), it.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != item.StatusPending {
		t.Fatalf("expected pending, got %q", got.Status)
	}
}

func TestVerdictSafe(t *testing.T) {
	safe := Verdict{Adult: LikelihoodVeryUnlikely, Violence: LikelihoodPossible, Racy: LikelihoodUnlikely}
	if !safe.Safe() {
		t.Fatalf("expected safe verdict")
	}
	for _, v := range []Verdict{
		{Adult: LikelihoodLikely},
		{Violence: LikelihoodVeryLikely},
		{Racy: LikelihoodLikely},
	} {
		if v.Safe() {
			t.Fatalf("expected unsafe verdict for %+v", v)
		}
	}
}
