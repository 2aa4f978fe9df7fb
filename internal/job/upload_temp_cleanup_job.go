package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type TempCleaner interface {
	CleanupTemp(ctx context.Context, before time.Time) (int, error)
}

// UploadTempCleanupJob removes half written upload files left behind by a
// crash between write and rename.
type UploadTempCleanupJob struct {
	store  TempCleaner
	maxAge time.Duration
	now    func() time.Time
}

func NewUploadTempCleanupJob(store TempCleaner, maxAge time.Duration) *UploadTempCleanupJob {
	return &UploadTempCleanupJob{store: store, maxAge: maxAge, now: time.Now}
}

func (j *UploadTempCleanupJob) Name() string {
	return "upload_temp_cleanup"
}

func (j *UploadTempCleanupJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	removed, err := j.store.CleanupTemp(ctx, j.now().Add(-maxAge))
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("stale upload files removed", zap.Int("count", removed))
	}
	return nil
}
