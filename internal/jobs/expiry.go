package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpiryStore marks due cards as expired.
type ExpiryStore interface {
	ExpireBefore(ctx context.Context, year, month int) (int64, error)
}

// ExpirySweeper moves cards whose validity window has passed into the
// EXPIRED status. It is the only mechanism that sets EXPIRED.
type ExpirySweeper struct {
	store ExpiryStore
	log   *logrus.Logger
}

// NewExpirySweeper initializes the sweeper
func NewExpirySweeper(store ExpiryStore, log *logrus.Logger) *ExpirySweeper {
	return &ExpirySweeper{store: store, log: log}
}

// Cutoff returns the month a card must still reach to be considered
// valid: a card expiring in the current month stays usable until the
// month ends.
func Cutoff(now time.Time) (year, month int) {
	return now.Year(), int(now.Month())
}

// Run performs one sweep. Suitable as a cron callback.
func (s *ExpirySweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	year, month := Cutoff(time.Now())
	n, err := s.store.ExpireBefore(ctx, year, month)
	if err != nil {
		s.log.Errorf("Card expiry sweep failed: %v", err)
		return
	}
	if n > 0 {
		s.log.Infof("Card expiry sweep marked %d card(s) EXPIRED", n)
	} else {
		s.log.Debug("Card expiry sweep found nothing to expire")
	}
}
