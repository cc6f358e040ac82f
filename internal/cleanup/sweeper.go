// Package cleanup runs the background sweep that permanently removes
// accounts left deactivated past the cutoff.
package cleanup

import (
	"context"
	"log"
	"time"

	"github.com/tutorhub/tutorhub/internal/filestore"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// Sweeper periodically deletes accounts whose latest history event is a
// deactivation older than the cutoff, cascading over every dependent row and
// removing the stored files the cascade orphans.
type Sweeper struct {
	Repo     *repository.CleanupRepo
	Files    *filestore.Store
	Interval time.Duration
	Cutoff   time.Duration
}

func NewSweeper(repo *repository.CleanupRepo, files *filestore.Store, interval, cutoff time.Duration) *Sweeper {
	return &Sweeper{Repo: repo, Files: files, Interval: interval, Cutoff: cutoff}
}

// Run executes one sweep immediately, then one per interval until ctx is
// cancelled. Runs on its own goroutine for the process lifetime.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("cleanup: sweeper stopping")
			return
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single cycle. Each account's cascade is an independent
// transaction: a failure on one account is logged and the cycle moves on, so
// one broken row never blocks the rest of the backlog.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.Cutoff)
	stale, err := s.Repo.StaleDeactivated(ctx, cutoff)
	if err != nil {
		log.Printf("cleanup: selecting stale accounts: %v", err)
		return
	}
	if len(stale) == 0 {
		log.Printf("cleanup: sweep complete, nothing to delete")
		return
	}

	deleted := 0
	for _, a := range stale {
		if ctx.Err() != nil {
			return
		}
		orphans, err := s.Repo.DeleteAccountCascade(ctx, a)
		if err != nil {
			log.Printf("cleanup: deleting account %s: %v", a.Username, err)
			continue
		}
		for _, f := range orphans {
			_ = s.Files.Remove(f)
		}
		deleted++
	}
	log.Printf("cleanup: sweep complete, deleted %d of %d stale accounts", deleted, len(stale))
}
