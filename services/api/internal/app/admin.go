package app

import (
	"context"
	"fmt"
	"time"

	"cinelog/pkg/domain"
	"cinelog/pkg/queue"
)

// RequestReconcile enqueues a stats reconciliation job for userID.
func (a *App) RequestReconcile(ctx context.Context, userID string) (queue.Job, error) {
	if a.jobs == nil {
		return queue.Job{}, fmt.Errorf("%w: job queue is not configured", ErrUnavailable)
	}
	if _, err := a.requireUser(ctx, userID); err != nil {
		return queue.Job{}, err
	}
	job, err := a.jobs.Enqueue(ctx, queue.KindReconcileStats, userID)
	if err != nil {
		return queue.Job{}, fmt.Errorf("enqueue reconcile: %w", err)
	}
	return job, nil
}

func (a *App) GetJob(ctx context.Context, jobID string) (queue.Job, error) {
	if err := checkID("job", jobID); err != nil {
		return queue.Job{}, err
	}
	if a.jobs == nil {
		return queue.Job{}, fmt.Errorf("%w: job queue is not configured", ErrUnavailable)
	}
	job, ok, err := a.jobs.GetJob(ctx, jobID)
	if err != nil {
		return queue.Job{}, fmt.Errorf("get job: %w", err)
	}
	if !ok {
		return queue.Job{}, ErrJobNotFound
	}
	return job, nil
}

// SetUserStatus activates or deactivates an account. Deactivation revokes
// the user's outstanding tokens.
func (a *App) SetUserStatus(ctx context.Context, admin domain.User, userID string, active bool) (UserView, error) {
	if admin.ID == userID && !active {
		return UserView{}, fmt.Errorf("%w: cannot deactivate your own account", ErrSelfReference)
	}
	user, err := a.requireUser(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	user.IsActive = active
	user.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return UserView{}, lookupError(err, ErrUserNotFound)
	}
	if !active {
		if err := a.tokens.RevokeUser(ctx, user.ID, time.Now()); err != nil {
			return UserView{}, fmt.Errorf("revoke tokens: %w", err)
		}
	}
	return a.presentUser(ctx, user), nil
}
