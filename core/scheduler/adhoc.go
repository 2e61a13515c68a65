package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ledgerwire/core/audit"
	"github.com/ledgerwire/core/payment"
	"github.com/ledgerwire/shared/events"
	"github.com/ledgerwire/shared/models"
)

// AdHocDispatcher turns the single scheduler.jobs stream into calls on
// Monitor, dispatching by event.Type the same way a webhook command
// parser dispatches by tagged command, generalized here to job names
// instead of user commands.
type AdHocDispatcher struct {
	monitor *Monitor
}

func NewAdHocDispatcher(monitor *Monitor) *AdHocDispatcher {
	return &AdHocDispatcher{monitor: monitor}
}

// Handle is the events.Handler passed to Scheduler.SetAdHocHandler. A
// returned error asks for a retry: the Scheduler re-enqueues the job with
// its Attempt raised by one, and each handler returns nil once Attempt
// reaches its job's maximum, which ends the retries.
func (d *AdHocDispatcher) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.JobWaitConfirmation:
		return d.handleWaitConfirmation(ctx, event)
	case events.JobRefreshWalletBalance:
		return d.handleRefreshWalletBalance(ctx, event)
	case events.JobRotateKeys:
		return d.handleRotateKeys(ctx, event)
	default:
		return nil // unknown job type: drop rather than retry forever
	}
}

const (
	maxAttemptsWaitConfirmation   = 5
	maxAttemptsRefreshWalletBalance = 3
	maxAttemptsRotateKeys         = 3
)

var waitConfirmationDelays = []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second, 120 * time.Second, 300 * time.Second}
var rotateKeysDelays = []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}

func (d *AdHocDispatcher) handleWaitConfirmation(ctx context.Context, event events.Event) error {
	var job events.WaitConfirmationJob
	if err := decodeJob(event.Data, &job); err != nil {
		return nil
	}
	if job.Attempt >= maxAttemptsWaitConfirmation {
		return nil
	}

	tx, err := d.monitor.transactions.GetByID(ctx, job.TransactionID)
	if err != nil || tx == nil || tx.Status.IsTerminal() {
		return nil
	}
	if tx.SolanaSignature == nil {
		return nil
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	confirmed, err := d.monitor.chainClient.WaitForConfirmation(ctx, *tx.SolanaSignature, timeout)
	if err != nil {
		return err // transient RPC failure: re-enqueued for another attempt
	}
	if confirmed {
		now := time.Now()
		if err := d.monitor.transactions.UpdateStatus(ctx, tx.ID, models.StatusConfirmed, payment.TransactionUpdate{
			ConfirmedAt: &now,
		}); err != nil {
			return err
		}
		d.monitor.invalidateForTx(ctx, tx)
		d.monitor.audit.Log(ctx, audit.Entry{
			UserID:     &tx.SenderID,
			Action:     "transaction_status_update",
			EntityType: "transaction",
			EntityID:   &tx.ID,
		})
		return nil
	}

	if job.Attempt+1 < maxAttemptsWaitConfirmation {
		wait(ctx, waitConfirmationDelays, job.Attempt)
		return errors.New("confirmation not yet observed, scheduling retry")
	}
	return nil
}

func (d *AdHocDispatcher) handleRefreshWalletBalance(ctx context.Context, event events.Event) error {
	var job events.RefreshWalletBalanceJob
	if err := decodeJob(event.Data, &job); err != nil {
		return nil
	}
	if job.Attempt >= maxAttemptsRefreshWalletBalance {
		return nil
	}
	_, err := d.monitor.balances.GetAllBalances(ctx, job.PublicKey, true)
	return err
}

func (d *AdHocDispatcher) handleRotateKeys(ctx context.Context, event events.Event) error {
	var job events.RotateKeysJob
	if err := decodeJob(event.Data, &job); err != nil {
		return nil
	}
	if job.Attempt >= maxAttemptsRotateKeys {
		return nil
	}
	batchSize := job.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	if err := d.monitor.RotateKeys(ctx, job.OldKeyVersion, batchSize); err != nil {
		wait(ctx, rotateKeysDelays, job.Attempt)
		return err
	}
	return nil
}

func decodeJob(data any, target any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

func wait(ctx context.Context, delays []time.Duration, attempt int) {
	if attempt < 0 || attempt >= len(delays) {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(delays[attempt]):
	}
}
