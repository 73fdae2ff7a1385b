package pipeline

import (
	"context"

	"github.com/ballotline/registry/pkg/kafka"
	"github.com/pkg/errors"
)

// HandleBatch adapts the Kafka consumer to the runner. Returning an error
// leaves the message uncommitted so an aborted run is redelivered.
func (r *Runner) HandleBatch(ctx context.Context, msg *kafka.IncomingMessage) error {
	if msg.Batch == nil {
		return errors.New("message has no parsed batch")
	}

	run, err := r.Run(ctx, msg.Batch.StateCode, msg.Batch.ElectionYear, msg.Batch.Source, msg.Batch.Records)
	if err != nil {
		return errors.Wrapf(err, "ingest run failed for state %s", msg.Batch.StateCode)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":     run.ID,
		"state_code": run.StateCode,
		"offset":     msg.Offset,
	}).Debug("Batch processed")
	return nil
}
