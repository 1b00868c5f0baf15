package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/l2settle/committer/internal/ports"
)

// InsertBlockSubmission records a newly committed block header. Idempotence
// by hash is NOT enforced here; callers must avoid double-submit by
// checking LatestBlockSubmission first (spec §4.1).
func (p *Postgres) InsertBlockSubmission(ctx context.Context, sub ports.BlockSubmission) error {
	const q = `
		INSERT INTO block_submissions (fuel_block_hash, fuel_block_height, completed, submittal_height)
		VALUES ($1, $2, $3, $4)`
	_, err := p.pool.Exec(ctx, q, sub.FuelBlockHash[:], sub.FuelBlockHeight, sub.Completed, sub.SubmittalHeight)
	return errors.Wrap(err, "inserting block submission")
}

// LatestBlockSubmission returns the submission with the greatest
// fuel_block_height.
func (p *Postgres) LatestBlockSubmission(ctx context.Context) (ports.BlockSubmission, bool, error) {
	const q = `
		SELECT fuel_block_hash, fuel_block_height, completed, submittal_height
		FROM block_submissions ORDER BY fuel_block_height DESC LIMIT 1`

	var (
		sub  ports.BlockSubmission
		hash []byte
	)
	err := p.pool.QueryRow(ctx, q).Scan(&hash, &sub.FuelBlockHeight, &sub.Completed, &sub.SubmittalHeight)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.BlockSubmission{}, false, nil
	}
	if err != nil {
		return ports.BlockSubmission{}, false, errors.Wrap(err, "querying latest block submission")
	}
	copy(sub.FuelBlockHash[:], hash)
	return sub, true, nil
}

// MarkBlockSubmissionCompleted sets completed=true for the given hash.
func (p *Postgres) MarkBlockSubmissionCompleted(ctx context.Context, hash [32]byte) (ports.BlockSubmission, error) {
	const q = `
		UPDATE block_submissions SET completed = true
		WHERE fuel_block_hash = $1
		RETURNING fuel_block_hash, fuel_block_height, completed, submittal_height`

	var (
		sub      ports.BlockSubmission
		gotHash  []byte
	)
	err := p.pool.QueryRow(ctx, q, hash[:]).Scan(&gotHash, &sub.FuelBlockHeight, &sub.Completed, &sub.SubmittalHeight)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.BlockSubmission{}, errors.Wrapf(ports.ErrNotFound, "block submission %x", hash)
	}
	if err != nil {
		return ports.BlockSubmission{}, errors.Wrap(err, "marking block submission completed")
	}
	copy(sub.FuelBlockHash[:], gotHash)
	return sub, nil
}

// IncompleteBlockSubmissions returns every submission not yet marked
// completed, so callers can resume an event subscription from the oldest
// one still outstanding (spec §4.3 step 1).
func (p *Postgres) IncompleteBlockSubmissions(ctx context.Context) ([]ports.BlockSubmission, error) {
	const q = `
		SELECT fuel_block_hash, fuel_block_height, completed, submittal_height
		FROM block_submissions WHERE completed = false`

	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "querying incomplete block submissions")
	}
	defer rows.Close()

	var out []ports.BlockSubmission
	for rows.Next() {
		var (
			sub  ports.BlockSubmission
			hash []byte
		)
		if err := rows.Scan(&hash, &sub.FuelBlockHeight, &sub.Completed, &sub.SubmittalHeight); err != nil {
			return nil, errors.Wrap(err, "scanning block submission")
		}
		copy(sub.FuelBlockHash[:], hash)
		out = append(out, sub)
	}
	return out, errors.Wrap(rows.Err(), "iterating block submissions")
}

// InsertStateSubmission atomically persists a StateSubmission and its
// fragments (invariant I3).
func (p *Postgres) InsertStateSubmission(ctx context.Context, sub ports.StateSubmission, fragments []ports.StateFragment) error {
	if len(fragments) == 0 {
		return ports.ErrEmptyFragments
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertSubmission = `
		INSERT INTO state_submissions (fuel_block_hash, fuel_block_height)
		VALUES ($1, $2) RETURNING id`
	var submissionID int64
	err = tx.QueryRow(ctx, insertSubmission, sub.FuelBlockHash[:], sub.FuelBlockHeight).Scan(&submissionID)
	if err != nil {
		return errors.Wrap(err, "inserting state submission")
	}

	const insertFragment = `
		INSERT INTO state_fragments (submission_id, fragment_idx, data, created_at)
		VALUES ($1, $2, $3, $4)`
	for _, f := range fragments {
		_, err = tx.Exec(ctx, insertFragment, submissionID, f.FragmentIdx, f.Data, f.CreatedAt)
		if err != nil {
			return errors.Wrapf(err, "inserting fragment %d", f.FragmentIdx)
		}
	}

	return errors.Wrap(tx.Commit(ctx), "committing state submission")
}

// LatestStateSubmission returns the submission with the greatest
// fuel_block_height.
func (p *Postgres) LatestStateSubmission(ctx context.Context) (ports.StateSubmission, bool, error) {
	const q = `
		SELECT id, fuel_block_hash, fuel_block_height
		FROM state_submissions ORDER BY fuel_block_height DESC LIMIT 1`

	var (
		sub  ports.StateSubmission
		hash []byte
	)
	err := p.pool.QueryRow(ctx, q).Scan(&sub.ID, &hash, &sub.FuelBlockHeight)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.StateSubmission{}, false, nil
	}
	if err != nil {
		return ports.StateSubmission{}, false, errors.Wrap(err, "querying latest state submission")
	}
	copy(sub.FuelBlockHash[:], hash)
	return sub, true, nil
}

// OutstandingFragments returns up to limit fragments not linked to any
// transaction in {Pending, Finalized} (invariant I2), ordered by
// created_at ascending.
func (p *Postgres) OutstandingFragments(ctx context.Context, limit int) ([]ports.StateFragment, error) {
	const q = `
		SELECT f.id, f.submission_id, f.fragment_idx, f.data, f.created_at
		FROM state_fragments f
		WHERE f.id NOT IN (
			SELECT l.fragment_id
			FROM transaction_fragment_links l
			JOIN submission_transactions t ON t.id = l.transaction_id
			WHERE t.state IN ($1, $2)
		)
		ORDER BY f.created_at ASC, f.id ASC
		LIMIT $3`

	rows, err := p.pool.Query(ctx, q, ports.TransactionStatePending, ports.TransactionStateFinalized, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying outstanding fragments")
	}
	defer rows.Close()

	var out []ports.StateFragment
	for rows.Next() {
		var f ports.StateFragment
		if err := rows.Scan(&f.ID, &f.SubmissionID, &f.FragmentIdx, &f.Data, &f.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning fragment")
		}
		out = append(out, f)
	}
	return out, errors.Wrap(rows.Err(), "iterating fragments")
}

// RecordPendingTx atomically creates a Pending transaction row and links it
// to every fragment id (invariant I3).
func (p *Postgres) RecordPendingTx(ctx context.Context, hash [32]byte, fragmentIDs []int64) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertTx = `
		INSERT INTO submission_transactions (hash, state)
		VALUES ($1, $2) RETURNING id`
	var txID int64
	err = tx.QueryRow(ctx, insertTx, hash[:], ports.TransactionStatePending).Scan(&txID)
	if err != nil {
		return errors.Wrap(err, "inserting submission transaction")
	}

	const insertLink = `
		INSERT INTO transaction_fragment_links (transaction_id, fragment_id)
		VALUES ($1, $2)`
	for _, fragmentID := range fragmentIDs {
		_, err = tx.Exec(ctx, insertLink, txID, fragmentID)
		if err != nil {
			return errors.Wrapf(err, "linking fragment %d", fragmentID)
		}
	}

	return errors.Wrap(tx.Commit(ctx), "committing pending tx")
}

// HasPendingTxs reports whether any transaction is Pending.
func (p *Postgres) HasPendingTxs(ctx context.Context) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM submission_transactions WHERE state = $1)`
	var has bool
	err := p.pool.QueryRow(ctx, q, ports.TransactionStatePending).Scan(&has)
	return has, errors.Wrap(err, "checking for pending transactions")
}

// PendingTxs returns every Pending transaction.
func (p *Postgres) PendingTxs(ctx context.Context) ([]ports.SubmissionTransaction, error) {
	const q = `SELECT id, hash, state FROM submission_transactions WHERE state = $1`
	rows, err := p.pool.Query(ctx, q, ports.TransactionStatePending)
	if err != nil {
		return nil, errors.Wrap(err, "querying pending transactions")
	}
	defer rows.Close()

	var out []ports.SubmissionTransaction
	for rows.Next() {
		var (
			t    ports.SubmissionTransaction
			hash []byte
		)
		if err := rows.Scan(&t.ID, &hash, &t.State); err != nil {
			return nil, errors.Wrap(err, "scanning transaction")
		}
		copy(t.Hash[:], hash)
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "iterating transactions")
}

// UpdateTxState transitions a Pending transaction to a terminal state. A
// hash with no matching Pending row is a no-op (spec §4.1): the caller logs a
// warning but does not treat it as fatal.
func (p *Postgres) UpdateTxState(ctx context.Context, hash [32]byte, state ports.TransactionState) error {
	const q = `UPDATE submission_transactions SET state = $1 WHERE hash = $2 AND state = $3`
	tag, err := p.pool.Exec(ctx, q, state, hash[:], ports.TransactionStatePending)
	if err != nil {
		return errors.Wrap(err, "updating transaction state")
	}
	if tag.RowsAffected() == 0 {
		log.WithField("hash", hash).Warn("update_tx_state: no matching pending transaction")
	}
	return nil
}
