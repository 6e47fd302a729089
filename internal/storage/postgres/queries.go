package postgres

const (
	insertJobQuery = `
		INSERT INTO control_jobs (job_id, trace_id, state, current_attempt_id, snapshot, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	getJobQuery = `
		SELECT snapshot, version
		FROM control_jobs
		WHERE job_id = $1
	`

	updateJobQuery = `
		UPDATE control_jobs
		SET state = $1,
		    current_attempt_id = $2,
		    snapshot = $3,
		    version = $4,
		    updated_at = $5
		WHERE job_id = $6
		  AND version = $7
	`

	listJobsQuery = `
		SELECT job_id, trace_id, current_attempt_id, state, created_at, updated_at
		FROM control_jobs
		ORDER BY updated_at DESC, job_id
		LIMIT $1
	`

	insertEventQuery = `
		INSERT INTO control_job_events (job_id, attempt_id, event_type, occurred_at, attributes)
		VALUES ($1, $2, $3, $4, $5)
	`

	listEventsQuery = `
		SELECT job_id, attempt_id, event_type, occurred_at, attributes
		FROM control_job_events
		WHERE job_id = $1
		ORDER BY occurred_at, attempt_id COLLATE "C", event_type COLLATE "C", id
	`

	insertOutboxQuery = `
		INSERT INTO control_outbox (outbox_id, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`

	// Claims the oldest pending entry, or a processing entry whose lease expired.
	// SKIP LOCKED lets concurrent processors claim different rows.
	claimOutboxQuery = `
		UPDATE control_outbox
		SET status = $1,
		    lease_owner = $2,
		    leased_at = $3,
		    updated_at = $3
		WHERE outbox_id = (
			SELECT outbox_id
			FROM control_outbox
			WHERE status = $4
			   OR (status = $1 AND leased_at <= $5)
			ORDER BY created_at, outbox_id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING outbox_id, payload, created_at
	`

	setOutboxStatusQuery = `
		UPDATE control_outbox
		SET status = $1,
		    lease_owner = NULL,
		    leased_at = NULL,
		    failure_reason = NULLIF($2, ''),
		    updated_at = $3
		WHERE outbox_id = $4 AND status = $5
	`

	getOutboxStatusQuery = `
		SELECT status FROM control_outbox WHERE outbox_id = $1
	`

	upsertAttemptResultQuery = `
		INSERT INTO control_attempt_results (job_id, attempt_id, response, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id, attempt_id) DO UPDATE SET response = EXCLUDED.response
	`

	upsertFinalResultQuery = `
		INSERT INTO control_final_results (job_id, response, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE SET response = EXCLUDED.response
	`

	getFinalResultQuery = `
		SELECT response
		FROM control_final_results
		WHERE job_id = $1
	`

	// Inserts a processing marker unless a live one exists. RETURNING yields a
	// row only when this caller won.
	tryStartDedupQuery = `
		INSERT INTO control_dedup (job_id, attempt_id, status, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id, attempt_id) DO UPDATE
		SET status = EXCLUDED.status,
		    expires_at = EXCLUDED.expires_at
		WHERE control_dedup.expires_at <= $5
		RETURNING job_id
	`

	abandonDedupQuery = `
		DELETE FROM control_dedup
		WHERE job_id = $1 AND attempt_id = $2 AND status = $3
	`

	completeDedupQuery = `
		INSERT INTO control_dedup (job_id, attempt_id, status, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id, attempt_id) DO UPDATE
		SET status = EXCLUDED.status,
		    expires_at = EXCLUDED.expires_at
	`
)
