package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against a live database. Any returned
// row is a violation.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_escrow_never_negative_per_job",
			SQL: `SELECT job_id, SUM(CASE
                      WHEN direction = 'lock' THEN amount
                      WHEN direction IN ('release','refund') THEN -amount
                      ELSE 0 END) AS outstanding
                  FROM escrow_transactions
                  WHERE job_id IS NOT NULL
                  GROUP BY job_id
                  HAVING SUM(CASE
                      WHEN direction = 'lock' THEN amount
                      WHEN direction IN ('release','refund') THEN -amount
                      ELSE 0 END) < 0`,
		},
		{
			Name: "O2_balance_never_negative",
			SQL: `SELECT user_id, SUM(CASE WHEN direction = 'lock' THEN -amount ELSE amount END) AS balance
                  FROM escrow_transactions
                  GROUP BY user_id
                  HAVING SUM(CASE WHEN direction = 'lock' THEN -amount ELSE amount END) < 0`,
		},
		{
			Name: "O3_single_hired_entry",
			SQL: `SELECT job_id, COUNT(*) FROM entries
                  WHERE status = 'hired'
                  GROUP BY job_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_message_seq_dense",
			SQL: `WITH seqs AS (
                      SELECT job_id, seq,
                             LAG(seq) OVER (PARTITION BY job_id ORDER BY seq) AS prev
                      FROM trade_messages)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND seq <> prev + 1`,
		},
		{
			Name: "O5_hired_jobs_link_hired_entry",
			SQL: `SELECT j.id FROM jobs j
                  LEFT JOIN entries e ON e.id = j.hired_entry_id
                  WHERE j.status NOT IN ('open','cancelled')
                    AND (j.hired_entry_id IS NULL OR e.status <> 'hired')`,
		},
		{
			Name: "O6_disputed_jobs_have_open_case",
			SQL: `SELECT j.id FROM jobs j
                  WHERE j.status = 'disputed'
                    AND NOT EXISTS (SELECT 1 FROM disputes d WHERE d.job_id = j.id AND d.status = 'open')`,
		},
		{
			Name: "O7_single_open_dispute",
			SQL: `SELECT job_id, COUNT(*) FROM disputes
                  WHERE status = 'open'
                  GROUP BY job_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O8_terminal_jobs_drained",
			SQL: `SELECT j.id, SUM(CASE
                      WHEN t.direction = 'lock' THEN t.amount
                      WHEN t.direction IN ('release','refund') THEN -t.amount
                      ELSE 0 END) AS outstanding
                  FROM jobs j
                  JOIN escrow_transactions t ON t.job_id = j.id
                  WHERE j.status IN ('completed','cancelled','refunded')
                  GROUP BY j.id
                  HAVING SUM(CASE
                      WHEN t.direction = 'lock' THEN t.amount
                      WHEN t.direction IN ('release','refund') THEN -t.amount
                      ELSE 0 END) <> 0`,
		},
		{
			Name: "O9_resolved_disputes_conserve_escrow",
			SQL: `SELECT d.id FROM disputes d
                  WHERE d.status = 'resolved'
                    AND d.release_amount + d.refund_amount <> (
                        SELECT COALESCE(SUM(CASE WHEN direction = 'lock' THEN amount ELSE 0 END), 0)
                        FROM escrow_transactions WHERE job_id = d.job_id)`,
		},
		{
			Name: "O10_job_delete_guard",
			SQL: `SELECT 'missing_no_delete_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname='no_delete_jobs')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
