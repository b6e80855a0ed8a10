package engine

import (
	"context"
	"fmt"

	"db-shuttle/internal/database"
	"db-shuttle/internal/schema"
)

// VerifyCounts checks the actual row counts after a transfer: the rows the
// destination gained must equal both the rows copied and the source row count.
// Failed tables are passed through untouched.
func VerifyCounts(ctx context.Context, src, dst *database.Session, results []TableResult) []TableResult {
	verified := make([]TableResult, 0, len(results))
	for _, res := range results {
		if res.Err == nil {
			verifyOne(ctx, src, dst, &res)
		}
		verified = append(verified, res)
	}
	return verified
}

func verifyOne(ctx context.Context, src, dst *database.Session, res *TableResult) {
	var err error
	if res.SourceRows, err = schema.RowCount(ctx, src, res.Table); err != nil {
		res.VerifyErr = err
		return
	}
	if res.DestAfter, err = schema.RowCount(ctx, dst, res.Table); err != nil {
		res.VerifyErr = err
		return
	}

	gained := res.DestAfter - res.DestBefore
	if gained != res.SourceRows || res.Copied != res.SourceRows {
		res.VerifyErr = fmt.Errorf("%s: source has %d rows, copied %d, destination gained %d",
			res.Table, res.SourceRows, res.Copied, gained)
		return
	}
	res.Verified = true
}
