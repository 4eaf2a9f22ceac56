package dbexec

import (
	"context"
	"fmt"
)

// Result is a fully read result set.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Query runs query and reads every row. []byte values are returned as
// strings so results print the same across drivers.
func Query(ctx context.Context, exec QueryExecutor, query string, args ...any) (*Result, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Exec runs a statement that returns no rows and reports the affected row
// count.
func Exec(ctx context.Context, exec QueryExecutor, query string, args ...any) (int64, error) {
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}
