package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// StoreDetail is the driver-level failure found in an error chain.
type StoreDetail struct {
	Driver     string `json:"driver"`
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump flattens an error for structured logs. It is never sent to clients.
type ErrorDump struct {
	TopMessage string       `json:"top_message"`
	Code       Code         `json:"code,omitempty"`
	Chain      []string     `json:"chain,omitempty"`
	Store      *StoreDetail `json:"store,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Store: storeDetail(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

// Fields renders the dump as logger fields, leaving out empty values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if s := d.Store; s != nil {
		fields["db_driver"] = s.Driver
		for key, value := range map[string]string{
			"db_code":       s.Code,
			"db_constraint": s.Constraint,
			"db_table":      s.Table,
			"db_column":     s.Column,
			"db_detail":     s.Detail,
			"db_message":    s.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}

func storeDetail(err error) *StoreDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &StoreDetail{
			Driver:     "pgx",
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &StoreDetail{
			Driver:     "pq",
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return &StoreDetail{
			Driver:  "sqlite3",
			Code:    fmt.Sprintf("%d/%d", int(liteErr.Code), int(liteErr.ExtendedCode)),
			Message: liteErr.Error(),
		}
	}
	return nil
}
