package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pensionledger/internal/engine"
	"github.com/roach88/pensionledger/internal/ir"
	"github.com/roach88/pensionledger/internal/queryir"
)

// TxOptions holds the flags shared by every mutating command.
type TxOptions struct {
	*RootOptions
	TxID      string
	Timestamp string
}

func (o *TxOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.TxID, "tx-id", "", "transaction id (default: generated UUIDv7)")
	cmd.Flags().StringVar(&o.Timestamp, "timestamp", "", "commit time, RFC 3339 (default: now)")
}

func (o *TxOptions) request(kind engine.Kind, key string) (engine.Request, error) {
	req := engine.Request{Kind: kind, Key: key, TxID: o.TxID}
	if o.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, o.Timestamp)
		if err != nil {
			return engine.Request{}, WrapExitError(ExitCommandError, "invalid --timestamp", err)
		}
		req.Timestamp = ts
	}
	return req, nil
}

// FieldOptions holds the record fields of create and update.
type FieldOptions struct {
	TxOptions
	Name   string
	Amount string
	Status string
}

func (o *FieldOptions) addFlags(cmd *cobra.Command) {
	o.TxOptions.addFlags(cmd)
	cmd.Flags().StringVar(&o.Name, "name", "", "recipient name (required)")
	cmd.Flags().StringVar(&o.Amount, "amount", "", "pension amount, at most 2 decimals (required)")
	cmd.Flags().StringVar(&o.Status, "status", string(ir.StatusActive), "status (Active|Retired|Suspended|Deceased)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")
}

func (o *FieldOptions) fields() (engine.Fields, error) {
	amount, err := ir.ParseAmount(o.Amount)
	if err != nil {
		return engine.Fields{}, err
	}
	status, err := ir.ParseStatus(o.Status)
	if err != nil {
		return engine.Fields{}, err
	}
	return engine.Fields{RecipientName: o.Name, Amount: amount, Status: status}, nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FieldOptions{TxOptions: TxOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a pension record",
		Long: `Create a pension record and append its first history entry.

Examples:
  pledger create PENSION_003 --name "Rahim Uddin" --amount 9800.00
  pledger create PENSION_004 --name "Nasima Akter" --amount 7200 --status Retired`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitFields(cmd, opts, engine.KindCreate, args[0])
		},
	}
	opts.addFlags(cmd)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FieldOptions{TxOptions: TxOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a pension record's name, amount and status",
		Long: `Replace every field of a live pension record.

A Deceased record keeps its amount and status; only the name may change.

Example:
  pledger update PENSION_001 --name "Abul Kalam" --amount 15000.50 --status Retired`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitFields(cmd, opts, engine.KindUpdate, args[0])
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func submitFields(cmd *cobra.Command, opts *FieldOptions, kind engine.Kind, key string) error {
	out := newFormatter(opts.RootOptions, cmd)
	req, err := opts.request(kind, key)
	if err != nil {
		return err
	}
	fields, err := opts.fields()
	if err != nil {
		return rejected(out, err)
	}
	req.Fields = fields
	return submit(cmd, opts.RootOptions, out, req)
}

// NewContributeCommand creates the contribute command.
func NewContributeCommand(rootOpts *RootOptions) *cobra.Command {
	return newDeltaCommand(rootOpts, engine.KindContribute, "Add to a pension's amount")
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	return newDeltaCommand(rootOpts, engine.KindWithdraw, "Subtract from a pension's amount")
}

func newDeltaCommand(rootOpts *RootOptions, kind engine.Kind, short string) *cobra.Command {
	opts := &TxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   string(kind) + " <id> <amount>",
		Short: short,
		Long: short + `.

The amount must be greater than zero. Deceased records reject it.

Example:
  pledger ` + string(kind) + ` PENSION_001 250.00`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts.RootOptions, cmd)
			req, err := opts.request(kind, args[0])
			if err != nil {
				return err
			}
			delta, err := ir.ParseAmount(args[1])
			if err != nil {
				return rejected(out, err)
			}
			req.Delta = delta
			return submit(cmd, opts.RootOptions, out, req)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pension record",
		Long: `Delete a live pension record. Its history is kept and can still be
listed and audited.

Example:
  pledger delete PENSION_002`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts.RootOptions, cmd)
			req, err := opts.request(engine.KindDelete, args[0])
			if err != nil {
				return err
			}
			return submit(cmd, opts.RootOptions, out, req)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func submit(cmd *cobra.Command, opts *RootOptions, out *OutputFormatter, req engine.Request) error {
	l, err := openLedger(cmd.Context(), opts, nil)
	if err != nil {
		return err
	}
	defer l.close()

	receipt, err := l.engine.Submit(cmd.Context(), req)
	if err != nil {
		return rejected(out, err)
	}
	return out.Result(receipt, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s committed (tx %s)\n", req.Kind, req.Key, receipt.TxID)
		if receipt.Record != nil {
			writeRecord(w, *receipt.Record)
		}
		fmt.Fprintf(w, "Chain hash:   %s\n", receipt.Entry.ChainHash)
	})
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and seed the initial pensions",
		Long: `Create the database if needed and seed PENSION_001 and PENSION_002.
Keys that already exist are left alone, so init is safe to re-run.

Example:
  pledger init --db ./ledger.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			l, err := openLedger(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer l.close()

			receipts, err := l.engine.Seed(cmd.Context())
			if err != nil {
				return rejected(out, err)
			}
			return out.Result(receipts, func(w io.Writer) {
				fmt.Fprintf(w, "Ledger ready at %s (%d records seeded)\n", rootOpts.Config.DB, len(receipts))
			})
		},
	}
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Show a live pension record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd, rootOpts, func(e *engine.Engine, out *OutputFormatter) error {
				rec, err := e.Read(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return out.Result(rec, func(w io.Writer) { writeRecord(w, rec) })
			})
		},
	}
}

// ListOptions holds the filter flags of list.
type ListOptions struct {
	*RootOptions
	Statuses    []string
	Search      string
	Name        string
	MinAmount   string
	MaxAmount   string
	UpdatedFrom string
	UpdatedTo   string
	Limit       int
}

func (o *ListOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&o.Statuses, "status", nil, "only records with one of these statuses (repeatable or comma-separated)")
	cmd.Flags().StringVar(&o.Search, "search", "", "only records whose id, recipient name or status contains this text (case-insensitive)")
	cmd.Flags().StringVar(&o.Name, "name", "", "only records whose recipient name contains this text (case-insensitive)")
	cmd.Flags().StringVar(&o.MinAmount, "min-amount", "", "only records with at least this amount")
	cmd.Flags().StringVar(&o.MaxAmount, "max-amount", "", "only records with at most this amount")
	cmd.Flags().StringVar(&o.UpdatedFrom, "updated-from", "", "only records last updated at or after this RFC 3339 time")
	cmd.Flags().StringVar(&o.UpdatedTo, "updated-to", "", "only records last updated at or before this RFC 3339 time")
	cmd.Flags().IntVar(&o.Limit, "limit", 0, "return at most this many records (0 = all)")
}

func (o *ListOptions) criteria() (queryir.Criteria, error) {
	c := queryir.Criteria{Search: o.Search, NameContains: o.Name, Limit: o.Limit}
	for _, raw := range o.Statuses {
		status, err := ir.ParseStatus(raw)
		if err != nil {
			return queryir.Criteria{}, err
		}
		c.Statuses = append(c.Statuses, status)
	}
	if o.MinAmount != "" {
		lo, err := ir.ParseAmount(o.MinAmount)
		if err != nil {
			return queryir.Criteria{}, err
		}
		c.MinAmount = &lo
	}
	if o.MaxAmount != "" {
		hi, err := ir.ParseAmount(o.MaxAmount)
		if err != nil {
			return queryir.Criteria{}, err
		}
		c.MaxAmount = &hi
	}
	var err error
	if c.UpdatedFrom, err = timeBound("updated-from", o.UpdatedFrom); err != nil {
		return queryir.Criteria{}, err
	}
	if c.UpdatedTo, err = timeBound("updated-to", o.UpdatedTo); err != nil {
		return queryir.Criteria{}, err
	}
	return c, nil
}

// timeBound parses an optional RFC 3339 flag value. Empty means unbounded.
func timeBound(flag, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := ir.ParseTimestamp(raw)
	if err != nil {
		return nil, ir.Errorf(ir.CodeInvalidArgument, "", "--%s: %v", flag, err)
	}
	return &t, nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live pension records",
		Long: `List live pension records ordered by id.

Filters combine with AND. --status may name several statuses, any of
which matches. --search looks in id, recipient name and status:
  pledger list --status Active --name abul --min-amount 1000
  pledger list --status Active,Suspended --search ret
  pledger list --updated-from 2026-01-01T00:00:00Z --updated-to 2026-06-30T23:59:59Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd, rootOpts, func(e *engine.Engine, out *OutputFormatter) error {
				c, err := opts.criteria()
				if err != nil {
					return err
				}
				records, err := e.Find(cmd.Context(), c.Select())
				if err != nil {
					return err
				}
				return out.Result(records, func(w io.Writer) { writeRecords(w, records) })
			})
		},
	}
	opts.addFlags(cmd)
	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show every history entry of a pension, deletes included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd, rootOpts, func(e *engine.Engine, out *OutputFormatter) error {
				entries, err := e.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return out.Result(entries, func(w io.Writer) { writeHistory(w, entries) })
			})
		},
	}
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <id>",
		Short: "Re-derive and check a pension's hash chain",
		Long: `Recompute every hash in a pension's history and compare it with what
is stored. Exits 1 if the chain does not verify.

Example:
  pledger audit PENSION_001 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd, rootOpts, func(e *engine.Engine, out *OutputFormatter) error {
				result, err := e.Audit(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := out.Result(result, func(w io.Writer) { writeAudit(w, result) }); err != nil {
					return err
				}
				if cerr := ir.ChainInvalidError(result); cerr != nil {
					return reportedExit(ExitFailure, "audit failed", cerr)
				}
				return nil
			})
		},
	}
}

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Workers int
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Audit every pension that has history",
		Long: `Audit every key that has history, deleted keys included.
Exits 1 if any chain does not verify.

Example:
  pledger verify --db ./ledger.db --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd, opts.RootOptions, func(e *engine.Engine, out *OutputFormatter) error {
				results, err := e.VerifyAll(cmd.Context(), opts.Workers)
				if err != nil {
					return err
				}
				invalid := 0
				for _, r := range results {
					if !r.Valid {
						invalid++
					}
				}
				err = out.Result(results, func(w io.Writer) {
					for _, r := range results {
						writeAudit(w, r)
					}
					fmt.Fprintf(w, "\n%d keys audited, %d invalid\n", len(results), invalid)
				})
				if err != nil {
					return err
				}
				if invalid > 0 {
					return reportedExit(ExitFailure, fmt.Sprintf("%d of %d chains invalid", invalid, len(results)), nil)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "keys audited concurrently")
	return cmd
}

// query opens the ledger, runs fn, and maps ledger errors to exit codes.
func query(cmd *cobra.Command, opts *RootOptions, fn func(*engine.Engine, *OutputFormatter) error) error {
	out := newFormatter(opts, cmd)
	l, err := openLedger(cmd.Context(), opts, nil)
	if err != nil {
		return err
	}
	defer l.close()

	err = fn(l.engine, out)
	var exitErr *ExitError
	if err == nil || errors.As(err, &exitErr) {
		return err
	}
	return rejected(out, err)
}
