package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const csvDateLayout = "2006-01-02"

// CSVColumns is the header written by exports and understood by imports
var CSVColumns = []string{"date", "description", "amount", "category", "isRecurring", "frequency", "interval", "endDate", "rrule"}

// MaxImportRows bounds the number of data rows a single import may contain
const MaxImportRows = 5000

// ImportRowError reports why a data row was skipped. Line is 1-based and
// counts the header.
type ImportRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportResult summarizes an import
type ImportResult struct {
	Imported  int              `json:"imported"`
	Recurring int              `json:"recurring"`
	Errors    []ImportRowError `json:"errors"`
}

// CSVService reads and writes transactions as CSV
type CSVService struct {
	store        domain.Store
	transactions *TransactionService
	publisher    websocket.EventPublisher
}

// NewCSVService creates a new CSVService
func NewCSVService(store domain.Store, transactions *TransactionService, publisher websocket.EventPublisher) *CSVService {
	return &CSVService{
		store:        store,
		transactions: transactions,
		publisher:    publisher,
	}
}

// ExportMonth writes the month ledger, generated occurrences included
func (s *CSVService) ExportMonth(ctx context.Context, w io.Writer, userID uuid.UUID, year int, month time.Month) error {
	ledger, err := s.transactions.ListForMonth(ctx, userID, year, month)
	if err != nil {
		return err
	}
	return s.write(ctx, w, userID, ledger.Entries)
}

// ExportAll writes every stored transaction of the user, oldest first
func (s *CSVService) ExportAll(ctx context.Context, w io.Writer, userID uuid.UUID) error {
	stored, err := s.store.Transactions().Find(ctx, domain.TransactionFilter{UserID: userID})
	if err != nil {
		return err
	}
	entries := make([]domain.LedgerEntry, 0, len(stored))
	for _, tx := range stored {
		entries = append(entries, domain.EntryFromTransaction(tx))
	}
	return s.write(ctx, w, userID, entries)
}

func (s *CSVService) write(ctx context.Context, w io.Writer, userID uuid.UUID, entries []domain.LedgerEntry) error {
	categories, err := s.store.Categories().GetAllByUser(ctx, userID)
	if err != nil {
		return err
	}
	names := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	rules := make(map[uuid.UUID]*domain.RecurrenceRule)
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return err
	}

	for _, e := range entries {
		record := []string{e.Date.Format(csvDateLayout), e.Description, e.Amount.StringFixed(2), "", strconv.FormatBool(e.IsRecurring), "", "", "", ""}
		if e.CategoryID != nil {
			record[3] = names[*e.CategoryID]
		}

		if e.RecurrenceID != nil {
			rule, ok := rules[*e.RecurrenceID]
			if !ok {
				rule, err = s.store.RecurrenceRules().GetByID(ctx, *e.RecurrenceID)
				if err != nil {
					return err
				}
				rules[rule.ID] = rule
			}
			record[5] = string(rule.Frequency)
			record[6] = strconv.Itoa(rule.Step())
			if rule.EndDate != nil {
				record[7] = rule.EndDate.Format(csvDateLayout)
			}
			if rr, err := rule.RRule(); err == nil {
				record[8] = rr
			}
		}

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// importRow is a validated data row waiting to be written
type importRow struct {
	line     int
	tx       *domain.Transaction
	category string
	rule     *domain.RecurrenceRule
}

// Import reads a CSV with a header row. Invalid rows are reported and skipped;
// the valid rows are written in one store transaction.
func (s *CSVService) Import(ctx context.Context, userID uuid.UUID, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, domain.NewFieldError("file", "is empty")
	}
	if err != nil {
		return nil, domain.NewFieldError("file", err.Error())
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, required := range []string{"date", "description", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, domain.NewFieldError("file", fmt.Sprintf("missing %q column", required))
		}
	}

	result := &ImportResult{Errors: make([]ImportRowError, 0)}
	var rows []importRow

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			result.Errors = append(result.Errors, ImportRowError{Line: parseErr.Line, Message: parseErr.Err.Error()})
			continue
		}
		if err != nil {
			return nil, domain.NewFieldError("file", err.Error())
		}

		line, _ := reader.FieldPos(0)
		if len(rows)+len(result.Errors) >= MaxImportRows {
			return nil, domain.NewFieldError("file", fmt.Sprintf("exceeds %d rows", MaxImportRows))
		}

		row, err := parseImportRow(userID, record, cols)
		if err != nil {
			result.Errors = append(result.Errors, ImportRowError{Line: line, Message: err.Error()})
			continue
		}
		row.line = line
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return result, nil
	}

	err = s.store.WithinTx(ctx, func(store domain.Store) error {
		for _, row := range rows {
			if row.category != "" {
				id, err := resolveCategory(ctx, store, userID, row.category)
				if err != nil {
					return fmt.Errorf("line %d: %w", row.line, err)
				}
				row.tx.CategoryID = &id
			}
			if row.rule != nil {
				rule, err := store.RecurrenceRules().Create(ctx, row.rule)
				if err != nil {
					return fmt.Errorf("line %d: %w", row.line, err)
				}
				row.tx.IsRecurring = true
				row.tx.RecurrenceID = &rule.ID
			}
			if _, err := store.Transactions().Create(ctx, row.tx); err != nil {
				return fmt.Errorf("line %d: %w", row.line, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("CSV import failed")
		return nil, err
	}

	for _, row := range rows {
		result.Imported++
		if row.rule != nil {
			result.Recurring++
		}
	}

	log.Info().
		Str("user_id", userID.String()).
		Int("imported", result.Imported).
		Int("skipped", len(result.Errors)).
		Msg("CSV import completed")

	s.publisher.Publish(userID, websocket.CSVImported(result))
	return result, nil
}

func parseImportRow(userID uuid.UUID, record []string, cols map[string]int) (importRow, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := time.Parse(csvDateLayout, field("date"))
	if err != nil {
		return importRow{}, domain.NewFieldError("date", "must be YYYY-MM-DD")
	}
	amount, err := decimal.NewFromString(field("amount"))
	if err != nil {
		return importRow{}, domain.NewFieldError("amount", "must be a number")
	}

	tx := &domain.Transaction{
		UserID:      userID,
		Description: field("description"),
		Amount:      amount,
		Date:        date,
	}
	if err := tx.Validate(); err != nil {
		return importRow{}, err
	}

	row := importRow{tx: tx, category: field("category")}

	recurring := false
	if v := field("isRecurring"); v != "" {
		recurring, err = strconv.ParseBool(v)
		if err != nil {
			return importRow{}, domain.NewFieldError("isRecurring", "must be true or false")
		}
	}
	if !recurring {
		return row, nil
	}

	rule, err := parseImportRule(date, field)
	if err != nil {
		return importRow{}, err
	}
	row.rule = rule
	return row, nil
}

// parseImportRule reads frequency, interval and endDate, falling back to the
// rrule column when no frequency is given
func parseImportRule(start time.Time, field func(string) string) (*domain.RecurrenceRule, error) {
	rule := &domain.RecurrenceRule{StartDate: start, Interval: 1}

	if freq := field("frequency"); freq != "" {
		rule.Frequency = domain.Frequency(strings.ToLower(freq))
	} else if rr := field("rrule"); rr != "" {
		freq, interval, until, err := domain.ParseRRule(rr)
		if err != nil {
			return nil, err
		}
		rule.Frequency = freq
		rule.Interval = interval
		rule.EndDate = until
	} else {
		return nil, domain.NewFieldError("frequency", "is required for recurring rows")
	}

	if v := field("interval"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, domain.NewFieldError("interval", "must be a whole number between 1 and 2147483647")
		}
		rule.Interval = int32(n)
	}
	if v := field("endDate"); v != "" {
		end, err := time.Parse(csvDateLayout, v)
		if err != nil {
			return nil, domain.NewFieldError("endDate", "must be YYYY-MM-DD")
		}
		rule.EndDate = &end
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}
