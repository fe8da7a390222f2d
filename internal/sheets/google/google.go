package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"billremind/internal/core"
	ports "billremind/internal/sheets"
)

const sentAtLayout = "2006-01-02 15:04:05"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base name without year (e.g. "Cobranças"); one sheet per billing year.
	ledgerBase string

	mu    sync.Mutex
	ready map[string]bool
}

// Ensure interface conformance
var (
	_ ports.LedgerWriter = (*Client)(nil)
	_ ports.LedgerReader = (*Client)(nil)
)

// New creates a ledger client. Without options, credentials come from the
// service account environment variables.
func New(ctx context.Context, spreadsheetID, ledgerBase string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	ledgerBase = strings.TrimSpace(ledgerBase)
	if ledgerBase == "" {
		ledgerBase = "Cobranças"
	}

	var (
		svc *gsheet.Service
		err error
	)
	if len(opts) == 0 {
		svc, err = newSheetsService(ctx)
	} else {
		svc, err = gsheet.NewService(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ledgerBase:    ledgerBase,
		ready:         make(map[string]bool),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"component", "ledger",
		"credentials_size", len(credentialsJSON))

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// and timeouts suited to the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// AppendEntry appends one row to the ledger sheet of the entry's billing
// year, creating the sheet with a header row the first time.
func (c *Client) AppendEntry(ctx context.Context, e core.LedgerEntry) (string, error) {
	if e.AccountID <= 0 || e.BilledOn.IsZero() {
		return "", core.InvalidInputf("ledger entry needs an account and a billing date")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.ledgerBase, e.BilledOn.Year())
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	vr := &gsheet.ValueRange{Values: [][]any{entryToRow(e)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(sheet, "A:H"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := sheet
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Ledger row appended",
		"component", "ledger",
		"account_id", e.AccountID,
		"range", ref)
	return ref, nil
}

// ListEntries reads every row of the year's ledger sheet. Rows that do not
// parse are skipped.
func (c *Client) ListEntries(ctx context.Context, year int) ([]core.LedgerEntry, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(c.ledgerBase, year)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(sheet, "A2:H")).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}

	out := make([]core.LedgerEntry, 0, len(resp.Values))
	for i, row := range resp.Values {
		e, err := rowToEntry(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable ledger row",
				"component", "ledger",
				"sheet", sheet,
				"row", i+2,
				"error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Client) ensureSheet(ctx context.Context, sheet string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready[sheet] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			c.ready[sheet] = true
			return nil
		}
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	header := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(sheet, "A1:H1"), &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Ledger sheet created", "component", "ledger", "sheet", sheet)
	c.ready[sheet] = true
	return nil
}

func entryToRow(e core.LedgerEntry) []any {
	next := ""
	if e.NextBilling != nil {
		next = e.NextBilling.String()
	}
	return []any{
		e.SentAt.UTC().Format(sentAtLayout),
		e.BilledOn.String(),
		e.ClientName,
		e.Description,
		e.Amount.InexactFloat64(),
		next,
		e.Channel,
		e.AccountID,
	}
}

func rowToEntry(row []any) (core.LedgerEntry, error) {
	if len(row) < 8 {
		return core.LedgerEntry{}, fmt.Errorf("expected 8 columns, got %d", len(row))
	}
	cols := toStrings(row)

	sentAt, err := time.Parse(sentAtLayout, cols[0])
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("sent at: %w", err)
	}
	billed, err := core.ParseDate(cols[1])
	if err != nil {
		return core.LedgerEntry{}, err
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(cols[4], ",", "."))
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("amount: %w", err)
	}
	accountID, err := strconv.ParseInt(cols[7], 10, 64)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("account: %w", err)
	}

	e := core.LedgerEntry{
		AccountID:   accountID,
		ClientName:  cols[2],
		Description: cols[3],
		Amount:      amount,
		BilledOn:    billed,
		Channel:     cols[6],
		SentAt:      sentAt,
	}
	if cols[5] != "" {
		next, err := core.ParseDate(cols[5])
		if err != nil {
			return core.LedgerEntry{}, err
		}
		e.NextBilling = &next
	}
	return e, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with
// a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// a1 builds a quoted A1 range for sheet.
func a1(sheet, rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), rng)
}
