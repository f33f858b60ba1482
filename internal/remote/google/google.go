package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
)

// Ensure interface conformance
var _ remote.Store = (*Client)(nil)

// Config selects the spreadsheet, its tabs and the credentials.
// Service account credentials win over an OAuth client + token.
type Config struct {
	SpreadsheetID string
	UnitsSheet    string
	PaymentsSheet string
	ServicesSheet string

	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	unitsSheet    string
	paymentsSheet string
	servicesSheet string
}

// New creates a Sheets-backed remote store.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, cfg), nil
}

func newClient(svc *gsheet.Service, cfg Config) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		unitsSheet:    orDefault(cfg.UnitsSheet, "Units"),
		paymentsSheet: orDefault(cfg.PaymentsSheet, "Payments"),
		servicesSheet: orDefault(cfg.ServicesSheet, "Services"),
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}

	saJSON, err := readInlineOrFile(cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	if len(saJSON) > 0 {
		slog.InfoContext(ctx, "Using Service Account credentials", log.FieldComponent, log.ComponentSheets, "credentials_size", len(saJSON))
		return gsheet.NewService(ctx, append(opts, goption.WithCredentialsJSON(saJSON))...)
	}

	clientJSON, err := readInlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	tokenJSON, err := readInlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if len(clientJSON) == 0 || len(tokenJSON) == 0 {
		return nil, errors.New("missing credentials (set a service account, or an OAuth client and token)")
	}

	oauthCfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}

	slog.InfoContext(ctx, "Using OAuth client credentials", log.FieldComponent, log.ComponentSheets, "token_valid", tok.Valid())
	// oauth2.NewClient wraps the transport of the client found in ctx.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, &tok))
	return gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if path = strings.TrimSpace(path); path != "" {
		return os.ReadFile(path)
	}
	return nil, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API
// with connection pooling, timeouts and keep-alive.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// classify maps Sheets API failures onto the remote error kinds.
// 400 means the request itself is bad and will never succeed.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
		return remote.Rejected(err)
	}
	return remote.Unavailable(err)
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return classify(err)
}

func (c *Client) read(ctx context.Context, sheet, cols string) ([][]any, error) {
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("read %s: %w", rng, err))
	}
	return resp.Values, nil
}

func (c *Client) ListUnits(ctx context.Context) ([]remote.UnitRecord, error) {
	values, err := c.read(ctx, c.unitsSheet, "A:F")
	if err != nil {
		return nil, err
	}
	return parseUnits(values)
}

func (c *Client) ListPayments(ctx context.Context) ([]remote.PaymentRecord, error) {
	values, err := c.read(ctx, c.paymentsSheet, "A:G")
	if err != nil {
		return nil, err
	}
	return parsePayments(values)
}

func (c *Client) ListServices(ctx context.Context) ([]remote.ServiceRecord, error) {
	values, err := c.read(ctx, c.servicesSheet, "A:G")
	if err != nil {
		return nil, err
	}
	return parseServices(values)
}

func (c *Client) UpsertUnit(ctx context.Context, r remote.UnitRecord) error {
	return c.upsert(ctx, c.unitsSheet, "F", unitsHeader, unitMatcher(r.Category, r.UnitID), unitRow(r))
}

func (c *Client) UpsertPayment(ctx context.Context, r remote.PaymentRecord) error {
	return c.upsert(ctx, c.paymentsSheet, "G", paymentsHeader, paymentMatcher(r.Key()), paymentRow(r))
}

// upsert rewrites the matching row in place or appends a new one.
func (c *Client) upsert(ctx context.Context, sheet, lastCol string, header []any, match func([]string) bool, row []any) error {
	values, err := c.read(ctx, sheet, "A:"+lastCol)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		if err := c.write(ctx, fmt.Sprintf("%s!A1:%s1", sheet, lastCol), [][]any{header}); err != nil {
			return err
		}
	}

	if n := findRow(values, match); n > 0 {
		return c.write(ctx, fmt.Sprintf("%s!A%d:%s%d", sheet, n, lastCol, n), [][]any{row})
	}

	rng := fmt.Sprintf("%s!A:%s", sheet, lastCol)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("append to %s: %w", sheet, err))
	}
	return nil
}

func (c *Client) write(ctx context.Context, rng string, rows [][]any) error {
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("update %s: %w", rng, err))
	}
	return nil
}

func (c *Client) clear(ctx context.Context, rng string) error {
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("clear %s: %w", rng, err))
	}
	return nil
}

// DeletePayment blanks the matching row. Blank rows are skipped on read.
func (c *Client) DeletePayment(ctx context.Context, key remote.PaymentKey) error {
	values, err := c.read(ctx, c.paymentsSheet, "A:G")
	if err != nil {
		return err
	}
	n := findRow(values, paymentMatcher(key))
	if n < 0 {
		return nil
	}
	return c.clear(ctx, fmt.Sprintf("%s!A%d:G%d", c.paymentsSheet, n, n))
}

// ReplaceAllServices clears the tab below the header and writes rs.
// The two calls are not atomic; a failure in between leaves the tab empty
// until the next sync rewrites it.
func (c *Client) ReplaceAllServices(ctx context.Context, rs []remote.ServiceRecord) error {
	if err := c.clear(ctx, c.servicesSheet+"!A:G"); err != nil {
		return err
	}
	rows := make([][]any, 0, len(rs)+1)
	rows = append(rows, servicesHeader)
	for _, r := range rs {
		rows = append(rows, serviceRow(r))
	}
	if err := c.write(ctx, fmt.Sprintf("%s!A1:G%d", c.servicesSheet, len(rows)), rows); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Services replaced in Google Sheets", log.FieldComponent, log.ComponentSheets, "count", len(rs))
	return nil
}
