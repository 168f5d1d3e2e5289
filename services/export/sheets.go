package exportsvc

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
)

// Cells are stored as sent: no formula evaluation, no number or date parsing of text.
const valueInputOption = "RAW"

// SheetsWriter replaces the content of one sheet of a Google spreadsheet.
type SheetsWriter struct {
	sheetsService    *sheets.Service
	spreadsheetID    string
	sheetName        string
	retryMaxAttempts int
	retryDelay       time.Duration
	logger           core.Logger
}

var _ application.SpreadsheetWriter = (*SheetsWriter)(nil)

// NewSheetsWriter authenticates with the service account credentials file of conf.
func NewSheetsWriter(ctx context.Context, conf core.SheetsConfig, logger core.Logger) (*SheetsWriter, error) {
	credentialsJSON, err := os.ReadFile(conf.CredentialsFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading credentials file")
	}
	jwtConf, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, errors.Wrap(err, "configuring JWT from credentials")
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConf.Client(ctx)))
	if err != nil {
		return nil, errors.Wrap(err, "creating Google Sheets client")
	}
	return NewSheetsWriterWithService(svc, conf, logger), nil
}

func NewSheetsWriterWithService(svc *sheets.Service, conf core.SheetsConfig, logger core.Logger) *SheetsWriter {
	return &SheetsWriter{
		sheetsService:    svc,
		spreadsheetID:    conf.SpreadsheetID,
		sheetName:        conf.SheetName,
		retryMaxAttempts: conf.RetryMaxAttempts,
		retryDelay:       conf.RetryDelay,
		logger:           logger,
	}
}

// WriteApplications clears the sheet then writes the headers and one row per application.
func (w *SheetsWriter) WriteApplications(ctx context.Context, apps []application.Application) error {
	if err := w.ensureSheetExists(ctx); err != nil {
		return err
	}
	if err := w.clear(ctx); err != nil {
		return err
	}
	if err := w.setHeaders(ctx); err != nil {
		return err
	}
	return w.appendRows(ctx, Rows(apps))
}

func (w *SheetsWriter) ensureSheetExists(ctx context.Context) error {
	var spreadsheet *sheets.Spreadsheet
	err := w.executeSheetsCall(ctx, "get spreadsheet", func() (err error) {
		spreadsheet, err = w.sheetsService.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
		return err
	})
	if err != nil {
		return err
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == w.sheetName {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: w.sheetName}},
		}},
	}
	return w.executeSheetsCall(ctx, fmt.Sprintf("create sheet %q", w.sheetName), func() error {
		_, err := w.sheetsService.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do()
		return err
	})
}

func (w *SheetsWriter) clear(ctx context.Context) error {
	clearRange := fmt.Sprintf("'%s'!A1:ZZ", w.sheetName)
	return w.executeSheetsCall(ctx, "clear "+clearRange, func() error {
		_, err := w.sheetsService.Spreadsheets.Values.Clear(w.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
		return err
	})
}

func (w *SheetsWriter) setHeaders(ctx context.Context) error {
	writeRange := fmt.Sprintf("'%s'!A1", w.sheetName)
	row := make([]interface{}, len(Headers))
	for i, h := range Headers {
		row[i] = h
	}
	values := &sheets.ValueRange{Values: [][]interface{}{row}}
	return w.executeSheetsCall(ctx, "set headers", func() error {
		_, err := w.sheetsService.Spreadsheets.Values.Update(w.spreadsheetID, writeRange, values).
			ValueInputOption(valueInputOption).Context(ctx).Do()
		return err
	})
}

func (w *SheetsWriter) appendRows(ctx context.Context, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	appendRange := fmt.Sprintf("'%s'", w.sheetName)
	values := &sheets.ValueRange{Values: rows}
	return w.executeSheetsCall(ctx, fmt.Sprintf("append %d rows", len(rows)), func() error {
		_, err := w.sheetsService.Spreadsheets.Values.Append(w.spreadsheetID, appendRange, values).
			ValueInputOption(valueInputOption).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		return err
	})
}

func isRetryableSheetsError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch {
	case apiErr.Code >= 500 && apiErr.Code < 600:
		return true
	case apiErr.Code == http.StatusTooManyRequests:
		return true
	case apiErr.Code == http.StatusForbidden && strings.Contains(strings.ToLower(apiErr.Message), "ratelimitexceeded"):
		return true
	}
	return false
}

// executeSheetsCall runs call, retrying retryable errors with an exponential backoff.
func (w *SheetsWriter) executeSheetsCall(ctx context.Context, desc string, call func() error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "sheets: %s cancelled", desc)
		}

		err := call()
		if err == nil {
			return nil
		}
		if !isRetryableSheetsError(err) || attempt >= w.retryMaxAttempts {
			return errors.Wrapf(err, "sheets: %s failed after %d attempts", desc, attempt+1)
		}

		delay := w.retryDelay * time.Duration(1<<attempt)
		w.logger.Warn(fmt.Sprintf("sheets: %s failed (attempt %d), retrying in %s", desc, attempt+1, delay), err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "sheets: %s cancelled during retry wait", desc)
		}
	}
}
