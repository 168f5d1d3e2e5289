package exportsvc

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/enrollgsrp/gsrp-enroll/core/application"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	xlsxSheet       = "Applications"
)

// WriteXLSX writes apps as a single sheet workbook, headers on the first row.
func WriteXLSX(w io.Writer, apps []application.Application) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		return errors.Wrap(err, "creating stream writer")
	}

	headers := make([]interface{}, len(Headers))
	for i, h := range Headers {
		headers[i] = h
	}
	if err = sw.SetRow("A1", headers); err != nil {
		return errors.Wrap(err, "writing headers")
	}
	for i, row := range Rows(apps) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err = sw.SetRow(cell, row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}
	if err = sw.Flush(); err != nil {
		return errors.Wrap(err, "flushing rows")
	}

	if _, err = f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
