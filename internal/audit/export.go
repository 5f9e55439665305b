package audit

import (
	"fmt"
	"io"

	"github.com/M5rkn/NailsBot/internal/models"
	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{"ID", "Дата", "Время", "Клиент", "Телефон", "Услуга", "Статус", "Создана"}

// WriteBookingsXLSX writes the bookings for one date to w as an Excel sheet.
// services maps catalog ids to entries for the service-name column.
func WriteBookingsXLSX(w io.Writer, date string, bookings []models.Booking, services map[int64]models.Service) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := date
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	f.SetSheetName("Sheet1", sheet)

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for rowIdx, b := range bookings {
		serviceName := ""
		if b.ServiceID != nil {
			if s, ok := services[*b.ServiceID]; ok {
				serviceName = s.Name
			}
		}
		row := []any{b.ID, b.Date, b.Time, b.Name, b.Phone, serviceName, b.Status, b.CreatedAt}
		for colIdx, val := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("write row %d: %w", rowIdx+2, err)
			}
		}
	}

	return f.Write(w)
}
