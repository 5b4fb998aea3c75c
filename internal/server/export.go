package server

import (
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"
)

// handleReportExport writes the attempt history as an XLSX workbook.
func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.deps.History.List(r.Context(), r.URL.Query().Get("material_id"), 0)
	if err != nil {
		s.respondError(w, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Attempts"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Submitted At", "Material", "Mode", "Difficulty", "Score", "Total", "Percentage"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			s.respondError(w, fmt.Errorf("writing header: %w", err))
			return
		}
	}

	for row, rec := range attempts {
		values := []any{
			rec.SubmittedAt.Format("2006-01-02 15:04:05"),
			rec.MaterialID,
			rec.Mode,
			rec.Difficulty,
			rec.ScoreRaw,
			rec.ScoreTotal,
			rec.ScorePercentage,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				s.respondError(w, fmt.Errorf("writing attempt row: %w", err))
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="quiz-history.xlsx"`)
	if _, err := f.WriteTo(w); err != nil {
		s.log.Warn("streaming xlsx failed", "error", err)
	}
}
