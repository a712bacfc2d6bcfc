package dashboard

import (
	"context"
	"fmt"

	"github.com/tinytelemetry/ponwatch/internal/report"
)

// ExportPivot writes the unfiltered pivot of a fresh snapshot as an .xlsx
// workbook at dstPath.
func (s *State) ExportPivot(ctx context.Context, dstPath string) error {
	_, rows, err := s.View(ctx, report.Filter{})
	if err != nil {
		return err
	}
	p, err := report.BuildPivot(rows, report.DefaultPivotSpec)
	if err != nil {
		return err
	}

	f, err := report.PivotWorkbook(p)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(dstPath); err != nil {
		return fmt.Errorf("saving %s: %w", dstPath, err)
	}
	return nil
}
