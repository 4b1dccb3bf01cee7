package report

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-quality/internal/domain"
	"github.com/naka-gawa/repo-quality/internal/scoring"
)

// Outputs lists the files produced by WriteAll.
type Outputs struct {
	JSON  string
	CSV   string
	Excel string
	HTML  string
}

// WriteAll renders every report format of a batch under dir, using base as
// the common filename stem. The formats are independent so they are written
// concurrently; the first failure wins and the remaining writers still run
// to completion.
func WriteAll(batch *domain.Batch, cfg scoring.Config, dir, base string) (Outputs, error) {
	out := Outputs{
		JSON:  filepath.Join(dir, base+".json"),
		CSV:   filepath.Join(dir, base+".csv"),
		Excel: filepath.Join(dir, base+".xlsx"),
		HTML:  filepath.Join(dir, base+".html"),
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := WriteJSON(batch.Repositories, out.JSON); err != nil {
			return fmt.Errorf("JSON report: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := WriteCSV(batch.Repositories, out.CSV); err != nil {
			return fmt.Errorf("CSV report: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := WriteExcel(batch.Repositories, out.Excel); err != nil {
			return fmt.Errorf("Excel report: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := WriteHTML(batch, cfg, out.HTML); err != nil {
			return fmt.Errorf("HTML report: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
