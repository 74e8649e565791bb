package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// execute drives a started job to staging or a terminal state
func (s *Service) execute(st *runState) error {
	defer func() {
		s.unregisterJob(st.job.ID)
		st.cancel()
	}()

	scraper, err := s.scrapers(st.webSource)
	if err != nil {
		return s.fail(st, fmt.Errorf("failed to initialize scraper: %w", err))
	}
	defer scraper.Close()

	rows, err := s.collectRows(st, scraper)
	if err != nil {
		if isCancellation(st, err) {
			return s.cancelled(st)
		}
		return s.fail(st, err)
	}
	if st.ctx.Err() != nil {
		return s.cancelled(st)
	}

	s.recordAudit(st.ctx, models.AuditExtractionCompleted, st.assignment.ID, st.job.ID, st.dataSource.ID, map[string]interface{}{
		"rows_extracted":  len(rows),
		"pages_processed": st.job.PagesProcessed,
	})

	if st.job.SyncMode == models.SyncModeManual {
		return s.finishManual(st, rows)
	}
	return s.finishAuto(st, rows)
}

// collectRows expands the URL set and extracts rows from every page.
// Per-page failures are logged and skipped; the run continues.
func (s *Service) collectRows(st *runState, scraper interfaces.Scraper) ([]interfaces.Row, error) {
	cfg, err := st.webSource.GetPaginationConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid pagination config: %w", err)
	}

	// A next-button chain is walked page by page; every other pagination
	// shape expands to a static URL list up front.
	if cfg != nil && cfg.Type == models.PaginationTypeNextButton && !st.webSource.IsListMode {
		return s.walkNextPages(st, scraper, cfg)
	}

	urls, err := s.buildURLs(st, scraper, cfg)
	if err != nil {
		return nil, err
	}
	st.job.PagesTotal = len(urls)
	s.updateJob(st)

	var all []interfaces.Row
	for _, pageURL := range urls {
		if err := st.ctx.Err(); err != nil {
			return all, err
		}

		rows, err := s.extractPage(st, scraper, pageURL)
		if err != nil {
			if isCancellation(st, err) {
				return all, err
			}
			s.appendLog(st.ctx, st.job.ID, models.LogLevelError,
				fmt.Sprintf("Page extraction failed: %v", err), pageURL)
		} else {
			all = append(all, rows...)
		}

		st.job.PagesProcessed++
		st.job.RowsExtracted = len(all)
		st.job.CurrentURL = pageURL
		s.updateJob(st)
		s.appendLog(st.ctx, st.job.ID, models.LogLevelInfo,
			fmt.Sprintf("Processed page %d/%d (%d rows)", st.job.PagesProcessed, st.job.PagesTotal, len(rows)), pageURL)

		if err := st.ctx.Err(); err != nil {
			return all, err
		}
	}
	return all, nil
}

// buildURLs resolves the pages of a run. List mode enumerates the base URL
// plus the configured list and suppresses pagination expansion.
func (s *Service) buildURLs(st *runState, scraper interfaces.Scraper, cfg *models.PaginationConfig) ([]string, error) {
	if st.webSource.IsListMode {
		urls := make([]string, 0, len(st.webSource.URLList)+1)
		urls = append(urls, st.webSource.BaseURL)
		urls = append(urls, st.webSource.URLList...)
		return urls, nil
	}

	base := st.startURL()
	if cfg == nil || cfg.Type == "" || cfg.Type == models.PaginationTypeNone {
		return []string{base}, nil
	}
	return scraper.GeneratePaginatedURLs(base, cfg, cfg.EffectiveMaxPages())
}

// walkNextPages follows a next-button chain from the start URL. The chain
// ends when no next link resolves, a URL repeats, or the page cap is hit.
func (s *Service) walkNextPages(st *runState, scraper interfaces.Scraper, cfg *models.PaginationConfig) ([]interfaces.Row, error) {
	seen := make(map[string]bool)
	pageURL := st.startURL()
	maxPages := cfg.EffectiveMaxPages()

	var all []interfaces.Row
	for page := 0; page < maxPages && pageURL != "" && !seen[pageURL]; page++ {
		if err := st.ctx.Err(); err != nil {
			return all, err
		}
		seen[pageURL] = true

		html, err := scraper.FetchHTML(st.ctx, pageURL)
		if err != nil {
			if isCancellation(st, err) {
				return all, err
			}
			s.appendLog(st.ctx, st.job.ID, models.LogLevelError,
				fmt.Sprintf("Page fetch failed: %v", err), pageURL)
			st.job.PagesProcessed++
			st.job.CurrentURL = pageURL
			s.updateJob(st)
			break
		}

		rows, err := s.extractHTML(st, scraper, html, pageURL)
		if err != nil {
			s.appendLog(st.ctx, st.job.ID, models.LogLevelError,
				fmt.Sprintf("Page extraction failed: %v", err), pageURL)
		} else {
			all = append(all, rows...)
		}

		st.job.PagesProcessed++
		st.job.RowsExtracted = len(all)
		st.job.CurrentURL = pageURL
		s.updateJob(st)
		s.appendLog(st.ctx, st.job.ID, models.LogLevelInfo,
			fmt.Sprintf("Processed page %d (%d rows)", st.job.PagesProcessed, len(rows)), pageURL)

		next, err := scraper.NextPageURL(html, pageURL, cfg)
		if err != nil || next == "" {
			break
		}
		pageURL = next
	}
	return all, nil
}

// extractPage fetches one URL and extracts its rows
func (s *Service) extractPage(st *runState, scraper interfaces.Scraper, pageURL string) ([]interfaces.Row, error) {
	html, err := scraper.FetchHTML(st.ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return s.extractHTML(st, scraper, html, pageURL)
}

// extractHTML applies the assignment's extraction method to fetched HTML
func (s *Service) extractHTML(st *runState, scraper interfaces.Scraper, html, pageURL string) ([]interfaces.Row, error) {
	if st.assignment.ExtractionMethod == models.ExtractionMethodLLM {
		return s.llm.ExtractStructured(st.ctx, html, st.capture, pageURL)
	}
	return scraper.Extract(html, st.rules)
}

// finishManual writes the extracted rows to the staging store and parks the
// job in staging awaiting an operator commit
func (s *Service) finishManual(st *runState, rows []interfaces.Row) error {
	payload, err := s.staging.Put(st.ctx, st.job.ID, rows)
	if err != nil {
		return s.fail(st, fmt.Errorf("failed to stage rows: %w", err))
	}

	st.job.StagedRowCount = payload.RowCount
	st.job.StagedDataInline = payload.Inline
	st.job.StagedDataPath = payload.Path
	s.updateJob(st)

	if err := s.repo.Jobs().SetStatus(st.ctx, st.job.ID, models.JobStatusStaging, ""); err != nil {
		return s.fail(st, err)
	}
	s.appendLog(st.ctx, st.job.ID, models.LogLevelInfo,
		fmt.Sprintf("Extraction complete, %d rows staged for review", payload.RowCount), "")
	s.logger.Info().
		Str("job_id", st.job.ID).
		Int("rows", payload.RowCount).
		Msg("Job staged")
	return nil
}

// finishAuto inserts the extracted rows straight into the target table
func (s *Service) finishAuto(st *runState, rows []interfaces.Row) error {
	s.recordAudit(st.ctx, models.AuditSyncStarted, st.assignment.ID, st.job.ID, st.dataSource.ID, map[string]interface{}{
		"rows": len(rows),
	})

	inserted, failed, err := s.insertRows(st, rows)
	st.job.RowsInserted = inserted
	st.job.RowsFailed = failed
	s.updateJob(st)

	if err != nil {
		if isCancellation(st, err) {
			return s.cancelled(st)
		}
		s.recordAudit(st.ctx, models.AuditSyncFailed, st.assignment.ID, st.job.ID, st.dataSource.ID, map[string]interface{}{
			"error": err.Error(),
		})
		return s.fail(st, err)
	}

	if err := s.repo.Jobs().SetStatus(st.ctx, st.job.ID, models.JobStatusCompleted, ""); err != nil {
		return s.fail(st, err)
	}
	s.appendLog(st.ctx, st.job.ID, models.LogLevelInfo,
		fmt.Sprintf("Sync complete: %d rows inserted, %d failed", inserted, failed), "")
	s.recordAudit(st.ctx, models.AuditSyncCompleted, st.assignment.ID, st.job.ID, st.dataSource.ID, map[string]interface{}{
		"rows_inserted": inserted,
		"rows_failed":   failed,
	})
	s.logger.Info().
		Str("job_id", st.job.ID).
		Int("rows_inserted", inserted).
		Int("rows_failed", failed).
		Msg("Job completed")
	return nil
}

// insertRows opens a connector to the target database and inserts rows one
// statement at a time in batches. Per-row failures are counted and logged;
// the insert continues.
func (s *Service) insertRows(st *runState, rows []interfaces.Row) (int, int, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	columns := s.targetColumns(st)
	if len(columns) == 0 {
		return 0, 0, fmt.Errorf("no target columns configured")
	}

	password := st.dataSource.Password
	if s.secrets != nil && password != "" {
		plaintext, err := s.secrets.Decrypt(password)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to decrypt data source password: %w", err)
		}
		password = plaintext
	}

	conn, err := s.connect(st.dataSource, password, s.logger)
	if err != nil {
		return 0, 0, err
	}
	defer conn.Disconnect()

	if err := conn.Connect(st.ctx); err != nil {
		return 0, 0, &models.ConnectionError{Target: st.dataSource.ID, Err: err}
	}

	table := conn.QuoteIdentifier(st.assignment.TargetTable)
	if st.assignment.TargetSchema != "" {
		table = conn.QuoteIdentifier(st.assignment.TargetSchema) + "." + table
	}
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = conn.QuoteIdentifier(col)
		placeholders[i] = conn.Placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	inserted, failed := 0, 0
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		for _, row := range rows[start:end] {
			params := make([]interface{}, len(columns))
			for i, col := range columns {
				params[i] = row[col]
			}
			if _, err := conn.Exec(st.ctx, stmt, params); err != nil {
				if st.ctx.Err() != nil {
					return inserted, failed, st.ctx.Err()
				}
				failed++
				s.appendLog(st.ctx, st.job.ID, models.LogLevelWarn,
					fmt.Sprintf("Row insert failed: %v", err), "")
				continue
			}
			inserted++
		}

		st.job.RowsInserted = inserted
		st.job.RowsFailed = failed
		s.updateJob(st)
	}
	return inserted, failed, nil
}

// targetColumns lists the insert columns in configured order
func (s *Service) targetColumns(st *runState) []string {
	if st.assignment.ExtractionMethod == models.ExtractionMethodLLM {
		columns := make([]string, 0, len(st.capture.ColumnMappings))
		for _, m := range st.capture.ColumnMappings {
			columns = append(columns, m.ColumnName)
		}
		return columns
	}
	columns := make([]string, 0, len(st.rules))
	for _, rule := range st.rules {
		columns = append(columns, rule.TargetColumn)
	}
	return columns
}

// fail moves the job to failed and reports the error
func (s *Service) fail(st *runState, cause error) error {
	st.job.ErrorDetails = fmt.Sprintf("%+v", cause)
	s.updateJob(st)

	if err := s.repo.Jobs().SetStatus(st.ctx, st.job.ID, models.JobStatusFailed, cause.Error()); err != nil {
		s.logger.Warn().Err(err).Str("job_id", st.job.ID).Msg("Failed to mark job failed")
	}
	s.appendLog(st.ctx, st.job.ID, models.LogLevelError,
		fmt.Sprintf("Job failed: %v", cause), st.job.CurrentURL)
	s.recordAudit(st.ctx, models.AuditExtractionFailed, st.assignment.ID, st.job.ID, st.dataSource.ID, map[string]interface{}{
		"error": cause.Error(),
	})
	s.logger.Error().Err(cause).Str("job_id", st.job.ID).Msg("Extraction job failed")
	return cause
}

// cancelled acknowledges a context cancellation. The status transition is
// best effort since Cancel usually flipped it already.
func (s *Service) cancelled(st *runState) error {
	if err := s.repo.Jobs().SetStatus(context.WithoutCancel(st.ctx), st.job.ID, models.JobStatusCancelled, ""); err == nil {
		s.recordAudit(context.WithoutCancel(st.ctx), models.AuditExtractionCancelled,
			st.assignment.ID, st.job.ID, st.dataSource.ID, nil)
	}
	if s.staging != nil {
		if err := s.staging.Delete(st.job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", st.job.ID).Msg("Failed to remove staged data on cancel")
		}
	}
	s.logger.Info().Str("job_id", st.job.ID).Msg("Extraction job cancelled")
	return context.Canceled
}

// isCancellation reports whether an error stems from the job context being
// cancelled
func isCancellation(st *runState, err error) bool {
	return st.ctx.Err() != nil || errors.Is(err, context.Canceled)
}
