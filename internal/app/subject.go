package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"shanoir2bids/internal/bids"
	"shanoir2bids/internal/config"
	"shanoir2bids/internal/gateway/heudiconv"
	"shanoir2bids/internal/gateway/shanoir"
	"shanoir2bids/internal/logger"
	"shanoir2bids/internal/runlog"
	"shanoir2bids/internal/seqinfo"
	"shanoir2bids/internal/store/downloadlog"
)

// downloadSubject runs the full per-subject pass:
// for every sequence rule, query / download / extract; then emit the
// heuristic and converter-options artifacts and hand off to the conversion
// workflow. Query and extraction problems are absorbed per sequence or per
// item; only a conversion workflow failure fails the subject.
func (a *App) downloadSubject(ctx context.Context, subject string) error {
	logger.Banner("Downloading subject " + subject)
	section := runlog.NewSection()
	section.Banner("Downloading subject " + subject)
	defer a.rlog.Flush(section)

	tmpArchive, err := os.MkdirTemp(a.opts.DownloadDir, "archives-")
	if err != nil {
		return fmt.Errorf("creating archive directory failed: %w", err)
	}
	defer os.RemoveAll(tmpArchive)
	tmpDicom, err := os.MkdirTemp(a.opts.DownloadDir, "dicoms-")
	if err != nil {
		return fmt.Errorf("creating extraction directory failed: %w", err)
	}
	defer os.RemoveAll(tmpDicom)

	var mappings []bids.Mapping
	total := len(a.cfg.SequenceRules)
	for i, rule := range a.cfg.SequenceRules {
		logger.Infof("- %s %s [%d/%d]", rule.BidsName, subject, i+1, total)
		mappings = append(mappings, a.downloadSequence(ctx, subject, rule, tmpArchive, tmpDicom, section)...)
	}

	if len(mappings) == 0 {
		logger.Warnf("nothing was downloaded for subject %s, skipping conversion", subject)
		section.Linef(">> WARNING : nothing downloaded, conversion skipped")
		return nil
	}
	return a.convertSubject(ctx, subject, mappings, tmpDicom, section)
}

// downloadSequence handles one (subject, sequence) query. It returns the
// mappings of the items that were downloaded and extracted; everything that
// went wrong is logged and skipped.
func (a *App) downloadSequence(ctx context.Context, subject string, rule config.SequenceRule, tmpArchive, tmpDicom string, section *runlog.Section) []bids.Mapping {
	text := shanoir.SearchText(a.cfg.StudyName, rule.DatasetName, subject,
		a.cfg.SessionFilter, a.cfg.DateFrom, a.cfg.DateTo)

	resp, err := a.client.Search(ctx, text)
	if err != nil {
		logger.Errorf("search for %s failed: %v", rule.DatasetName, err)
		section.Linef("  >> ERROR : search failed: %v", err)
		return nil
	}
	switch {
	case resp.Found():
		if len(resp.Items) == 0 {
			logger.Warnf("the request returned 0 results, check the search text on the website: %s", text)
			section.Linef("WARNING ! The request returned 0 results. Search text : %q", text)
			return nil
		}
		return a.downloadItems(ctx, subject, rule, resp.Items, tmpArchive, tmpDicom, section)
	case resp.Empty():
		logger.Warnf("no file found for %s (subject %s)", rule.DatasetName, subject)
		section.Linef("  >> ERROR : No file found!")
		return nil
	default:
		logger.Errorf("request returned status %d for %s (subject %s)", resp.Status, rule.DatasetName, subject)
		section.Linef("  >> ERROR : Returned by the request: status of the response = %d", resp.Status)
		return nil
	}
}

func (a *App) downloadItems(ctx context.Context, subject string, rule config.SequenceRule, items []shanoir.Result, tmpArchive, tmpDicom string, section *runlog.Section) []bids.Mapping {
	var mappings []bids.Mapping
	for _, item := range items {
		archivePath, err := a.client.Download(ctx, item, a.opts.FileType, tmpArchive)
		if err != nil {
			logger.Errorf("downloading dataset %d failed: %v", item.DatasetID, err)
			section.Linef("  >> ERROR : downloading dataset %d failed: %v", item.DatasetID, err)
			continue
		}
		m := bids.MapResult(item, rule, a.cfg.RenameRules, a.opts.Longitudinal, section)
		section.Linef("  >> Downloading archive OK")

		record := downloadlog.Item{
			Subject:     subject,
			DatasetID:   item.DatasetID,
			DatasetName: item.DatasetName,
			ExamDate:    item.ExamDate,
			ArchivePath: archivePath,
		}
		extractionDir := filepath.Join(tmpDicom, item.ID)
		if err := a.extract(archivePath, extractionDir); err != nil {
			logger.Errorf("extracting %s failed: %v", archivePath, err)
			section.Linef("  >> ERROR : extraction of archive '%s' failed: %v", archivePath, err)
			a.recordItem(ctx, record)
			continue
		}
		section.Linef("  >> Extraction of all files from archive '%s' into %s", archivePath, extractionDir)
		record.Extracted = true
		a.recordItem(ctx, record)
		mappings = append(mappings, m)
	}
	return mappings
}

func (a *App) recordItem(ctx context.Context, item downloadlog.Item) {
	if err := a.store.RecordItem(ctx, item); err != nil {
		logger.Warnf("recording download of dataset %d failed: %v", item.DatasetID, err)
	}
}

// convertSubject emits the artifacts and invokes the conversion workflow
// for one subject's accumulated mappings.
func (a *App) convertSubject(ctx context.Context, subject string, mappings []bids.Mapping, tmpDicom string, section *runlog.Section) error {
	report, err := a.scan(tmpDicom)
	if err != nil {
		return fmt.Errorf("inspecting extracted files failed: %w", err)
	}
	if len(report.Files) == 0 {
		logger.Warnf("no DICOM files extracted for subject %s, skipping conversion", subject)
		section.Linef(">> WARNING : no DICOM files extracted, conversion skipped")
		return nil
	}
	a.logClassification(mappings, report.Series, section)

	heuristicPath, err := tempArtifact(a.opts.DownloadDir, "heuristic-*.py")
	if err != nil {
		return err
	}
	defer os.Remove(heuristicPath)
	if err := bids.WriteHeuristic(heuristicPath, mappings, a.opts.OutputFormat); err != nil {
		return err
	}
	optionsPath, err := tempArtifact(a.opts.DownloadDir, "dcm2niix-options-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(optionsPath)
	if err := heudiconv.WriteConverterOptions(optionsPath, a.cfg.ConverterOptions); err != nil {
		return err
	}

	params := heudiconv.Params{
		Files:         report.Files,
		OutputDir:     filepath.Join(a.opts.DownloadDir, a.cfg.StudyName),
		Subject:       mappings[0].SubjectID,
		HeuristicPath: heuristicPath,
		DcmConfigPath: optionsPath,
	}
	if a.opts.Longitudinal && mappings[0].SessionID != nil {
		params.Session = *mappings[0].SessionID
	}
	if err := a.runner.Convert(ctx, params); err != nil {
		section.Linef(">> ERROR : conversion workflow failed: %v", err)
		return err
	}
	section.Linef(">> Conversion workflow finished for subject %s", subject)
	return nil
}

// logClassification records which extracted series each heuristic key will
// pick up, before the workflow runs.
func (a *App) logClassification(mappings []bids.Mapping, series []seqinfo.Series, section *runlog.Section) {
	refs := make([]bids.SeriesRef, 0, len(series))
	for _, s := range series {
		refs = append(refs, bids.SeriesRef{ID: s.ID(), Description: s.Description})
	}
	groups := bids.BuildKeys(mappings, a.opts.OutputFormat)
	for _, assignment := range bids.ClassifySeries(groups, refs) {
		section.Linef("  >> key %s/%s matches series %v",
			assignment.Key.Dir, assignment.Key.Template, assignment.SeriesIDs)
	}
}

func tempArtifact(dir, pattern string) (string, error) {
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("creating temporary artifact failed: %w", err)
	}
	path := file.Name()
	if err := file.Close(); err != nil {
		return "", err
	}
	return path, nil
}
