package conversation

import (
	"context"
	"fmt"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/models"
	"github.com/ternarybob/dossier/internal/services/report"
)

// runAnalysis normalizes the collected documents, runs the artifact sweep,
// delivers the report and resets the session whatever the outcome.
func (m *Machine) runAnalysis(ctx context.Context, session *models.Session) {
	channelID := session.ChannelID
	userID := session.UserID
	projectTypes := append([]string(nil), session.ProjectTypes...)
	inputs := append([]models.RawInput(nil), session.Documents...)
	normalized := append([]models.Document(nil), session.Normalized...)

	untrack := common.TrackActiveRun(userID, channelID, len(inputs)+len(normalized))
	defer untrack()

	defer func() {
		if err := m.reset(ctx, session); err != nil {
			m.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to reset session after analysis")
		}
	}()

	m.logger.Info().
		Str("user_id", userID).
		Int("inputs", len(inputs)).
		Int("normalized", len(normalized)).
		Strs("project_types", projectTypes).
		Msg("Analysis started")

	err := func() (err error) {
		defer common.CatchPanic(m.logger, "analysisPipeline", &err)
		return m.deliverAnalysis(ctx, channelID, inputs, normalized, projectTypes)
	}()
	if err != nil {
		m.logger.Error().Err(err).Str("user_id", userID).Msg("Analysis failed")
		m.send(ctx, errorPost(channelID, analysisFailedText))
	}
}

func (m *Machine) deliverAnalysis(ctx context.Context, channelID string, inputs []models.RawInput, normalized []models.Document, projectTypes []string) error {
	m.send(ctx, textPost(channelID, analysisStartedText))

	var docs []models.Document
	if len(inputs) > 0 {
		docs = m.normalizer.Normalize(ctx, inputs)
	}
	docs = append(docs, normalized...)
	if len(docs) == 0 {
		m.logger.Warn().Int("inputs", len(inputs)).Msg("No documents could be normalized")
		m.send(ctx, textPost(channelID, noDocumentsParsedText))
		return nil
	}
	m.send(ctx, textPost(channelID, fmt.Sprintf(documentsReadyText, len(docs))))

	result, err := m.analyzer.Analyze(ctx, docs, projectTypes)
	if err != nil {
		return fmt.Errorf("analyze documents: %w", err)
	}
	m.send(ctx, textPost(channelID, analysisFinishedText))

	pdf, err := m.renderer.Render(result, projectTypes, docs)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	fileName := common.ReportFileName(m.now())
	fileID, err := m.transport.UploadFile(ctx, channelID, fileName, pdf)
	if err != nil {
		return fmt.Errorf("upload report %s: %w", fileName, err)
	}

	summary := models.OutgoingPost{
		ChannelID: channelID,
		Message:   report.SummaryMessage(result, m.summaryLimit),
		FileIDs:   []string{fileID},
	}
	if _, err := m.transport.CreatePost(ctx, summary); err != nil {
		return fmt.Errorf("post summary: %w", err)
	}
	m.send(ctx, restartPost(channelID))

	m.logger.Info().
		Str("run_id", result.RunID).
		Int("found", result.Summary.Found).
		Int("partial", result.Summary.Partial).
		Int("not_found", result.Summary.NotFound).
		Str("report", fileName).
		Msg("Analysis delivered")
	return nil
}
