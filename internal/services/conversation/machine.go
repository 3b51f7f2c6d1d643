// Package conversation drives the per-user dialog: project type selection,
// document collection and the analysis run that ends every conversation.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
	"github.com/ternarybob/dossier/internal/services/analysis"
)

// Machine is the conversation state machine. Posts must be handed to it one
// at a time; sessions are keyed by user id.
type Machine struct {
	transport    interfaces.ChatTransport
	store        interfaces.SessionStore
	normalizer   interfaces.DocumentNormalizer
	analyzer     interfaces.ArtifactAnalyzer
	renderer     interfaces.ReportRenderer
	wikiBaseURL  string
	botUsername  string
	summaryLimit int
	now          func() time.Time
	logger       arbor.ILogger
}

// Dependencies groups the collaborators of a Machine
type Dependencies struct {
	Transport  interfaces.ChatTransport
	Store      interfaces.SessionStore
	Normalizer interfaces.DocumentNormalizer
	Analyzer   interfaces.ArtifactAnalyzer
	Renderer   interfaces.ReportRenderer
}

// NewMachine creates a conversation state machine
func NewMachine(deps Dependencies, config *common.Config, logger arbor.ILogger) *Machine {
	base := strings.TrimRight(config.Confluence.BaseURL, "/") + "/"
	return &Machine{
		transport:    deps.Transport,
		store:        deps.Store,
		normalizer:   deps.Normalizer,
		analyzer:     deps.Analyzer,
		renderer:     deps.Renderer,
		wikiBaseURL:  base,
		botUsername:  config.Mattermost.Username,
		summaryLimit: config.Report.SummaryLimit,
		now:          time.Now,
		logger:       logger,
	}
}

// HandlePost advances the sender's session by one message. It satisfies
// interfaces.PostHandler.
func (m *Machine) HandlePost(ctx context.Context, post models.Post) {
	if post.UserID == "" || post.ChannelID == "" {
		return
	}

	session, err := m.store.GetOrCreate(ctx, post.UserID)
	if err != nil {
		m.logger.Error().Err(err).Str("user_id", post.UserID).Msg("Failed to load session")
		m.send(ctx, errorPost(post.ChannelID, messageFailedText))
		return
	}
	session.ChannelID = post.ChannelID

	message := m.stripMention(post.Message)
	intent := ClassifyIntent(message, session.State)

	m.logger.Debug().
		Str("user_id", post.UserID).
		Str("post_id", post.ID).
		Str("state", string(session.State)).
		Str("intent", string(intent)).
		Int("files", len(post.FileIDs)).
		Msg("Handling post")

	if err := m.dispatch(ctx, session, post, message, intent); err != nil {
		m.logger.Error().Err(err).Str("user_id", post.UserID).Msg("Failed to handle post")
		m.send(ctx, errorPost(post.ChannelID, messageFailedText))
	}
}

func (m *Machine) dispatch(ctx context.Context, session *models.Session, post models.Post, message string, intent Intent) error {
	switch intent {
	case IntentRestart:
		if err := m.reset(ctx, session); err != nil {
			return err
		}
		m.send(ctx, welcomePost(post.ChannelID, m.wikiBaseURL))
		return nil
	case IntentStart:
		if err := m.reset(ctx, session); err != nil {
			return err
		}
		return m.askProjectTypes(ctx, session)
	}

	switch session.State {
	case models.StateInitial:
		m.send(ctx, welcomePost(post.ChannelID, m.wikiBaseURL))
		return nil
	case models.StateWaitingProjectTypes:
		return m.selectProjectTypes(ctx, session, message)
	case models.StateWaitingDocuments:
		return m.collectDocuments(ctx, session, post, message)
	case models.StateAskingMoreDocuments:
		return m.askingMore(ctx, session, post, message, intent)
	default:
		m.logger.Warn().
			Str("user_id", session.UserID).
			Str("state", string(session.State)).
			Msg("Unknown session state, resetting")
		if err := m.reset(ctx, session); err != nil {
			return err
		}
		m.send(ctx, welcomePost(post.ChannelID, m.wikiBaseURL))
		return nil
	}
}

func (m *Machine) askProjectTypes(ctx context.Context, session *models.Session) error {
	session.State = models.StateWaitingProjectTypes
	if err := m.save(ctx, session); err != nil {
		return err
	}
	m.send(ctx, projectTypesPost(session.ChannelID))
	return nil
}

func (m *Machine) selectProjectTypes(ctx context.Context, session *models.Session, message string) error {
	codes := analysis.ParseProjectTypes(message)
	if len(codes) == 0 {
		m.send(ctx, unknownProjectTypesPost(session.ChannelID))
		return nil
	}

	session.ProjectTypes = codes
	session.State = models.StateWaitingDocuments
	if err := m.save(ctx, session); err != nil {
		return err
	}

	m.logger.Info().
		Str("user_id", session.UserID).
		Str("project_types", strings.Join(codes, ",")).
		Msg("Project types selected")
	m.send(ctx, projectTypesSelectedPost(session.ChannelID, codes))
	return nil
}

func (m *Machine) collectDocuments(ctx context.Context, session *models.Session, post models.Post, message string) error {
	inputs := m.gatherInputs(ctx, post, message)
	if len(inputs) == 0 {
		m.send(ctx, textPost(session.ChannelID, fmt.Sprintf(noDocumentsText, m.wikiBaseURL)))
		return nil
	}
	return m.appendDocuments(ctx, session, inputs)
}

func (m *Machine) askingMore(ctx context.Context, session *models.Session, post models.Post, message string, intent Intent) error {
	inputs := m.gatherInputs(ctx, post, message)

	switch intent {
	case IntentAddMore:
		if len(inputs) > 0 {
			return m.addNormalized(ctx, session, inputs)
		}
		session.State = models.StateWaitingDocuments
		if err := m.save(ctx, session); err != nil {
			return err
		}
		m.send(ctx, textPost(session.ChannelID, moreDocumentsText))
		return nil
	case IntentRun:
		if len(inputs) > 0 {
			session.Normalized = append(session.Normalized, m.normalizer.Normalize(ctx, inputs)...)
		}
		m.runAnalysis(ctx, session)
		return nil
	}

	if len(inputs) > 0 {
		return m.addNormalized(ctx, session, inputs)
	}
	if intent == IntentQuestion {
		m.send(ctx, textPost(session.ChannelID, questionHintText))
	}
	return nil
}

func (m *Machine) appendDocuments(ctx context.Context, session *models.Session, inputs []models.RawInput) error {
	session.Documents = append(session.Documents, inputs...)
	session.State = models.StateAskingMoreDocuments
	if err := m.save(ctx, session); err != nil {
		return err
	}

	m.logger.Info().
		Str("user_id", session.UserID).
		Int("added", len(inputs)).
		Int("total", documentCount(session)).
		Msg("Documents collected")
	m.send(ctx, documentsReceivedPost(session.ChannelID, documentCount(session)))
	return nil
}

// addNormalized handles documents sent while the bot asks for more: they are
// normalized right away and the conversation stays in asking_more_documents.
func (m *Machine) addNormalized(ctx context.Context, session *models.Session, inputs []models.RawInput) error {
	docs := m.normalizer.Normalize(ctx, inputs)
	session.Normalized = append(session.Normalized, docs...)
	session.State = models.StateAskingMoreDocuments
	if err := m.save(ctx, session); err != nil {
		return err
	}

	m.logger.Info().
		Str("user_id", session.UserID).
		Int("inputs", len(inputs)).
		Int("normalized", len(docs)).
		Int("total", documentCount(session)).
		Msg("Additional documents normalized")
	m.send(ctx, documentsReceivedPost(session.ChannelID, documentCount(session)))
	return nil
}

func documentCount(session *models.Session) int {
	return len(session.Documents) + len(session.Normalized)
}

// gatherInputs downloads the post's files and extracts its wiki links.
// A file that cannot be fetched is logged and skipped.
func (m *Machine) gatherInputs(ctx context.Context, post models.Post, message string) []models.RawInput {
	var inputs []models.RawInput

	for _, fileID := range post.FileIDs {
		info, ok := post.FileInfoFor(fileID)
		if !ok {
			fetched, err := m.transport.GetFileInfo(ctx, fileID)
			if err != nil {
				m.logger.Warn().Err(err).Str("file_id", fileID).Msg("Failed to get file info")
				continue
			}
			info = *fetched
		}

		data, err := m.transport.GetFile(ctx, fileID)
		if err != nil {
			m.logger.Warn().Err(err).Str("file_id", fileID).Str("name", info.Name).Msg("Failed to download file")
			continue
		}

		name := info.Name
		if name == "" {
			name = "file_" + fileID
		}
		inputs = append(inputs, models.RawInput{
			Kind:   models.DocumentKindFile,
			Name:   name,
			FileID: fileID,
			Data:   data,
			Size:   int64(len(data)),
		})
	}

	for _, link := range common.ExtractWikiLinks(message, m.wikiBaseURL) {
		inputs = append(inputs, models.RawInput{
			Kind: models.DocumentKindWikiPage,
			Name: link,
			URL:  link,
		})
	}
	return inputs
}

func (m *Machine) stripMention(message string) string {
	if m.botUsername == "" {
		return message
	}
	return strings.TrimSpace(strings.ReplaceAll(message, "@"+m.botUsername, ""))
}

func (m *Machine) save(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = m.now()
	if err := m.store.Save(ctx, session); err != nil {
		return fmt.Errorf("save session %s: %w", session.UserID, err)
	}
	return nil
}

// reset returns the session to initial values in the store and in place
func (m *Machine) reset(ctx context.Context, session *models.Session) error {
	if err := m.store.Reset(ctx, session.UserID); err != nil {
		return fmt.Errorf("reset session %s: %w", session.UserID, err)
	}
	session.Reset()
	return nil
}

func (m *Machine) send(ctx context.Context, post models.OutgoingPost) {
	if _, err := m.transport.CreatePost(ctx, post); err != nil {
		m.logger.Error().Err(err).Str("channel_id", post.ChannelID).Msg("Failed to send message")
	}
}
