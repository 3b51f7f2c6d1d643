package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/models"
	"github.com/ternarybob/dossier/internal/storage/memory"
)

const (
	testUser    = "user-1"
	testChannel = "dm-1"
)

type fakeTransport struct {
	posts     []models.OutgoingPost
	uploads   []string
	files     map[string][]byte
	infos     map[string]models.FileInfo
	infoCalls int
	uploadErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{files: map[string][]byte{}, infos: map[string]models.FileInfo{}}
}

func (f *fakeTransport) Login(ctx context.Context) error { return nil }
func (f *fakeTransport) GetMe(ctx context.Context) (*models.User, error) {
	return &models.User{ID: "bot", Username: "dossier"}, nil
}
func (f *fakeTransport) GetTeamsForUser(ctx context.Context, userID string) ([]models.Team, error) {
	return nil, nil
}
func (f *fakeTransport) GetChannelsForTeamForUser(ctx context.Context, userID, teamID string) ([]models.Channel, error) {
	return nil, nil
}
func (f *fakeTransport) GetPostsSince(ctx context.Context, channelID string, since int64) ([]models.Post, error) {
	return nil, nil
}
func (f *fakeTransport) CreatePost(ctx context.Context, post models.OutgoingPost) (string, error) {
	f.posts = append(f.posts, post)
	return "post", nil
}
func (f *fakeTransport) UploadFile(ctx context.Context, channelID, fileName string, data []byte) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, fileName)
	return "report-file", nil
}
func (f *fakeTransport) GetFile(ctx context.Context, fileID string) ([]byte, error) {
	data, ok := f.files[fileID]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}
func (f *fakeTransport) GetFileInfo(ctx context.Context, fileID string) (*models.FileInfo, error) {
	f.infoCalls++
	info, ok := f.infos[fileID]
	if !ok {
		return nil, errors.New("not found")
	}
	return &info, nil
}
func (f *fakeTransport) Ping(ctx context.Context) error { return nil }

func (f *fakeTransport) last() models.OutgoingPost {
	if len(f.posts) == 0 {
		return models.OutgoingPost{}
	}
	return f.posts[len(f.posts)-1]
}

func (f *fakeTransport) messages() string {
	var b strings.Builder
	for _, p := range f.posts {
		b.WriteString(p.Message)
		b.WriteString("\n")
	}
	return b.String()
}

type fakeNormalizer struct {
	inputs []models.RawInput
	calls  int
	docs   []models.Document
}

func (f *fakeNormalizer) Normalize(ctx context.Context, inputs []models.RawInput) []models.Document {
	f.inputs = inputs
	f.calls++
	return f.docs
}

type fakeAnalyzer struct {
	projectTypes []string
	docs         []models.Document
	activeRuns   int
	err          error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, docs []models.Document, projectTypes []string) (*models.AnalysisResult, error) {
	f.projectTypes = projectTypes
	f.docs = docs
	f.activeRuns = common.ActiveRunCount()
	if f.err != nil {
		return nil, f.err
	}
	result := &models.AnalysisResult{RunID: "run-1", Documents: docs}
	result.Add(models.ArtifactVerdict{Name: "Паспорт проекта", Status: models.StatusFound})
	result.Add(models.ArtifactVerdict{Name: "Версии ПО", Status: models.StatusNotFound})
	return result, nil
}

type fakeRenderer struct {
	panics bool
}

func (f *fakeRenderer) Render(result *models.AnalysisResult, projectTypes []string, docs []models.Document) ([]byte, error) {
	if f.panics {
		panic("renderer exploded")
	}
	return []byte("%PDF-1.3"), nil
}

type fixture struct {
	machine    *Machine
	transport  *fakeTransport
	store      *memory.SessionStorage
	normalizer *fakeNormalizer
	analyzer   *fakeAnalyzer
	renderer   *fakeRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Confluence.BaseURL = "https://wiki.example.com"
	config.Mattermost.Username = "dossier"

	f := &fixture{
		transport:  newFakeTransport(),
		store:      memory.NewSessionStorage(),
		normalizer: &fakeNormalizer{docs: []models.Document{{Name: "a.pdf", Kind: models.DocumentKindFile, Text: "text"}}},
		analyzer:   &fakeAnalyzer{},
		renderer:   &fakeRenderer{},
	}
	f.machine = NewMachine(Dependencies{
		Transport:  f.transport,
		Store:      f.store,
		Normalizer: f.normalizer,
		Analyzer:   f.analyzer,
		Renderer:   f.renderer,
	}, config, arbor.NewLogger())
	f.machine.now = func() time.Time { return time.Unix(1700000000, 0) }
	return f
}

func (f *fixture) say(t *testing.T, message string, fileIDs ...string) {
	t.Helper()
	f.machine.HandlePost(context.Background(), models.Post{
		ID:        "p-" + message,
		ChannelID: testChannel,
		UserID:    testUser,
		Message:   message,
		FileIDs:   fileIDs,
	})
}

func (f *fixture) session(t *testing.T) *models.Session {
	t.Helper()
	session, err := f.store.GetOrCreate(context.Background(), testUser)
	require.NoError(t, err)
	return session
}

func (f *fixture) setSession(t *testing.T, state models.SessionState, docs ...models.RawInput) {
	t.Helper()
	session := models.NewSession(testUser)
	session.State = state
	session.ProjectTypes = []string{"BI"}
	session.Documents = docs
	session.ChannelID = testChannel
	require.NoError(t, f.store.Save(context.Background(), session))
}

func (f *fixture) addFile(id, name string) {
	f.transport.files[id] = []byte("content of " + name)
	f.transport.infos[id] = models.FileInfo{ID: id, Name: name, Size: 10}
}

func TestInitialStateGreets(t *testing.T) {
	f := newFixture(t)

	f.say(t, "что ты умеешь")

	assert.Equal(t, models.StateInitial, f.session(t).State)
	require.Len(t, f.transport.posts, 1)
	assert.Contains(t, f.transport.last().Message, "Привет! Я бот для анализа документации")
	assert.Contains(t, f.transport.last().Message, "https://wiki.example.com/x/ABC123")
	require.Len(t, f.transport.last().Attachments, 1)
	assert.Equal(t, "🚀 Готовы начать анализ?", f.transport.last().Attachments[0].Title)
}

func TestStartAsksForProjectTypes(t *testing.T) {
	f := newFixture(t)

	f.say(t, "🚀 Начать анализ")

	assert.Equal(t, models.StateWaitingProjectTypes, f.session(t).State)
	require.Len(t, f.transport.last().Attachments, 1)
	assert.Contains(t, f.transport.last().Attachments[0].Fields[0].Value, "**`MDM`**")
}

func TestRocketFromRestartCardAsksForProjectTypes(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateWaitingDocuments, models.RawInput{Kind: models.DocumentKindFile, Name: "a.pdf"})

	f.say(t, "🚀 новый анализ")

	session := f.session(t)
	assert.Equal(t, models.StateWaitingProjectTypes, session.State)
	assert.Empty(t, session.Documents)
	require.Len(t, f.transport.last().Attachments, 1)
	assert.Contains(t, f.transport.last().Attachments[0].Fields[0].Value, "**`MDM`**")
}

func TestProjectTypeSelection(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{"single code", "BI", []string{"BI"}},
		{"several codes", "dwh, bi", []string{"BI", "DWH"}},
		{"emoji prefix", "📋 RPA", []string{"RPA"}},
		{"full name", "Хранилище данных", []string{"DWH"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.setSession(t, models.StateWaitingProjectTypes)

			f.say(t, tt.message)

			session := f.session(t)
			assert.Equal(t, models.StateWaitingDocuments, session.State)
			assert.Equal(t, tt.want, session.ProjectTypes)
			assert.Contains(t, f.transport.last().Message, "Выбранные типы проектов")
		})
	}
}

func TestUnparseableProjectTypesRePrompt(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateWaitingProjectTypes)

	f.say(t, "XYZ")

	assert.Equal(t, models.StateWaitingProjectTypes, f.session(t).State)
	assert.Contains(t, f.transport.last().Message, "Не найдено подходящих типов проектов")
	assert.Contains(t, f.transport.last().Message, "`RPA` - Роботизация процессов")
}

func TestWaitingDocumentsWithoutInputsRePrompts(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateWaitingDocuments)

	f.say(t, "вот мои документы")

	session := f.session(t)
	assert.Equal(t, models.StateWaitingDocuments, session.State)
	assert.Empty(t, session.Documents)
	assert.Contains(t, f.transport.last().Message, "Документы не обнаружены")
}

func TestWaitingDocumentsWithAttachment(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateWaitingDocuments)
	f.addFile("f1", "charter.pdf")

	f.machine.HandlePost(context.Background(), models.Post{
		ID:        "p1",
		ChannelID: testChannel,
		UserID:    testUser,
		FileIDs:   []string{"f1"},
		Metadata:  models.PostMetadata{Files: []models.FileInfo{{ID: "f1", Name: "charter.pdf"}}},
	})

	session := f.session(t)
	assert.Equal(t, models.StateAskingMoreDocuments, session.State)
	require.Len(t, session.Documents, 1)
	assert.Equal(t, models.DocumentKindFile, session.Documents[0].Kind)
	assert.Equal(t, "charter.pdf", session.Documents[0].Name)
	assert.Equal(t, []byte("content of charter.pdf"), session.Documents[0].Data)
	assert.Equal(t, 0, f.transport.infoCalls, "embedded metadata should be used")
	assert.Contains(t, f.transport.last().Message, "Получено документов: 1")
}

func TestWaitingDocumentsFetchesMissingFileInfo(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateWaitingDocuments)
	f.addFile("f1", "plan.xlsx")

	f.say(t, "", "f1")

	session := f.session(t)
	require.Len(t, session.Documents, 1)
	assert.Equal(t, "plan.xlsx", session.Documents[0].Name)
	assert.Equal(t, 1, f.transport.infoCalls)
}

func TestWaitingDocumentsSkipsUndownloadableFile(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateWaitingDocuments)

	f.say(t, "", "missing")

	assert.Equal(t, models.StateWaitingDocuments, f.session(t).State)
	assert.Contains(t, f.transport.last().Message, "Документы не обнаружены")
}

func TestWaitingDocumentsWithWikiLinks(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateWaitingDocuments)

	f.say(t, "Смотри https://wiki.example.com/spaces/P/pages/123/Getting+Started и https://example.org/other")

	session := f.session(t)
	assert.Equal(t, models.StateAskingMoreDocuments, session.State)
	require.Len(t, session.Documents, 1)
	assert.Equal(t, models.DocumentKindWikiPage, session.Documents[0].Kind)
	assert.Equal(t, "https://wiki.example.com/spaces/P/pages/123/Getting+Started", session.Documents[0].URL)
}

func TestAskingMoreAddMore(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateAskingMoreDocuments, models.RawInput{Kind: models.DocumentKindFile, Name: "a.pdf"})

	f.say(t, "➕ добавить документы")

	session := f.session(t)
	assert.Equal(t, models.StateWaitingDocuments, session.State)
	assert.Len(t, session.Documents, 1)
	assert.Contains(t, f.transport.last().Message, "Отправьте дополнительные документы")
}

func TestAskingMoreImplicitAdd(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateAskingMoreDocuments, models.RawInput{Kind: models.DocumentKindFile, Name: "a.pdf"})
	f.addFile("f2", "b.docx")

	f.say(t, "", "f2")

	session := f.session(t)
	assert.Equal(t, models.StateAskingMoreDocuments, session.State)
	assert.Len(t, session.Documents, 1)
	require.Len(t, session.Normalized, 1, "documents sent while asking for more are normalized on arrival")
	require.Len(t, f.normalizer.inputs, 1)
	assert.Equal(t, "b.docx", f.normalizer.inputs[0].Name)
	assert.Contains(t, f.transport.last().Message, "Получено документов: 2")
}

func TestRunUsesRawAndAlreadyNormalizedDocuments(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateAskingMoreDocuments, models.RawInput{Kind: models.DocumentKindFile, Name: "a.pdf"})
	f.addFile("f2", "b.docx")

	f.say(t, "", "f2")
	f.normalizer.docs = []models.Document{{Name: "a.pdf", Kind: models.DocumentKindFile, Text: "raw"}}
	f.say(t, "анализ")

	assert.Equal(t, 2, f.normalizer.calls)
	require.Len(t, f.normalizer.inputs, 1)
	assert.Equal(t, "a.pdf", f.normalizer.inputs[0].Name, "only raw inputs are normalized at run time")

	require.Len(t, f.analyzer.docs, 2)
	assert.Equal(t, "raw", f.analyzer.docs[0].Text)
	assert.Equal(t, "text", f.analyzer.docs[1].Text)
	assert.Contains(t, f.transport.messages(), "Обработано документов: 2")

	session := f.session(t)
	assert.Empty(t, session.Documents)
	assert.Empty(t, session.Normalized)
}

func TestAskingMoreQuestionHintAndNoise(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateAskingMoreDocuments, models.RawInput{Kind: models.DocumentKindFile, Name: "a.pdf"})

	f.say(t, "1")
	assert.Empty(t, f.transport.posts)

	f.say(t, "что теперь?")
	assert.Contains(t, f.transport.last().Message, "Что дальше?")
	assert.Equal(t, models.StateAskingMoreDocuments, f.session(t).State)
}

func TestRunAnalysisDeliversReport(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateAskingMoreDocuments, models.RawInput{Kind: models.DocumentKindFile, Name: "a.pdf", Data: []byte("x")})

	f.say(t, "анализ")

	require.Len(t, f.normalizer.inputs, 1)
	assert.Equal(t, []string{"BI"}, f.analyzer.projectTypes)
	assert.Equal(t, []string{"analysis_report_1700000000.pdf"}, f.transport.uploads)
	assert.Equal(t, 1, f.analyzer.activeRuns, "run is registered for crash reports while it executes")
	assert.Zero(t, common.ActiveRunCount())

	all := f.transport.messages()
	assert.Contains(t, all, "Начинаю анализ документов")
	assert.Contains(t, all, "Обработано документов: 1")
	assert.Contains(t, all, "Анализ завершен")

	var summary *models.OutgoingPost
	for i := range f.transport.posts {
		if len(f.transport.posts[i].FileIDs) > 0 {
			summary = &f.transport.posts[i]
		}
	}
	require.NotNil(t, summary)
	assert.Equal(t, []string{"report-file"}, summary.FileIDs)
	assert.Contains(t, summary.Message, "✅ Паспорт проекта")
	assert.Contains(t, summary.Message, "❌ Версии ПО")

	require.Len(t, f.transport.last().Attachments, 1)
	assert.Equal(t, "🚀 Готовы к новому анализу?", f.transport.last().Attachments[0].Title)

	session := f.session(t)
	assert.Equal(t, models.StateInitial, session.State)
	assert.Empty(t, session.Documents)
	assert.Empty(t, session.ProjectTypes)
}

func TestRunTriggerFromCardRunsInsteadOfRestarting(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.StateAskingMoreDocuments, models.RawInput{Kind: models.DocumentKindFile, Name: "a.pdf"})

	f.say(t, "🔄 начать анализ")

	assert.Len(t, f.transport.uploads, 1)
	assert.Equal(t, models.StateInitial, f.session(t).State)
}

func TestRunWithNothingNormalized(t *testing.T) {
	f := newFixture(t)
	f.normalizer.docs = nil
	f.setSession(t, models.StateAskingMoreDocuments, models.RawInput{Kind: models.DocumentKindFile, Name: "a.exe"})

	f.say(t, "готово")

	assert.Contains(t, f.transport.last().Message, "Не удалось обработать ни один документ")
	assert.Empty(t, f.transport.uploads)
	assert.Equal(t, models.StateInitial, f.session(t).State)
}

func TestRunFailuresAreReported(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"analyzer error", func(f *fixture) { f.analyzer.err = context.Canceled }},
		{"upload error", func(f *fixture) { f.transport.uploadErr = errors.New("413") }},
		{"renderer panic", func(f *fixture) { f.renderer.panics = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			f.setSession(t, models.StateAskingMoreDocuments, models.RawInput{Kind: models.DocumentKindFile, Name: "a.pdf"})

			f.say(t, "анализ")

			assert.Equal(t, "❌ **Ошибка:** "+analysisFailedText, f.transport.last().Message)
			assert.Equal(t, models.StateInitial, f.session(t).State)
			assert.Zero(t, common.ActiveRunCount())
		})
	}
}

func TestRestartFromAnyState(t *testing.T) {
	for _, state := range []models.SessionState{models.StateWaitingProjectTypes, models.StateWaitingDocuments, models.StateAskingMoreDocuments} {
		t.Run(string(state), func(t *testing.T) {
			f := newFixture(t)
			f.setSession(t, state, models.RawInput{Kind: models.DocumentKindFile, Name: "a.pdf"})

			f.say(t, "Привет")

			session := f.session(t)
			assert.Equal(t, models.StateInitial, session.State)
			assert.Empty(t, session.Documents)
			assert.Contains(t, f.transport.last().Message, "Привет! Я бот")
		})
	}
}

func TestUnknownStateResets(t *testing.T) {
	f := newFixture(t)
	f.setSession(t, models.SessionState("bogus"))

	f.say(t, "BI")

	assert.Equal(t, models.StateInitial, f.session(t).State)
	assert.Contains(t, f.transport.last().Message, "Привет! Я бот")
}

func TestMentionIsStripped(t *testing.T) {
	f := newFixture(t)

	f.say(t, "@dossier начать анализ")

	assert.Equal(t, models.StateWaitingProjectTypes, f.session(t).State)
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		message string
		state   models.SessionState
		want    Intent
	}{
		{"привет", models.StateWaitingDocuments, IntentRestart},
		{"/start", models.StateInitial, IntentRestart},
		{"🚀 новый анализ", models.StateAskingMoreDocuments, IntentStart},
		{"🚀", models.StateInitial, IntentStart},
		{"новый анализ", models.StateWaitingDocuments, IntentRestart},
		{"начать анализ", models.StateWaitingDocuments, IntentStart},
		{"🔄 начать анализ", models.StateAskingMoreDocuments, IntentRun},
		{"анализ", models.StateAskingMoreDocuments, IntentRun},
		{"все документы", models.StateAskingMoreDocuments, IntentRun},
		{"ещё", models.StateAskingMoreDocuments, IntentAddMore},
		{"как быть?", models.StateAskingMoreDocuments, IntentQuestion},
		{"ok", models.StateAskingMoreDocuments, IntentOther},
		{"анализ", models.StateWaitingDocuments, IntentOther},
		{"https://wiki.example.com/pages/1/Start+Here", models.StateWaitingDocuments, IntentOther},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.message, tt.state))
		})
	}
}
