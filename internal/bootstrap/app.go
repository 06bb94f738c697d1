package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"quicknote/internal/api"
	"quicknote/internal/auth"
	"quicknote/internal/config"
	"quicknote/internal/diagnostics"
	"quicknote/internal/domain"
	"quicknote/internal/guard"
	"quicknote/internal/history"
	"quicknote/internal/jobs"
	"quicknote/internal/result"
	"quicknote/internal/session"
	"quicknote/internal/transcribe"
	"quicknote/internal/view"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Push event names.
const (
	EventSessionChanged = "session:changed"
	EventJob            = "job:event"
)

// RegisteredNotice is shown on the login screen after a successful registration.
const RegisteredNotice = "Registration successful! Please log in."

const msgLoginRequired = "Please log in to continue."

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     "*" + strings.Join(transcribe.AudioExtensions, ";*"),
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// Navigation tells the shell where to go after an auth action.
type Navigation struct {
	Route   string         `json:"route"`
	Notice  string         `json:"notice,omitempty"`
	Session domain.Session `json:"session"`
}

// App wires configuration, session, controllers, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	cookies     *config.CookieStore
	log         logger.Logger
	confirm     history.ConfirmFunc
	location    *time.Location

	mu         sync.Mutex
	svc        *services
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// services are rebuilt whenever the backend address changes.
type services struct {
	client   *api.Client
	session  *session.Store
	workflow *transcribe.Controller
	history  *history.Controller
	result   *result.Viewer
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	config.LoadEnvFiles(".env", filepath.Join(dir, ".env"))

	store := config.NewJSONStore(filepath.Join(dir, "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = config.ApplyEnv(settings)

	app, err := newApp(settings, store, config.NewCookieStore(filepath.Join(dir, "cookies.json")), logger.NewDefaultLogger())
	if err != nil {
		return nil, err
	}
	app.assets = assets
	app.checker = diagnostics.NewChecker()
	app.Diagnostics = app.checker.Run(settings)
	return app, nil
}

func newApp(settings domain.Settings, store config.Store, cookies *config.CookieStore, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	a := &App{
		Settings: settings,
		Store:    store,
		cookies:  cookies,
		log:      log,
		location: time.Local,
		events:   jobs.NewEventBus(1000),
	}
	a.confirm = a.confirmDialog
	a.events.Subscribe(func(event jobs.Event) {
		a.emit(EventJob, event)
	})

	svc, err := a.wire(settings)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return a, nil
}

// wire builds the client and every controller that talks through it.
func (a *App) wire(settings domain.Settings) (*services, error) {
	client, err := api.New(settings.ServerURL,
		api.WithTimeout(time.Duration(settings.RequestTimeoutSeconds)*time.Second),
		api.WithLogger(a.log),
	)
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	if a.cookies != nil {
		saved, err := a.cookies.Load()
		if err != nil {
			a.log.Warning(fmt.Sprintf("bootstrap: ignoring saved cookies: %v", err))
		} else {
			client.SetCookies(saved)
		}
	}

	store := session.NewStore(auth.NewGateway(client, a.log), a.log)
	store.OnChange(func(s domain.Session) {
		a.emit(EventSessionChanged, s)
	})

	return &services{
		client:   client,
		session:  store,
		workflow: transcribe.NewController(client, a.events, a.log),
		history:  history.NewController(client, store, a.log),
		result:   result.NewViewer(client, result.NewDirSink(a.downloadDir), a.log),
	}, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "QuickNote",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		Logger:      a.log,
		LogLevel:    logger.INFO,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores the Wails runtime context and starts the session probe.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	go a.refreshSession(context.Background())
}

// GetSession returns the current session snapshot.
func (a *App) GetSession() domain.Session {
	return a.services().session.Snapshot()
}

// Navigate evaluates the route guard for path.
func (a *App) Navigate(path string) guard.Decision {
	return guard.Evaluate(path, a.services().session.Snapshot())
}

// Login signs in and refreshes the session before sending the user to the landing route.
func (a *App) Login(email, password string) (Navigation, error) {
	svc := a.services()
	s, err := svc.session.Login(context.Background(), domain.Credentials{Email: email, Password: password})
	if err != nil {
		return Navigation{Route: guard.RouteLogin, Session: s}, err
	}
	a.saveCookies(svc.client)
	return Navigation{Route: guard.Landing, Session: s}, nil
}

// Register creates an account and sends the user to the login screen.
func (a *App) Register(email, password, confirmPassword string) (Navigation, error) {
	svc := a.services()
	err := svc.session.Register(context.Background(), domain.Registration{
		Email:           email,
		Password:        password,
		ConfirmPassword: confirmPassword,
	})
	if err != nil {
		return Navigation{Route: guard.RouteRegister, Session: svc.session.Snapshot()}, err
	}
	return Navigation{Route: guard.RouteLogin, Notice: RegisteredNotice, Session: svc.session.Snapshot()}, nil
}

// Logout clears the session locally and on the backend.
func (a *App) Logout() Navigation {
	svc := a.services()
	svc.session.Logout(context.Background())
	svc.client.ClearCookies()
	if a.cookies != nil {
		if err := a.cookies.Save(nil); err != nil {
			a.log.Warning(fmt.Sprintf("bootstrap: clear saved cookies: %v", err))
		}
	}
	svc.workflow.Reset()
	return Navigation{Route: guard.RouteLogin, Session: svc.session.Snapshot()}
}

// PickAudioFile opens a native file dialog and selects the chosen file.
func (a *App) PickAudioFile() (view.Workflow, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return view.Workflow{}, err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio file",
		Filters: audioDialogFilter,
	})
	if err != nil {
		return view.Workflow{}, err
	}
	if strings.TrimSpace(path) == "" {
		return a.WorkflowState(), nil
	}
	return a.SelectAudioFile(path)
}

// SelectAudioFile replaces the selected file. Rejected files are reported in the model.
func (a *App) SelectAudioFile(path string) (view.Workflow, error) {
	svc, err := a.gate(context.Background(), guard.RouteTranscribe)
	if err != nil {
		return view.Workflow{}, err
	}
	st, err := svc.workflow.Select(path)
	return view.NewWorkflow(st), shellError(err)
}

// StartTranscription submits the selected file in the background.
// Progress arrives as job events; WorkflowState returns the outcome.
func (a *App) StartTranscription() (view.Workflow, error) {
	ctx := context.Background()
	svc, err := a.gate(ctx, guard.RouteTranscribe)
	if err != nil {
		return view.Workflow{}, err
	}

	if !svc.workflow.State().CanSubmit() {
		st, err := svc.workflow.Submit(ctx)
		return view.NewWorkflow(st), shellError(err)
	}

	go a.runTranscription(ctx, svc)
	return view.NewWorkflow(svc.workflow.State()), nil
}

// WorkflowState returns the transcribe screen model.
func (a *App) WorkflowState() view.Workflow {
	return view.NewWorkflow(a.services().workflow.State())
}

// ResetWorkflow drops the selection, results and any pending response.
func (a *App) ResetWorkflow() view.Workflow {
	svc := a.services()
	svc.workflow.Reset()
	return view.NewWorkflow(svc.workflow.State())
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// ListHistory loads the user's transcriptions, newest first.
func (a *App) ListHistory() ([]view.HistoryRow, error) {
	ctx := context.Background()
	svc, err := a.gate(ctx, guard.RouteHistory)
	if err != nil {
		return nil, err
	}
	records, err := svc.history.Load(ctx)
	if err != nil {
		a.onBackendError(err)
		return nil, err
	}
	return view.History(records, a.location), nil
}

// DeleteTranscription asks for confirmation and deletes one record.
// Declining leaves the list unchanged and is not an error.
func (a *App) DeleteTranscription(id string) ([]view.HistoryRow, error) {
	ctx := context.Background()
	svc, err := a.gate(ctx, guard.RouteHistory)
	if err != nil {
		return nil, err
	}
	err = svc.history.Delete(ctx, id, a.confirm)
	rows := view.History(svc.history.Records(), a.location)
	if errors.Is(err, history.ErrDeleteCancelled) {
		return rows, nil
	}
	if err != nil {
		a.onBackendError(err)
	}
	return rows, err
}

// LoadResult fetches one transcription for the result screen.
func (a *App) LoadResult(id string) (view.Result, error) {
	ctx := context.Background()
	svc, err := a.gate(ctx, guard.ResultRoute(id))
	if err != nil {
		return view.Result{}, err
	}
	detail, err := svc.result.Load(ctx, id)
	if err != nil {
		a.onBackendError(err)
		return view.Result{}, err
	}
	return view.NewResult(detail, svc.result, a.location), nil
}

// ExportSummary downloads the summary of id as format into the download directory.
func (a *App) ExportSummary(id, format string) (result.Download, error) {
	ctx := context.Background()
	svc, err := a.gate(ctx, guard.ResultRoute(id))
	if err != nil {
		return result.Download{}, err
	}
	dl, err := svc.result.Export(ctx, id, domain.ExportFormat(strings.ToLower(strings.TrimSpace(format))))
	if err != nil {
		a.onBackendError(err)
		return result.Download{}, err
	}
	return dl, nil
}

// OpenDownloadFolder opens the given path (or the download dir) in the file manager.
func (a *App) OpenDownloadFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		target = a.downloadDir()
		if target == "" {
			return fmt.Errorf("download path is empty")
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create download directory: %w", err)
		}
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve download path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = config.ApplyEnv(settings)

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
// Changing the backend address drops the saved session.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if _, err := api.New(normalized.ServerURL); err != nil {
		return domain.Settings{}, err
	}

	if a.services().workflow.State().Busy() {
		return domain.Settings{}, fmt.Errorf("cannot change settings while a transcription is running")
	}
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	previous := a.Settings
	a.Settings = normalized
	a.mu.Unlock()

	serverChanged := previous.ServerURL != normalized.ServerURL
	if serverChanged || previous.RequestTimeoutSeconds != normalized.RequestTimeoutSeconds {
		if err := a.rewire(normalized, serverChanged); err != nil {
			return domain.Settings{}, err
		}
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns the checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.GetSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// rewire swaps in a new client and controllers, then probes the session again.
func (a *App) rewire(settings domain.Settings, dropCookies bool) error {
	if dropCookies && a.cookies != nil {
		if err := a.cookies.Save(nil); err != nil {
			a.log.Warning(fmt.Sprintf("bootstrap: clear saved cookies: %v", err))
		}
	}
	svc, err := a.wire(settings)
	if err != nil {
		return err
	}

	a.mu.Lock()
	old := a.svc
	a.svc = svc
	a.mu.Unlock()

	if old != nil {
		old.workflow.Reset()
	}
	a.log.Info(fmt.Sprintf("bootstrap: backend set to %s", svc.client.BaseURL()))
	go a.refreshSession(context.Background())
	return nil
}

// runTranscription submits in the background and reacts to session loss.
func (a *App) runTranscription(ctx context.Context, svc *services) {
	st, err := svc.workflow.Submit(ctx)
	switch {
	case err == nil:
		a.log.Info(fmt.Sprintf("bootstrap: job %s %s", st.JobID, st.Status))
	case errors.Is(err, transcribe.ErrDiscarded):
		a.log.Debug(fmt.Sprintf("bootstrap: job %s discarded", st.JobID))
	default:
		a.onBackendError(err)
	}
}

// gate refuses protected calls the route guard would redirect away from.
func (a *App) gate(ctx context.Context, route string) (*services, error) {
	svc := a.services()
	snap := svc.session.Snapshot()
	if snap.IsLoading {
		snap = svc.session.Refresh(ctx)
	}

	decision := guard.Evaluate(route, snap)
	if decision.Redirect != "" || !decision.Render {
		return nil, domain.NewError(domain.KindAuthRequired, msgLoginRequired)
	}
	return svc, nil
}

// onBackendError re-probes the session when the backend rejected it.
func (a *App) onBackendError(err error) {
	if domain.KindOf(err) != domain.KindAuthRequired {
		return
	}
	go a.refreshSession(context.Background())
}

func (a *App) refreshSession(ctx context.Context) {
	svc := a.services()
	if s := svc.session.Refresh(ctx); s.Authenticated() {
		a.saveCookies(svc.client)
	}
}

func (a *App) saveCookies(client *api.Client) {
	if a.cookies == nil {
		return
	}
	if err := a.cookies.Save(client.Cookies()); err != nil {
		a.log.Warning(fmt.Sprintf("bootstrap: save cookies: %v", err))
	}
}

// confirmDialog asks through a native question dialog.
func (a *App) confirmDialog(record domain.HistoryRecord, prompt string) (bool, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return false, err
	}
	answer, err := wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:          wailsruntime.QuestionDialog,
		Title:         "Delete " + history.DisplayName(record),
		Message:       prompt,
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "No",
		CancelButton:  "No",
	})
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "Yes") || strings.EqualFold(answer, "Ok"), nil
}

// emit sends a push event when the runtime is up.
func (a *App) emit(name string, payload interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, name, payload)
	}
}

func (a *App) services() *services {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.svc
}

func (a *App) downloadDir() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Settings.DownloadDir
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// shellError drops classified errors whose message is already in the model.
func shellError(err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return nil
	}
	return err
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
