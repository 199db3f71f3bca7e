package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrijs2005/storefront/internal/client/api"
	"github.com/dmitrijs2005/storefront/internal/client/cart"
	"github.com/dmitrijs2005/storefront/internal/client/config"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/orders"
	"github.com/dmitrijs2005/storefront/internal/client/payment"
	"github.com/dmitrijs2005/storefront/internal/client/session"
	"github.com/dmitrijs2005/storefront/internal/client/storage"
	"github.com/dmitrijs2005/storefront/internal/client/storage/credentials"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/sched"

	_ "modernc.org/sqlite"
)

// App owns every client component and the interactive loop state.
type App struct {
	config  *config.Config
	repos   *storage.Repositories
	api     api.Client
	guard   *session.Guard
	cart    *cart.Reconciler
	orders  *orders.Tracker
	payment *payment.Controller
	log     logging.Logger
	reader  *bufio.Reader

	mu            sync.Mutex
	userName      string
	retryInFlight bool
}

// NewApp wires the client: local database, gateway API client, session guard,
// cart reconciler, order tracker and payment controller.
func NewApp(c *config.Config, log logging.Logger) (*App, error) {
	ctx := context.Background()

	repos, err := storage.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	apiClient := api.NewHTTPClient(c.APIBaseURL, c.HTTPTimeout, log)
	scheduler := sched.New(clockwork.NewRealClock())

	app := &App{
		config: c,
		repos:  repos,
		api:    apiClient,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
	}

	app.guard = session.NewGuard(repos.Credentials, scheduler, c.LivenessInterval, log, app.onSignOut)
	app.cart = cart.NewReconciler(apiClient, repos.CartItems, log)
	app.orders = orders.NewTracker(apiClient, scheduler, app.cart, c.PollInterval, c.SweepInterval, log)
	app.orders.SetOnUpdate(func(o models.Order) {
		printlnFn(fmt.Sprintf("order %d is now %s", o.ID, o.Status))
	})
	app.payment = payment.NewController(apiClient, log)

	return app, nil
}

// Run resumes any stored session, starts the REPL and blocks until exit.
func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.resume(ctx)
	scanner := bufio.NewScanner(os.Stdin)
	printlnFn("Storefront CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, scanner)
}

// Close cancels background timers and releases the database. The stored
// credential is kept so the next run can resume the session.
func (a *App) Close() {
	a.orders.Teardown()
	a.guard.Teardown()
	if a.repos != nil && a.repos.DB != nil {
		_ = a.repos.DB.Close()
	}
}

// resume re-validates a credential left over from a previous run and, when it
// is still live, re-arms the expiry timers.
func (a *App) resume(ctx context.Context) {
	token := a.currentToken(ctx)
	if token == "" {
		return
	}
	if !a.guard.IsValid(token) {
		a.guard.SignOut(ctx, "stored token expired")
		return
	}
	a.guard.ScheduleExpiry(ctx, token)
	if s, ok := a.guard.SessionFromToken(token); ok {
		a.setUserName(s.Claims.Sub)
		printlnFn(fmt.Sprintf("Resumed session for %s", s.Claims.Sub))
	}
}

func (a *App) onSignOut() {
	a.setUserName("")
	a.orders.Teardown()
	printlnFn("Session ended, please log in again.")
}

func (a *App) currentToken(ctx context.Context) string {
	token, err := a.repos.Credentials.Get(ctx, credentials.TokenKey)
	if err != nil {
		return ""
	}
	return token
}

func (a *App) isLoggedIn() bool {
	token := a.currentToken(context.Background())
	return token != "" && a.guard.IsValid(token)
}

// requireToken is the resume hook for authenticated commands: it re-reads the
// stored credential and forces sign-out when the session lapsed while the
// process was idle.
func (a *App) requireToken(ctx context.Context) (string, bool) {
	token := a.currentToken(ctx)
	if token == "" || !a.guard.Revalidate(ctx) {
		printlnFn("Please log in first")
		return "", false
	}
	return token, true
}

func (a *App) setUserName(name string) {
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.userName)
}
