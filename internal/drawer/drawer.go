package drawer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cart-drawer/internal/markup"
	"cart-drawer/internal/model"
	"cart-drawer/internal/reconcile"
	"cart-drawer/internal/storage"
)

// RebuildPolicy tells a reconciler whether to run a full rebuild after it
// corrects the cart. Rebuild always passes SuppressRebuild.
type RebuildPolicy int

const (
	TriggerRebuild RebuildPolicy = iota
	SuppressRebuild
)

// rebuildKey marks a context as belonging to a running rebuild.
type rebuildKey struct{}

func inRebuild(ctx context.Context) bool {
	return ctx.Value(rebuildKey{}) != nil
}

// Options configures a Drawer.
type Options struct {
	Cart      CartService
	Overrides *storage.OverrideStore
	Settings  Settings
	Logger    *slog.Logger

	Fetcher    *Fetcher // Shared between drawers to collapse concurrent reads
	Metrics    *Metrics
	SessionKey string // Identifies the cart for the Fetcher

	// UIChecked is the protection checkbox state the shopper last saw.
	// nil means the configured default.
	UIChecked *bool

	// ReservationTimer starts the countdown after each rebuild of a non-empty
	// cart. On expiry the cart is cleared and rebuilt, then OnReservationExpired
	// receives the new view.
	ReservationTimer     bool
	OnReservationExpired func(*View)
}

// Drawer is one shopper's cart drawer. Safe for concurrent use; overlapping
// rebuilds are allowed and the storefront's last write wins.
type Drawer struct {
	cart      CartService
	overrides *storage.OverrideStore
	settings  Settings
	logger    *slog.Logger
	fetcher   *Fetcher
	metrics   *Metrics
	key       string
	onExpired func(*View)
	timer     *ReservationTimer

	mu        sync.Mutex
	uiChecked bool
	fragment  string
	view      *View
}

// New creates a Drawer. Cart and Overrides are required.
func New(opts Options) *Drawer {
	d := &Drawer{
		cart:      opts.Cart,
		overrides: opts.Overrides,
		settings:  opts.Settings.withDefaults(),
		logger:    opts.Logger,
		fetcher:   opts.Fetcher,
		metrics:   opts.Metrics,
		key:       opts.SessionKey,
		onExpired: opts.OnReservationExpired,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.fetcher == nil {
		d.fetcher = NewFetcher()
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil)
	}

	if d.overrides != nil {
		d.overrides.OnExpire(d.metrics.OverrideExpired.Inc)
	}

	d.uiChecked = d.settings.Protection.EnabledByDefault
	if opts.UIChecked != nil {
		d.uiChecked = *opts.UIChecked
	}

	if opts.ReservationTimer && d.settings.Reservation() > 0 {
		d.timer = NewReservationTimer(d.settings.Reservation(), d.expireReservation)
	}
	return d
}

// Settings returns the effective settings.
func (d *Drawer) Settings() Settings {
	return d.settings
}

// Checked returns the protection checkbox state.
func (d *Drawer) Checked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uiChecked
}

func (d *Drawer) setChecked(checked bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uiChecked = checked
}

// View returns the result of the last rebuild, or an empty view.
func (d *Drawer) View() *View {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.view == nil {
		return &View{Protection: ProtectionState{Checked: d.uiChecked}}
	}
	return d.view
}

// Close stops the reservation timer.
func (d *Drawer) Close() {
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Rebuild fetches the cart, re-renders the drawer fragment, converges the
// protection and gift lines and returns the resulting view.
//
// A Rebuild reached from inside another Rebuild (through a reconciler asked to
// trigger one) returns the current view without doing anything.
//
// Failures degrade: a failed cart fetch returns the previous view with the
// error; a failed page fetch keeps the previous fragment; failed corrective
// mutations are logged and picked up by the next rebuild.
func (d *Drawer) Rebuild(ctx context.Context) (*View, error) {
	if inRebuild(ctx) {
		d.metrics.SuppressedRebuilds.Inc()
		d.logger.DebugContext(ctx, "nested rebuild suppressed")
		return d.View(), nil
	}
	ctx = context.WithValue(ctx, rebuildKey{}, struct{}{})

	start := time.Now()
	d.metrics.Rebuilds.Inc()
	defer func() { d.metrics.RebuildDuration.Observe(time.Since(start).Seconds()) }()

	snap, err := d.fetchCart(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "cart fetch failed, keeping previous drawer",
			slog.String("error", err.Error()))
		return d.View(), err
	}
	d.render(ctx)

	// Re-rendered markup starts from the default; an active opt-out unchecks it
	override := d.activeOverride(ctx)
	if override != nil {
		d.setChecked(false)
	}

	decision, mutated := d.reconcileProtection(ctx, snap, override, SuppressRebuild)
	if mutated {
		if fresh, err := d.fetchCart(ctx); err == nil {
			snap = fresh
			if snap.ItemCount == 0 {
				d.render(ctx)
			}
		}
	}

	var progress *reconcile.ProgressResult
	var gift *reconcile.GiftPlan
	if d.settings.ProgressBarEnabled {
		p := reconcile.ComputeProgress(snap, d.settings.Thresholds)
		plan, removed := d.reconcileGift(ctx, snap, p, SuppressRebuild)
		if removed {
			if fresh, err := d.fetchCart(ctx); err == nil {
				snap = fresh
				p = reconcile.ComputeProgress(snap, d.settings.Thresholds)
				plan = reconcile.PlanGift(snap, p)
			}
		}
		progress, gift = &p, &plan
	}

	d.restartReservation(snap)

	view := d.buildView(snap, decision, override, progress, gift)
	d.mu.Lock()
	d.view = view
	d.mu.Unlock()

	d.logger.DebugContext(ctx, "drawer rebuilt",
		slog.Int("item_count", snap.ItemCount),
		slog.Int("true_item_count", view.Counts.True),
		slog.String("protection", string(decision.Reason)),
		slog.Duration("duration", time.Since(start)))
	return view, nil
}

// fetchCart reads a fresh snapshot through the shared fetcher.
func (d *Drawer) fetchCart(ctx context.Context) (*model.CartSnapshot, error) {
	return d.fetcher.Cart(ctx, d.cart, d.key)
}

// render replaces the drawer fragment from a freshly fetched page.
// On failure the previous fragment stays.
func (d *Drawer) render(ctx context.Context) {
	page, err := d.fetcher.Page(ctx, d.cart, d.key, d.settings.PagePath)
	if err != nil {
		d.logger.WarnContext(ctx, "page fetch failed, keeping previous drawer markup",
			slog.String("path", d.settings.PagePath),
			slog.String("error", err.Error()))
		return
	}
	fragment, err := markup.ExtractFragment(page, d.settings.FragmentID)
	if err != nil {
		d.logger.WarnContext(ctx, "drawer fragment missing from page",
			slog.String("fragment_id", d.settings.FragmentID),
			slog.String("error", err.Error()))
		return
	}
	d.mu.Lock()
	d.fragment = fragment
	d.mu.Unlock()
}

// activeOverride reads the opt-out. Storage errors count as no opt-out.
func (d *Drawer) activeOverride(ctx context.Context) *reconcile.Override {
	override, err := d.overrides.Active(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "reading protection override failed",
			slog.String("error", err.Error()))
		return nil
	}
	return override
}

// restartReservation rearms the countdown for a non-empty cart and stops it otherwise.
func (d *Drawer) restartReservation(snap *model.CartSnapshot) {
	if d.timer == nil {
		return
	}
	if snap.ItemCount == 0 {
		d.timer.Stop()
		return
	}
	d.timer.Restart()
}

// expireReservation clears the cart when the reservation runs out.
func (d *Drawer) expireReservation() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d.logger.InfoContext(ctx, "cart reservation expired, clearing cart")
	_, err := d.cart.Clear(ctx)
	d.metrics.mutation(kindClear, err)
	if err != nil {
		d.logger.WarnContext(ctx, "clearing expired cart failed", slog.String("error", err.Error()))
	}

	view, err := d.Rebuild(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "rebuild after reservation expiry failed", slog.String("error", err.Error()))
	}
	if d.onExpired != nil {
		d.onExpired(view)
	}
}
