package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"cart-drawer/internal/drawer"
	"cart-drawer/internal/markup"
	"cart-drawer/internal/shopify"
	"cart-drawer/internal/storage"
	"cart-drawer/internal/transport"
)

// Keys of the CLI's own session state, next to the protection opt-out.
const (
	cartTokenKey  = "drawerctl:cart"
	protectionKey = "drawerctl:protection"
)

type globalOptions struct {
	storeURL    string
	statePath   string
	pagePath    string
	fingerprint bool
	jsonOut     bool
	verbose     bool
	noColor     bool
}

// session is one run's drawer plus the state it restores and saves.
type session struct {
	drawer *drawer.Drawer
	cart   *shopify.Client
	state  *storage.SQLite
	logger *slog.Logger
}

// openSession restores the saved cart and checkbox state and reads the drawer
// settings from the storefront page.
func openSession(ctx context.Context, opts *globalOptions, drawerOpts drawer.Options) (*session, error) {
	if opts.storeURL == "" {
		return nil, fmt.Errorf("--store or STORE_URL is required")
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	state, err := storage.NewSQLite(ctx, opts.statePath)
	if err != nil {
		return nil, err
	}

	httpClient, err := transport.NewSessionClient(transport.Options{Fingerprint: opts.fingerprint})
	if err != nil {
		state.Close()
		return nil, err
	}
	cart, err := shopify.New(shopify.Config{StoreURL: opts.storeURL, HTTPClient: httpClient})
	if err != nil {
		state.Close()
		return nil, err
	}

	token, _, err := state.Get(ctx, cartTokenKey)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("reading saved cart: %w", err)
	}
	if token != "" {
		cart = cart.Session(token)
	}

	checked, err := savedChecked(ctx, state)
	if err != nil {
		state.Close()
		return nil, err
	}

	page, err := cart.FetchPage(ctx, opts.pagePath)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("fetching storefront page: %w", err)
	}
	parsed, err := markup.ParseSettings(page)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("reading drawer settings: %w", err)
	}

	settings, err := drawer.Settings{PagePath: opts.pagePath}.MergeMarkup(parsed)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("reading drawer settings: %w", err)
	}

	drawerOpts.Cart = cart
	drawerOpts.Overrides = storage.NewOverrideStore(state, "", logger)
	drawerOpts.Settings = settings
	drawerOpts.Logger = logger
	drawerOpts.SessionKey = token
	drawerOpts.UIChecked = checked

	return &session{
		drawer: drawer.New(drawerOpts),
		cart:   cart,
		state:  state,
		logger: logger,
	}, nil
}

// savedChecked returns the checkbox state of the previous run, nil on the first.
func savedChecked(ctx context.Context, state storage.Storage) (*bool, error) {
	raw, ok, err := state.Get(ctx, protectionKey)
	if err != nil {
		return nil, fmt.Errorf("reading saved protection state: %w", err)
	}
	if !ok {
		return nil, nil
	}
	checked, err := strconv.ParseBool(raw)
	if err != nil {
		// Corrupt value; fall back to the configured default
		return nil, nil
	}
	return &checked, nil
}

// close saves the cart token and checkbox state for the next run.
func (s *session) close(ctx context.Context, view *drawer.View) error {
	s.drawer.Close()
	defer s.state.Close()

	if view != nil && view.CartToken != "" {
		if err := s.state.Set(ctx, cartTokenKey, view.CartToken); err != nil {
			return fmt.Errorf("saving cart token: %w", err)
		}
	}
	if err := s.state.Set(ctx, protectionKey, strconv.FormatBool(s.drawer.Checked())); err != nil {
		return fmt.Errorf("saving protection state: %w", err)
	}
	return nil
}
