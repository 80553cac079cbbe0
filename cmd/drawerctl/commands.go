package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cart-drawer/internal/drawer"
	"cart-drawer/internal/model"
)

// operation runs against an open session and returns the view to print.
type operation func(ctx context.Context, s *session) (*drawer.View, error)

// runOperation opens a session, runs op, prints the view and saves the session.
func runOperation(cmd *cobra.Command, opts *globalOptions, op operation) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts, drawer.Options{})
	if err != nil {
		return err
	}

	view, opErr := op(ctx, s)
	if view != nil {
		printView(cmd.OutOrStdout(), opts, view)
	}
	if err := s.close(ctx, view); err != nil {
		return err
	}
	return describeError(opErr)
}

func showCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Rebuild the drawer and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, opts, func(ctx context.Context, s *session) (*drawer.View, error) {
				return s.drawer.Rebuild(ctx)
			})
		},
	}
}

func reconcileCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run the protection and gift reconcilers once and report their decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return runOperation(cmd, opts, func(ctx context.Context, s *session) (*drawer.View, error) {
				snap, err := s.cart.GetCart(ctx)
				if err != nil {
					return nil, err
				}

				decision, changed := s.drawer.ReconcileProtection(ctx, snap, drawer.TriggerRebuild)
				printStep(out, "protection", string(decision.Reason), changed)
				if changed {
					if snap, err = s.cart.GetCart(ctx); err != nil {
						return nil, err
					}
				}

				plan, removed := s.drawer.ReconcileGift(ctx, snap, drawer.TriggerRebuild)
				printStep(out, "gift", string(plan.Action), removed)

				if changed || removed {
					return s.drawer.View(), nil
				}
				return s.drawer.Rebuild(ctx)
			})
		},
	}
}

func toggleProtectionCmd(opts *globalOptions) *cobra.Command {
	var disable bool
	cmd := &cobra.Command{
		Use:   "toggle-protection",
		Short: "Flip the shipping protection checkbox",
		Long: `Flip the shipping protection checkbox. Unchecking records an opt-out
that keeps protection out of the cart for one hour.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, opts, func(ctx context.Context, s *session) (*drawer.View, error) {
				if disable {
					return s.drawer.DisableProtection(ctx)
				}
				return s.drawer.ToggleProtection(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&disable, "off", false, "Always uncheck instead of toggling")
	return cmd
}

func addCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add VARIANT[:QTY[:PLAN]]...",
		Short: "Add variants to the cart",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]model.AddItem, 0, len(args))
			for _, arg := range args {
				item, err := parseAddItem(arg)
				if err != nil {
					return err
				}
				items = append(items, item)
			}
			return runOperation(cmd, opts, func(ctx context.Context, s *session) (*drawer.View, error) {
				return s.drawer.AddItems(ctx, items)
			})
		},
	}
}

func changeCmd(opts *globalOptions) *cobra.Command {
	var plan int64
	cmd := &cobra.Command{
		Use:   "change VARIANT plus|minus|remove",
		Short: "Press a quantity button on a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("variant", args[0])
			if err != nil {
				return err
			}
			action := drawer.QuantityAction(args[1])
			if _, err := action.Apply(0); err != nil {
				return err
			}

			return runOperation(cmd, opts, func(ctx context.Context, s *session) (*drawer.View, error) {
				if plan > 0 {
					return s.drawer.UpgradeSellingPlan(ctx, id, plan)
				}
				snap, err := s.cart.GetCart(ctx)
				if err != nil {
					return nil, err
				}
				current := snap.QuantityOf(id)
				if current == 0 {
					return nil, fmt.Errorf("variant %d is not in the cart", id)
				}
				return s.drawer.ChangeQuantity(ctx, id, action, current)
			})
		},
	}
	cmd.Flags().Int64Var(&plan, "selling-plan", 0, "Move the line onto this selling plan instead")
	return cmd
}

func giftCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gift VARIANT",
		Short: "Add the chosen free gift variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("variant", args[0])
			if err != nil {
				return err
			}
			return runOperation(cmd, opts, func(ctx context.Context, s *session) (*drawer.View, error) {
				return s.drawer.SelectGift(ctx, id)
			})
		},
	}
}

func clearCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, opts, func(ctx context.Context, s *session) (*drawer.View, error) {
				return s.drawer.ClearCart(ctx)
			})
		},
	}
}

func watchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rebuild and hold the cart until the reservation runs out",
		Long: `Rebuild the drawer and keep the reservation countdown running. When it
expires the cart is cleared and the rebuilt drawer is printed. Interrupt to stop
early without clearing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()

			expired := make(chan *drawer.View, 1)
			s, err := openSession(ctx, opts, drawer.Options{
				ReservationTimer:     true,
				OnReservationExpired: func(v *drawer.View) {
					select {
					case expired <- v:
					default:
					}
				},
			})
			if err != nil {
				return err
			}

			view, err := s.drawer.Rebuild(ctx)
			if err != nil {
				_ = s.close(context.Background(), view)
				return describeError(err)
			}
			printView(out, opts, view)

			if view.ReservationSeconds == 0 {
				printInfo(out, "no reservation running")
				return s.close(ctx, view)
			}
			printInfo(out, "cart reserved for %s", formatSeconds(view.ReservationSeconds))

			select {
			case v := <-expired:
				printWarning(out, "reservation expired, cart cleared")
				if v != nil {
					printView(out, opts, v)
					view = v
				}
			case <-ctx.Done():
				printInfo(out, "stopped")
			}
			// The signal context may be done; saving must still happen
			return s.close(context.Background(), view)
		},
	}
}

// parseAddItem parses VARIANT[:QTY[:PLAN]]. Quantity defaults to 1.
func parseAddItem(arg string) (model.AddItem, error) {
	parts := strings.Split(arg, ":")
	if len(parts) > 3 {
		return model.AddItem{}, fmt.Errorf("invalid item %q: want VARIANT[:QTY[:PLAN]]", arg)
	}

	id, err := parseID("variant", parts[0])
	if err != nil {
		return model.AddItem{}, err
	}
	item := model.AddItem{ID: id, Quantity: 1}

	if len(parts) > 1 {
		qty, err := strconv.Atoi(parts[1])
		if err != nil || qty <= 0 {
			return model.AddItem{}, fmt.Errorf("invalid quantity in %q", arg)
		}
		item.Quantity = qty
	}
	if len(parts) > 2 {
		plan, err := parseID("selling plan", parts[2])
		if err != nil {
			return model.AddItem{}, err
		}
		item.SellingPlanID = plan
	}
	return item, nil
}

// parseID parses a positive numeric ID.
func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}
