package drawer

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"cart-drawer/internal/markup"
	"cart-drawer/internal/model"
)

// Variant is a purchasable variant known to a Fake.
type Variant struct {
	ID             int64
	ProductID      int64
	Title          string
	Price          int64 // Cents per unit
	CompareAtPrice int64 // Selling plan compare-at per unit
	Options        []string
}

// Fake is an in-memory CartService. It backs the "memory" adapter and tests.
// Safe for concurrent use.
type Fake struct {
	mu           sync.Mutex
	catalog      map[int64]Variant
	defaultPrice int64
	lines        []model.LineItem
	discounts    []model.CartLevelDiscount
	page         string
	failures     map[string]error
	calls        map[string]int
}

// Fake operation names, used by Calls and FailOn.
const (
	OpGet    = "get"
	OpAdd    = "add"
	OpChange = "change"
	OpUpdate = "update"
	OpClear  = "clear"
	OpPage   = "page"
)

// NewFake creates an empty cart over the given catalog.
func NewFake(variants ...Variant) *Fake {
	f := &Fake{
		catalog:  make(map[int64]Variant, len(variants)),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
	for _, v := range variants {
		f.catalog[v.ID] = v
	}
	return f
}

// WithDefaultPrice makes unknown variants addable at the given unit price,
// as their own product.
func (f *Fake) WithDefaultPrice(cents int64) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultPrice = cents
	return f
}

// SetPage replaces the HTML served by FetchPage. Empty restores the generated page.
func (f *Fake) SetPage(page string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = page
}

// SetDiscounts replaces the cart-level discounts.
func (f *Fake) SetDiscounts(discounts ...model.CartLevelDiscount) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discounts = discounts
}

// Put sets a variant's quantity directly, bypassing call counting and failures.
func (f *Fake) Put(variantID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setQuantity(variantID, quantity, f.planOf(variantID))
}

// FailOn makes op fail with err until cleared with a nil err.
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Mutations returns the number of cart mutations issued.
func (f *Fake) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[OpAdd] + f.calls[OpChange] + f.calls[OpUpdate] + f.calls[OpClear]
}

func (f *Fake) GetCart(ctx context.Context) (*model.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpGet); err != nil {
		return nil, err
	}
	return f.snapshot(), nil
}

func (f *Fake) AddItems(ctx context.Context, items []model.AddItem) ([]model.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpAdd); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, model.NewValidationError("items", "at least one item required")
	}
	// All or nothing, like the storefront
	for _, item := range items {
		if _, ok := f.variant(item.ID); !ok {
			return nil, model.NewNotFoundError("variant")
		}
		if item.Quantity <= 0 {
			return nil, model.NewValidationError("quantity", "must be positive")
		}
	}

	added := make([]model.LineItem, 0, len(items))
	for _, item := range items {
		idx := f.find(item.ID, item.SellingPlanID, true)
		qty := item.Quantity
		if idx >= 0 {
			qty += f.lines[idx].Quantity
		}
		f.setQuantity(item.ID, qty, item.SellingPlanID)
		line := f.lines[f.find(item.ID, item.SellingPlanID, true)]
		line.Quantity = item.Quantity
		added = append(added, line)
	}
	return added, nil
}

func (f *Fake) ChangeItem(ctx context.Context, req model.ChangeRequest) (*model.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpChange); err != nil {
		return nil, err
	}

	idx := f.find(req.ID, 0, false)
	if idx < 0 {
		return nil, model.NewNotFoundError("cart item")
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		return nil, model.NewValidationError("quantity", "must not be negative")
	}

	qty := f.lines[idx].Quantity
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	plan := int64(0)
	if f.lines[idx].SellingPlan != nil {
		plan = f.lines[idx].SellingPlan.SellingPlanID
	}
	if req.SellingPlanID != 0 {
		plan = req.SellingPlanID
	}

	f.lines = append(f.lines[:idx], f.lines[idx+1:]...)
	if qty > 0 {
		f.setQuantity(req.ID, qty, plan)
	}
	return f.snapshot(), nil
}

func (f *Fake) UpdateQuantities(ctx context.Context, quantities map[int64]int) (*model.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpUpdate); err != nil {
		return nil, err
	}
	for id, qty := range quantities {
		if err := f.setQuantity(id, qty, f.planOf(id)); err != nil {
			return nil, err
		}
	}
	return f.snapshot(), nil
}

func (f *Fake) Clear(ctx context.Context) (*model.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpClear); err != nil {
		return nil, err
	}
	f.lines = nil
	return f.snapshot(), nil
}

func (f *Fake) FetchPage(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpPage); err != nil {
		return "", err
	}
	if f.page != "" {
		return f.page, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><div id="%s"><ul class="cd__items">`, markup.DefaultFragmentID)
	for _, line := range f.lines {
		fmt.Fprintf(&b, `<li class="cd__item" data-id="%d">%s <span class="cd__item-quantity-value">%d</span></li>`,
			line.ID, html.EscapeString(line.Title), line.Quantity)
	}
	b.WriteString(`</ul></div></body></html>`)
	return b.String(), nil
}

// enter records a call and returns the injected failure, if any. Caller holds mu.
func (f *Fake) enter(op string) error {
	f.calls[op]++
	return f.failures[op]
}

func (f *Fake) variant(id int64) (Variant, bool) {
	if v, ok := f.catalog[id]; ok {
		return v, true
	}
	if f.defaultPrice > 0 {
		return Variant{ID: id, ProductID: id, Title: fmt.Sprintf("Variant %d", id), Price: f.defaultPrice}, true
	}
	return Variant{}, false
}

// find returns the index of the line for id. matchPlan restricts the match to
// lines on the given selling plan (0 = one-time purchase).
func (f *Fake) find(id, plan int64, matchPlan bool) int {
	for i, line := range f.lines {
		if line.ID != id {
			continue
		}
		if !matchPlan {
			return i
		}
		linePlan := int64(0)
		if line.SellingPlan != nil {
			linePlan = line.SellingPlan.SellingPlanID
		}
		if linePlan == plan {
			return i
		}
	}
	return -1
}

// planOf returns the selling plan of the first line for id, 0 when absent.
func (f *Fake) planOf(id int64) int64 {
	if idx := f.find(id, 0, false); idx >= 0 && f.lines[idx].SellingPlan != nil {
		return f.lines[idx].SellingPlan.SellingPlanID
	}
	return 0
}

// setQuantity writes the line for (id, plan), appending it when new and
// dropping it at quantity 0. Caller holds mu.
func (f *Fake) setQuantity(id int64, qty int, plan int64) error {
	v, ok := f.variant(id)
	if !ok {
		return model.NewNotFoundError("variant")
	}
	idx := f.find(id, plan, true)
	if qty <= 0 {
		if idx >= 0 {
			f.lines = append(f.lines[:idx], f.lines[idx+1:]...)
		}
		return nil
	}

	line := model.LineItem{
		ID:                v.ID,
		ProductID:         v.ProductID,
		Key:               fmt.Sprintf("%d:%d", v.ID, plan),
		Title:             v.Title,
		Quantity:          qty,
		LinePrice:         v.Price * int64(qty),
		FinalLinePrice:    v.Price * int64(qty),
		OriginalLinePrice: v.Price * int64(qty),
		VariantOptions:    v.Options,
	}
	if plan != 0 {
		line.SellingPlan = &model.SellingPlanAllocation{SellingPlanID: plan, CompareAtPrice: v.CompareAtPrice}
	}
	if idx >= 0 {
		f.lines[idx] = line
	} else {
		f.lines = append(f.lines, line)
	}
	return nil
}

// snapshot copies the cart state. Caller holds mu.
func (f *Fake) snapshot() *model.CartSnapshot {
	snap := &model.CartSnapshot{
		Token:              "fake",
		Items:              make([]model.LineItem, len(f.lines)),
		CartLevelDiscounts: make([]model.CartLevelDiscount, len(f.discounts)),
	}
	copy(snap.Items, f.lines)
	copy(snap.CartLevelDiscounts, f.discounts)
	for _, line := range f.lines {
		snap.ItemCount += line.Quantity
	}
	return snap
}

var _ CartService = (*Fake)(nil)
