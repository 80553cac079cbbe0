package shopify

import (
	"strconv"

	"cart-drawer/internal/model"
)

// toSnapshot converts a cart response to the engine's snapshot.
func toSnapshot(cart *CartResponse) *model.CartSnapshot {
	snap := &model.CartSnapshot{
		Token:              cart.Token,
		ItemCount:          cart.ItemCount,
		Currency:           cart.Currency,
		Items:              make([]model.LineItem, 0, len(cart.Items)),
		CartLevelDiscounts: make([]model.CartLevelDiscount, 0, len(cart.CartLevelDiscounts)),
	}
	for _, item := range cart.Items {
		snap.Items = append(snap.Items, toLineItem(item))
	}
	for _, d := range cart.CartLevelDiscounts {
		snap.CartLevelDiscounts = append(snap.CartLevelDiscounts, model.CartLevelDiscount{
			Title:                d.Title,
			TotalAllocatedAmount: d.TotalAllocatedAmount,
		})
	}
	return snap
}

func toLineItem(item LineItem) model.LineItem {
	id := item.ID
	if id == 0 {
		id = item.VariantID
	}
	li := model.LineItem{
		ID:                id,
		ProductID:         item.ProductID,
		Key:               item.Key,
		Title:             item.Title,
		Quantity:          item.Quantity,
		LinePrice:         item.LinePrice,
		FinalLinePrice:    item.FinalLinePrice,
		OriginalLinePrice: item.OriginalLinePrice,
		VariantOptions:    item.VariantOptions,
	}
	if item.SellingPlanAllocation != nil {
		li.SellingPlan = &model.SellingPlanAllocation{
			SellingPlanID:  item.SellingPlanAllocation.SellingPlan.ID,
			CompareAtPrice: item.SellingPlanAllocation.CompareAtPrice,
		}
	}
	return li
}

func toAddItems(items []model.AddItem) []AddItem {
	out := make([]AddItem, len(items))
	for i, item := range items {
		out[i] = AddItem{ID: item.ID, Quantity: item.Quantity, SellingPlan: item.SellingPlanID}
	}
	return out
}

func toUpdates(quantities map[int64]int) map[string]int {
	out := make(map[string]int, len(quantities))
	for id, qty := range quantities {
		out[strconv.FormatInt(id, 10)] = qty
	}
	return out
}
