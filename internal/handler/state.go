package handler

import (
	"fmt"

	"github.com/dunglas/httpsfv"
)

// StateHeader carries the shopper's session as an RFC 8941 dictionary:
//
//	Drawer-State: cart="<token>", protection=?0
//
// protection is the checkbox state the shopper last saw; absent means the
// configured default. A bare key (protection) is true per RFC 8941.
const StateHeader = "Drawer-State"

// SessionState is the parsed Drawer-State header.
type SessionState struct {
	CartToken  string
	Protection *bool
}

// ParseStateHeader parses a Drawer-State header value.
// An empty value yields an empty state.
// Unknown keys are ignored per RFC 8941 extensibility.
func ParseStateHeader(header string) (SessionState, error) {
	var state SessionState
	if header == "" {
		return state, nil
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return state, fmt.Errorf("parsing dictionary: %w", err)
	}

	if member, ok := dict.Get("cart"); ok {
		item, ok := member.(httpsfv.Item)
		if !ok {
			return state, fmt.Errorf("cart must be an item, not an inner list")
		}
		token, ok := item.Value.(string)
		if !ok {
			return state, fmt.Errorf("cart must be a string")
		}
		state.CartToken = token
	}

	if member, ok := dict.Get("protection"); ok {
		item, ok := member.(httpsfv.Item)
		if !ok {
			return state, fmt.Errorf("protection must be an item, not an inner list")
		}
		checked, ok := item.Value.(bool)
		if !ok {
			return state, fmt.Errorf("protection must be a boolean")
		}
		state.Protection = &checked
	}

	return state, nil
}

// FormatStateHeader serializes state back into a Drawer-State value.
func FormatStateHeader(state SessionState) (string, error) {
	dict := httpsfv.NewDictionary()
	if state.CartToken != "" {
		dict.Add("cart", httpsfv.NewItem(state.CartToken))
	}
	if state.Protection != nil {
		dict.Add("protection", httpsfv.NewItem(*state.Protection))
	}
	return httpsfv.Marshal(dict)
}
