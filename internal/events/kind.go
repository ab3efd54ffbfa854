// Package events describes the webhook deliveries emitted for the arena
// program: the closed set of event kinds and their typed payloads.
package events

// Kind identifies a program instruction reported by the webhook provider.
type Kind int

const (
	KindUnknown Kind = iota
	KindCreateArena
	KindJoinArena
	KindResolveArena
	KindClaimWinnings
	KindCreateShareTokens
	KindBuyShares
	KindSellShares
	KindInitializePool
	KindAddLiquidity
	KindRemoveLiquidity
	KindSwap
	KindPlaceLimitOrder
	KindCancelOrder
	KindOrderMatched
)

var kindNames = map[Kind]string{
	KindCreateArena:       "CREATE_ARENA",
	KindJoinArena:         "JOIN_ARENA",
	KindResolveArena:      "RESOLVE_ARENA",
	KindClaimWinnings:     "CLAIM_WINNINGS",
	KindCreateShareTokens: "CREATE_SHARE_TOKENS",
	KindBuyShares:         "BUY_SHARES",
	KindSellShares:        "SELL_SHARES",
	KindInitializePool:    "INITIALIZE_POOL",
	KindAddLiquidity:      "ADD_LIQUIDITY",
	KindRemoveLiquidity:   "REMOVE_LIQUIDITY",
	KindSwap:              "SWAP",
	KindPlaceLimitOrder:   "PLACE_LIMIT_ORDER",
	KindCancelOrder:       "CANCEL_ORDER",
	KindOrderMatched:      "ORDER_MATCHED",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// ParseKind maps a wire type name to its Kind. Unrecognised names map to
// KindUnknown.
func ParseKind(name string) Kind {
	if k, ok := kindsByName[name]; ok {
		return k
	}
	return KindUnknown
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Known returns every kind except KindUnknown.
func Known() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindCreateArena; k <= KindOrderMatched; k++ {
		out = append(out, k)
	}
	return out
}
