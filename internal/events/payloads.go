package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"arena-indexer/internal/apperrors"

	"github.com/shopspring/decimal"
)

// Lamports is a non-negative integer amount that the provider may encode
// either as a JSON number or as a decimal string (u64 values beyond 2^53).
type Lamports int64

func (l *Lamports) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*l = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	if v < 0 {
		return fmt.Errorf("negative amount %q", s)
	}
	*l = Lamports(v)
	return nil
}

// Int64 returns the amount as a plain integer
func (l Lamports) Int64() int64 { return int64(l) }

// OrderID is an on-chain order counter, sent as a number or a string.
type OrderID string

func (o *OrderID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*o = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = OrderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid order id %s", b)
	}
	*o = OrderID(n.String())
	return nil
}

func missing(kind Kind) error {
	return apperrors.Validation("Missing required fields for %s", kind)
}

func checkIndex(name string, idx int) error {
	if idx < 0 {
		return apperrors.New(apperrors.KindValidation, "INVALID_OUTCOME", fmt.Sprintf("Invalid %s: %d", name, idx))
	}
	return nil
}

type CreateArena struct {
	ArenaAccount string   `json:"arenaAccount"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Question     string   `json:"question"`
	Outcomes     []string `json:"outcomes"`
	EntryFee     Lamports `json:"entryFee"`
	EndTime      int64    `json:"endTime"`
	Creator      string   `json:"creator"`
	Tags         []string `json:"tags"`
}

func (p *CreateArena) Validate() error {
	if p.ArenaAccount == "" || p.Title == "" || p.Question == "" || len(p.Outcomes) == 0 || p.Creator == "" {
		return missing(KindCreateArena)
	}
	return nil
}

type JoinArena struct {
	ArenaAccount  string   `json:"arenaAccount"`
	Wallet        string   `json:"wallet"`
	OutcomeChosen *int     `json:"outcomeChosen"`
	Amount        Lamports `json:"amount"`
}

func (p *JoinArena) Validate() error {
	if p.ArenaAccount == "" || p.Wallet == "" || p.OutcomeChosen == nil || p.Amount <= 0 {
		return missing(KindJoinArena)
	}
	return checkIndex("outcome index", *p.OutcomeChosen)
}

type ResolveArena struct {
	ArenaAccount  string `json:"arenaAccount"`
	WinnerOutcome *int   `json:"winnerOutcome"`
}

func (p *ResolveArena) Validate() error {
	if p.ArenaAccount == "" || p.WinnerOutcome == nil {
		return missing(KindResolveArena)
	}
	return checkIndex("winner outcome index", *p.WinnerOutcome)
}

type ClaimWinnings struct {
	ArenaAccount string `json:"arenaAccount"`
	Wallet       string `json:"wallet"`
}

func (p *ClaimWinnings) Validate() error {
	if p.ArenaAccount == "" || p.Wallet == "" {
		return missing(KindClaimWinnings)
	}
	return nil
}

type CreateShareTokens struct {
	ArenaAccount string          `json:"arenaAccount"`
	OutcomeIndex *int            `json:"outcomeIndex"`
	TokenMint    string          `json:"tokenMint"`
	InitialPrice decimal.Decimal `json:"initialPrice"`
}

func (p *CreateShareTokens) Validate() error {
	if p.ArenaAccount == "" || p.OutcomeIndex == nil || p.TokenMint == "" {
		return missing(KindCreateShareTokens)
	}
	return checkIndex("outcome index", *p.OutcomeIndex)
}

type BuyShares struct {
	ArenaAccount string          `json:"arenaAccount"`
	Buyer        string          `json:"buyer"`
	OutcomeIndex *int            `json:"outcomeIndex"`
	SharesMinted Lamports        `json:"sharesMinted"`
	SolSpent     Lamports        `json:"solSpent"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}

func (p *BuyShares) Validate() error {
	if p.ArenaAccount == "" || p.Buyer == "" || p.OutcomeIndex == nil {
		return missing(KindBuyShares)
	}
	return checkIndex("outcome index", *p.OutcomeIndex)
}

type SellShares struct {
	ArenaAccount string          `json:"arenaAccount"`
	Seller       string          `json:"seller"`
	OutcomeIndex *int            `json:"outcomeIndex"`
	SharesBurned Lamports        `json:"sharesBurned"`
	SolReceived  Lamports        `json:"solReceived"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}

func (p *SellShares) Validate() error {
	if p.ArenaAccount == "" || p.Seller == "" || p.OutcomeIndex == nil {
		return missing(KindSellShares)
	}
	return checkIndex("outcome index", *p.OutcomeIndex)
}

type InitializePool struct {
	ArenaAccount   string `json:"arenaAccount"`
	OutcomeIndex   *int   `json:"outcomeIndex"`
	Pool           string `json:"pool"`
	ShareMint      string `json:"shareMint"`
	LPTokenMint    string `json:"lpTokenMint"`
	FeeBps         *int   `json:"feeBps"`
	ProtocolFeeBps *int   `json:"protocolFeeBps"`
}

const (
	DefaultFeeBps         = 30
	DefaultProtocolFeeBps = 10
)

func (p *InitializePool) Validate() error {
	if p.ArenaAccount == "" || p.OutcomeIndex == nil || p.Pool == "" {
		return missing(KindInitializePool)
	}
	return checkIndex("outcome index", *p.OutcomeIndex)
}

// Fees returns the pool and protocol fees, falling back to program defaults.
func (p *InitializePool) Fees() (feeBps, protocolFeeBps int) {
	feeBps, protocolFeeBps = DefaultFeeBps, DefaultProtocolFeeBps
	if p.FeeBps != nil && *p.FeeBps > 0 {
		feeBps = *p.FeeBps
	}
	if p.ProtocolFeeBps != nil && *p.ProtocolFeeBps > 0 {
		protocolFeeBps = *p.ProtocolFeeBps
	}
	return feeBps, protocolFeeBps
}

type AddLiquidity struct {
	Pool           string   `json:"pool"`
	Provider       string   `json:"provider"`
	TokenAmount    Lamports `json:"tokenAmount"`
	SolAmount      Lamports `json:"solAmount"`
	LPTokensMinted Lamports `json:"lpTokensMinted"`
}

func (p *AddLiquidity) Validate() error {
	if p.Pool == "" || p.Provider == "" {
		return missing(KindAddLiquidity)
	}
	return nil
}

type RemoveLiquidity struct {
	Pool           string   `json:"pool"`
	Provider       string   `json:"provider"`
	LPTokensBurned Lamports `json:"lpTokensBurned"`
	TokenAmount    Lamports `json:"tokenAmount"`
	SolAmount      Lamports `json:"solAmount"`
	FeesEarned     Lamports `json:"feesEarned"`
}

func (p *RemoveLiquidity) Validate() error {
	if p.Pool == "" || p.Provider == "" {
		return missing(KindRemoveLiquidity)
	}
	return nil
}

type Swap struct {
	Pool         string   `json:"pool"`
	User         string   `json:"user"`
	AmountIn     Lamports `json:"amountIn"`
	AmountOut    Lamports `json:"amountOut"`
	IsTokenToSol bool     `json:"isTokenToSol"`
	FeeAmount    Lamports `json:"feeAmount"`
}

func (p *Swap) Validate() error {
	if p.Pool == "" || p.User == "" {
		return missing(KindSwap)
	}
	return nil
}

type PlaceLimitOrder struct {
	ArenaAccount string          `json:"arenaAccount"`
	User         string          `json:"user"`
	OrderID      OrderID         `json:"orderId"`
	OutcomeIndex *int            `json:"outcomeIndex"`
	OrderType    string          `json:"orderType"`
	Side         string          `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Size         Lamports        `json:"size"`
}

func (p *PlaceLimitOrder) Validate() error {
	if p.ArenaAccount == "" || p.User == "" || p.OrderID == "" || p.OutcomeIndex == nil {
		return missing(KindPlaceLimitOrder)
	}
	if p.Side != "" && p.Side != "buy" && p.Side != "sell" {
		return apperrors.Validation("Invalid order side: %s", p.Side)
	}
	return checkIndex("outcome index", *p.OutcomeIndex)
}

type CancelOrder struct {
	ArenaAccount string  `json:"arenaAccount"`
	OrderID      OrderID `json:"orderId"`
}

func (p *CancelOrder) Validate() error {
	if p.ArenaAccount == "" || p.OrderID == "" {
		return missing(KindCancelOrder)
	}
	return nil
}

type OrderMatched struct {
	ArenaAccount string          `json:"arenaAccount"`
	OutcomeIndex *int            `json:"outcomeIndex"`
	MakerOrderID OrderID         `json:"makerOrderId"`
	TakerOrderID OrderID         `json:"takerOrderId"`
	FillAmount   Lamports        `json:"fillAmount"`
	FillPrice    decimal.Decimal `json:"fillPrice"`
}

func (p *OrderMatched) Validate() error {
	if p.ArenaAccount == "" || p.OutcomeIndex == nil || p.MakerOrderID == "" || p.TakerOrderID == "" || p.FillAmount <= 0 {
		return missing(KindOrderMatched)
	}
	return checkIndex("outcome index", *p.OutcomeIndex)
}

// Generic is the part of an unrecognised payload the indexer still uses.
type Generic struct {
	ArenaAccount string `json:"arenaAccount"`
}

func (p *Generic) Validate() error { return nil }
