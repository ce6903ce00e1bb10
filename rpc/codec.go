package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"amanahchain/native/certificate"
	"amanahchain/native/donation"
	"amanahchain/native/exchange"
)

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" {
		return addr, fmt.Errorf("address required")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("address must be 20 bytes (got %d)", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

type poolView struct {
	Code          string            `json:"code"`
	Handler       string            `json:"handler"`
	MinCertAmount string            `json:"minCertAmount"`
	TotalBalance  string            `json:"totalBalance"`
	Categories    map[string]string `json:"categories"`
	Active        bool              `json:"active"`
	CreatedAt     uint64            `json:"createdAt"`
}

func newPoolView(p *donation.Pool) poolView {
	categories := make(map[string]string, len(p.CategoryTotals))
	for _, category := range donation.Categories() {
		categories[category.String()] = p.CategoryTotal(category).String()
	}
	return poolView{
		Code:          p.Code,
		Handler:       formatAddress(p.Handler),
		MinCertAmount: p.MinCertAmount.String(),
		TotalBalance:  p.TotalBalance.String(),
		Categories:    categories,
		Active:        p.Active,
		CreatedAt:     p.CreatedAt,
	}
}

type recordView struct {
	Sequence  uint64 `json:"sequence"`
	Donor     string `json:"donor"`
	Pool      string `json:"pool"`
	Category  string `json:"category"`
	Amount    string `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
}

func newRecordView(r *donation.Record) recordView {
	return recordView{
		Sequence:  r.Sequence,
		Donor:     formatAddress(r.Donor),
		Pool:      r.PoolCode,
		Category:  r.Category.String(),
		Amount:    r.Amount.String(),
		Timestamp: r.Timestamp,
	}
}

type orderView struct {
	ID            uint64 `json:"id"`
	Maker         string `json:"maker"`
	OfferToken    string `json:"offerToken"`
	OfferAmount   string `json:"offerAmount"`
	RequestToken  string `json:"requestToken"`
	RequestAmount string `json:"requestAmount"`
	Filled        string `json:"filled"`
	Remaining     string `json:"remaining"`
	Status        string `json:"status"`
	CreatedAt     uint64 `json:"createdAt"`
}

func newOrderView(o *exchange.Order) orderView {
	return orderView{
		ID:            o.ID,
		Maker:         formatAddress(o.Maker),
		OfferToken:    o.OfferToken,
		OfferAmount:   o.OfferAmount.String(),
		RequestToken:  o.RequestToken,
		RequestAmount: o.RequestAmount.String(),
		Filled:        o.Filled.String(),
		Remaining:     o.Remaining().String(),
		Status:        o.Status.String(),
		CreatedAt:     o.CreatedAt,
	}
}

type certificateView struct {
	TokenID    uint64 `json:"tokenId"`
	Owner      string `json:"owner"`
	Pool       string `json:"pool"`
	FaceValue  string `json:"faceValue"`
	Status     string `json:"status"`
	MintedAt   uint64 `json:"mintedAt"`
	RedeemedAt uint64 `json:"redeemedAt,omitempty"`
}

func newCertificateView(c *certificate.Certificate) certificateView {
	return certificateView{
		TokenID:    c.TokenID,
		Owner:      formatAddress(c.Owner),
		Pool:       c.PoolCode,
		FaceValue:  c.FaceValue.String(),
		Status:     c.Status.String(),
		MintedAt:   c.MintedAt,
		RedeemedAt: c.RedeemedAt,
	}
}
