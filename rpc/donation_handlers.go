package rpc

import (
	"errors"
	"math/big"

	"amanahchain/native/common"
	"amanahchain/native/donation"
)

const (
	codeDonationInvalidParams = -32021
	codeDonationNotFound      = -32022
	codeDonationForbidden     = -32023
	codeDonationConflict      = -32024
	codeDonationFunds         = -32025
	codeDonationInternal      = -32026
)

func donationError(err error) *RPCError {
	switch {
	case errors.Is(err, donation.ErrUnauthorized):
		return &RPCError{Code: codeDonationForbidden, Message: err.Error()}
	case errors.Is(err, donation.ErrUnknownPool):
		return &RPCError{Code: codeDonationNotFound, Message: err.Error()}
	case errors.Is(err, donation.ErrDuplicatePool):
		return &RPCError{Code: codeDonationConflict, Message: err.Error()}
	case errors.Is(err, donation.ErrPoolRetired),
		errors.Is(err, donation.ErrInvalidCategory),
		errors.Is(err, donation.ErrInvalidAmount):
		return &RPCError{Code: codeDonationInvalidParams, Message: err.Error()}
	case errors.Is(err, donation.ErrInsufficientFunds):
		return &RPCError{Code: codeDonationFunds, Message: err.Error()}
	case errors.Is(err, common.ErrModulePaused):
		return &RPCError{Code: codeDonationForbidden, Message: err.Error()}
	default:
		return &RPCError{Code: codeDonationInternal, Message: err.Error()}
	}
}

type donationRegisterPoolParams struct {
	Caller        string `json:"caller"`
	Code          string `json:"code"`
	Handler       string `json:"handler"`
	MinCertAmount string `json:"minCertAmount,omitempty"`
}

func (s *Server) handleDonationRegisterPool(req *RPCRequest) (interface{}, *RPCError) {
	var params donationRegisterPoolParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeDonationInvalidParams, Message: err.Error()}
	}
	var handler [20]byte
	if params.Handler != "" {
		if handler, err = parseAddress(params.Handler); err != nil {
			return nil, &RPCError{Code: codeDonationInvalidParams, Message: err.Error()}
		}
	}
	minCert := big.NewInt(0)
	if params.MinCertAmount != "" {
		if minCert, err = parseAmount(params.MinCertAmount); err != nil {
			return nil, &RPCError{Code: codeDonationInvalidParams, Message: err.Error()}
		}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	pool, err := s.donation.RegisterPool(caller, params.Code, handler, minCert)
	if err != nil {
		return nil, donationError(err)
	}
	return newPoolView(pool), nil
}

type donationRetirePoolParams struct {
	Caller string `json:"caller"`
	Code   string `json:"code"`
}

func (s *Server) handleDonationRetirePool(req *RPCRequest) (interface{}, *RPCError) {
	var params donationRetirePoolParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeDonationInvalidParams, Message: err.Error()}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := s.donation.RetirePool(caller, params.Code); err != nil {
		return nil, donationError(err)
	}
	return map[string]string{"status": "retired"}, nil
}

type donationDonateParams struct {
	Caller   string `json:"caller"`
	Pool     string `json:"pool"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

func (s *Server) handleDonationDonate(req *RPCRequest) (interface{}, *RPCError) {
	var params donationDonateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeDonationInvalidParams, Message: err.Error()}
	}
	category, err := donation.ParseCategory(params.Category)
	if err != nil {
		return nil, donationError(err)
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, &RPCError{Code: codeDonationInvalidParams, Message: err.Error()}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	seq, err := s.donation.Donate(caller, params.Pool, category, amount)
	if err != nil {
		return nil, donationError(err)
	}
	return map[string]uint64{"sequence": seq}, nil
}

type donationPoolBalanceParams struct {
	Pool     string `json:"pool"`
	Category string `json:"category"`
}

func (s *Server) handleDonationPoolBalance(req *RPCRequest) (interface{}, *RPCError) {
	var params donationPoolBalanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	category, err := donation.ParseCategory(params.Category)
	if err != nil {
		return nil, donationError(err)
	}
	balance, err := s.donation.PoolBalance(params.Pool, category)
	if err != nil {
		return nil, donationError(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}

type donationPoolParams struct {
	Pool string `json:"pool"`
}

func (s *Server) handleDonationPoolTotal(req *RPCRequest) (interface{}, *RPCError) {
	var params donationPoolParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	total, err := s.donation.PoolTotal(params.Pool)
	if err != nil {
		return nil, donationError(err)
	}
	return map[string]string{"total": total.String()}, nil
}

func (s *Server) handleDonationGetPool(req *RPCRequest) (interface{}, *RPCError) {
	var params donationPoolParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	pool, err := s.donation.GetPool(params.Pool)
	if err != nil {
		return nil, donationError(err)
	}
	return newPoolView(pool), nil
}

func (s *Server) handleDonationListPools(req *RPCRequest) (interface{}, *RPCError) {
	pools, err := s.donation.ListPools()
	if err != nil {
		return nil, donationError(err)
	}
	views := make([]poolView, 0, len(pools))
	for _, pool := range pools {
		views = append(views, newPoolView(pool))
	}
	return views, nil
}

type donationGetRecordParams struct {
	Sequence uint64 `json:"sequence"`
}

func (s *Server) handleDonationGetRecord(req *RPCRequest) (interface{}, *RPCError) {
	var params donationGetRecordParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	record, ok := s.state.DonationGet(params.Sequence)
	if !ok {
		return nil, &RPCError{Code: codeDonationNotFound, Message: "donation record not found"}
	}
	return newRecordView(record), nil
}

type donationWithdrawParams struct {
	Caller string `json:"caller"`
	Pool   string `json:"pool"`
	Amount string `json:"amount"`
}

func (s *Server) handleDonationWithdraw(req *RPCRequest) (interface{}, *RPCError) {
	var params donationWithdrawParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeDonationInvalidParams, Message: err.Error()}
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, &RPCError{Code: codeDonationInvalidParams, Message: err.Error()}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := s.donation.Withdraw(caller, params.Pool, amount); err != nil {
		return nil, donationError(err)
	}
	return map[string]string{"status": "withdrawn"}, nil
}
