package rpc

import (
	"errors"

	"amanahchain/native/common"
	"amanahchain/native/exchange"
)

const (
	codeExchangeInvalidParams = -32031
	codeExchangeNotFound      = -32032
	codeExchangeForbidden     = -32033
	codeExchangeConflict      = -32034
	codeExchangeFunds         = -32035
	codeExchangeInternal      = -32036
)

func exchangeError(err error) *RPCError {
	switch {
	case errors.Is(err, exchange.ErrUnauthorized):
		return &RPCError{Code: codeExchangeForbidden, Message: err.Error()}
	case errors.Is(err, exchange.ErrUnknownOrder):
		return &RPCError{Code: codeExchangeNotFound, Message: err.Error()}
	case errors.Is(err, exchange.ErrOrderNotOpen),
		errors.Is(err, exchange.ErrSelfFill):
		return &RPCError{Code: codeExchangeConflict, Message: err.Error()}
	case errors.Is(err, exchange.ErrExceedsRemaining),
		errors.Is(err, exchange.ErrInvalidAmount):
		return &RPCError{Code: codeExchangeInvalidParams, Message: err.Error()}
	case errors.Is(err, exchange.ErrInsufficientFunds):
		return &RPCError{Code: codeExchangeFunds, Message: err.Error()}
	case errors.Is(err, common.ErrModulePaused):
		return &RPCError{Code: codeExchangeForbidden, Message: err.Error()}
	default:
		return &RPCError{Code: codeExchangeInternal, Message: err.Error()}
	}
}

type exchangePlaceOrderParams struct {
	Caller        string `json:"caller"`
	OfferToken    string `json:"offerToken"`
	OfferAmount   string `json:"offerAmount"`
	RequestToken  string `json:"requestToken"`
	RequestAmount string `json:"requestAmount"`
}

func (s *Server) handleExchangePlaceOrder(req *RPCRequest) (interface{}, *RPCError) {
	var params exchangePlaceOrderParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	maker, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeExchangeInvalidParams, Message: err.Error()}
	}
	offerAmount, err := parseAmount(params.OfferAmount)
	if err != nil {
		return nil, &RPCError{Code: codeExchangeInvalidParams, Message: err.Error()}
	}
	requestAmount, err := parseAmount(params.RequestAmount)
	if err != nil {
		return nil, &RPCError{Code: codeExchangeInvalidParams, Message: err.Error()}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	order, err := s.exchange.PlaceOrder(maker, params.OfferToken, offerAmount, params.RequestToken, requestAmount)
	if err != nil {
		return nil, exchangeError(err)
	}
	return newOrderView(order), nil
}

type exchangeFillOrderParams struct {
	Caller     string `json:"caller"`
	OrderID    uint64 `json:"orderId"`
	FillAmount string `json:"fillAmount"`
}

func (s *Server) handleExchangeFillOrder(req *RPCRequest) (interface{}, *RPCError) {
	var params exchangeFillOrderParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	taker, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeExchangeInvalidParams, Message: err.Error()}
	}
	fillAmount, err := parseAmount(params.FillAmount)
	if err != nil {
		return nil, &RPCError{Code: codeExchangeInvalidParams, Message: err.Error()}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	order, err := s.exchange.FillOrder(taker, params.OrderID, fillAmount)
	if err != nil {
		return nil, exchangeError(err)
	}
	return newOrderView(order), nil
}

type exchangeCancelOrderParams struct {
	Caller  string `json:"caller"`
	OrderID uint64 `json:"orderId"`
}

func (s *Server) handleExchangeCancelOrder(req *RPCRequest) (interface{}, *RPCError) {
	var params exchangeCancelOrderParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeExchangeInvalidParams, Message: err.Error()}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	order, err := s.exchange.CancelOrder(caller, params.OrderID)
	if err != nil {
		return nil, exchangeError(err)
	}
	return newOrderView(order), nil
}

type exchangeGetOrderParams struct {
	OrderID uint64 `json:"orderId"`
}

func (s *Server) handleExchangeGetOrder(req *RPCRequest) (interface{}, *RPCError) {
	var params exchangeGetOrderParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	order, err := s.exchange.GetOrder(params.OrderID)
	if err != nil {
		return nil, exchangeError(err)
	}
	return newOrderView(order), nil
}

type exchangeListOrdersParams struct {
	Limit uint64 `json:"limit,omitempty"`
}

func (s *Server) handleExchangeListOrders(req *RPCRequest) (interface{}, *RPCError) {
	params := exchangeListOrdersParams{}
	if len(req.Params) > 0 {
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	orders, err := s.exchange.ListOrders(params.Limit)
	if err != nil {
		return nil, exchangeError(err)
	}
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order))
	}
	return views, nil
}
