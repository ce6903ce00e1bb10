package rpc

type bankBalanceParams struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

func (s *Server) handleBankBalanceOf(req *RPCRequest) (interface{}, *RPCError) {
	var params bankBalanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	if params.Token == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: "token required"}
	}
	balance, err := s.state.Balance(addr[:], params.Token)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	return map[string]string{
		"address": formatAddress(addr),
		"token":   params.Token,
		"balance": balance.String(),
	}, nil
}

type tokenView struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

func (s *Server) handleBankTokenList(req *RPCRequest) (interface{}, *RPCError) {
	symbols, err := s.state.TokenList()
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: err.Error()}
	}
	views := make([]tokenView, 0, len(symbols))
	for _, symbol := range symbols {
		meta, err := s.state.Token(symbol)
		if err != nil {
			return nil, &RPCError{Code: codeServerError, Message: err.Error()}
		}
		views = append(views, tokenView{Symbol: meta.Symbol, Name: meta.Name, Decimals: meta.Decimals})
	}
	return views, nil
}
