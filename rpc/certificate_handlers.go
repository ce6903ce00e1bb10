package rpc

import (
	"errors"

	"amanahchain/native/certificate"
	"amanahchain/native/common"
	"amanahchain/native/donation"
)

const (
	codeCertInvalidParams = -32041
	codeCertNotFound      = -32042
	codeCertForbidden     = -32043
	codeCertConflict      = -32044
	codeCertFunds         = -32045
	codeCertInternal      = -32046
)

func certificateError(err error) *RPCError {
	switch {
	case errors.Is(err, certificate.ErrUnauthorized):
		return &RPCError{Code: codeCertForbidden, Message: err.Error()}
	case errors.Is(err, certificate.ErrUnknownToken),
		errors.Is(err, certificate.ErrUnknownPool):
		return &RPCError{Code: codeCertNotFound, Message: err.Error()}
	case errors.Is(err, certificate.ErrAlreadyRedeemed):
		return &RPCError{Code: codeCertConflict, Message: err.Error()}
	case errors.Is(err, certificate.ErrInsufficientFunds):
		return &RPCError{Code: codeCertFunds, Message: err.Error()}
	case errors.Is(err, donation.ErrUnknownPool):
		return &RPCError{Code: codeCertNotFound, Message: err.Error()}
	case errors.Is(err, common.ErrModulePaused):
		return &RPCError{Code: codeCertForbidden, Message: err.Error()}
	default:
		return &RPCError{Code: codeCertInternal, Message: err.Error()}
	}
}

type certificateMintParams struct {
	Caller    string `json:"caller"`
	Owner     string `json:"owner"`
	Pool      string `json:"pool"`
	FaceValue string `json:"faceValue"`
}

func (s *Server) handleCertificateMint(req *RPCRequest) (interface{}, *RPCError) {
	var params certificateMintParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeCertInvalidParams, Message: err.Error()}
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		return nil, &RPCError{Code: codeCertInvalidParams, Message: err.Error()}
	}
	faceValue, err := parseAmount(params.FaceValue)
	if err != nil {
		return nil, &RPCError{Code: codeCertInvalidParams, Message: err.Error()}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	tokenID, err := s.certificate.Mint(caller, owner, params.Pool, faceValue)
	if err != nil {
		return nil, certificateError(err)
	}
	return map[string]uint64{"tokenId": tokenID}, nil
}

type certificateRedeemParams struct {
	Caller  string `json:"caller"`
	TokenID uint64 `json:"tokenId"`
}

func (s *Server) handleCertificateRedeem(req *RPCRequest) (interface{}, *RPCError) {
	var params certificateRedeemParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeCertInvalidParams, Message: err.Error()}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	cert, err := s.certificate.Redeem(caller, params.TokenID)
	if err != nil {
		return nil, certificateError(err)
	}
	return newCertificateView(cert), nil
}

type certificateTransferParams struct {
	Caller   string `json:"caller"`
	TokenID  uint64 `json:"tokenId"`
	NewOwner string `json:"newOwner"`
}

func (s *Server) handleCertificateTransfer(req *RPCRequest) (interface{}, *RPCError) {
	var params certificateTransferParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeCertInvalidParams, Message: err.Error()}
	}
	newOwner, err := parseAddress(params.NewOwner)
	if err != nil {
		return nil, &RPCError{Code: codeCertInvalidParams, Message: err.Error()}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	cert, err := s.certificate.Transfer(caller, params.TokenID, newOwner)
	if err != nil {
		return nil, certificateError(err)
	}
	return newCertificateView(cert), nil
}

type certificateGetParams struct {
	TokenID uint64 `json:"tokenId"`
}

func (s *Server) handleCertificateGet(req *RPCRequest) (interface{}, *RPCError) {
	var params certificateGetParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	cert, err := s.certificate.GetCertificate(params.TokenID)
	if err != nil {
		return nil, certificateError(err)
	}
	return newCertificateView(cert), nil
}

type certificateListByOwnerParams struct {
	Owner string `json:"owner"`
}

func (s *Server) handleCertificateListByOwner(req *RPCRequest) (interface{}, *RPCError) {
	var params certificateListByOwnerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		return nil, &RPCError{Code: codeCertInvalidParams, Message: err.Error()}
	}
	certs, err := s.certificate.ListByOwner(owner)
	if err != nil {
		return nil, certificateError(err)
	}
	views := make([]certificateView, 0, len(certs))
	for _, cert := range certs {
		views = append(views, newCertificateView(cert))
	}
	return views, nil
}
