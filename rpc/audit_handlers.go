package rpc

const codeAuditInternal = -32051

type auditRecentParams struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Server) handleAuditRecent(req *RPCRequest) (interface{}, *RPCError) {
	params := auditRecentParams{}
	if len(req.Params) > 0 {
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if s.journal == nil {
		return nil, &RPCError{Code: codeAuditInternal, Message: "audit journal not configured"}
	}
	entries, err := s.journal.Recent(params.Limit)
	if err != nil {
		return nil, &RPCError{Code: codeAuditInternal, Message: err.Error()}
	}
	return entries, nil
}

type auditAllocationParams struct {
	Pool string `json:"pool,omitempty"`
}

func (s *Server) handleAuditAllocation(req *RPCRequest) (interface{}, *RPCError) {
	params := auditAllocationParams{}
	if len(req.Params) > 0 {
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if s.journal == nil {
		return nil, &RPCError{Code: codeAuditInternal, Message: "audit journal not configured"}
	}
	slices, err := s.journal.Allocation(params.Pool)
	if err != nil {
		return nil, &RPCError{Code: codeAuditInternal, Message: err.Error()}
	}
	return slices, nil
}
