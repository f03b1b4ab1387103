package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"swaplace/gateway/auth"
	"swaplace/native/swaplace"
	"swaplace/services/swapd/api"
)

func swapIDParam(r *http.Request) (uint64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: swap id %q", errBadRequest, raw)
	}
	return id, nil
}

func addressParam(r *http.Request, name string) (common.Address, error) {
	addr, err := api.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return addr, nil
}

func caller(r *http.Request) common.Address {
	principal, _ := auth.PrincipalFromContext(r.Context())
	return principal.Address
}

func (s *Server) handleEngine(w http.ResponseWriter, r *http.Request) {
	escrowed, err := s.ledger.Escrowed()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	infos := s.ledger.Tokens()
	resp := api.EngineResponse{
		Address:  s.ledger.EngineAddress().Hex(),
		Paused:   s.ledger.Paused(),
		Escrowed: escrowed.String(),
		Tokens:   make([]api.TokenInfo, 0, len(infos)),
	}
	for _, info := range infos {
		resp.Tokens = append(resp.Tokens, api.TokenInfo{Name: info.Name, Standard: info.Standard, Address: info.Address.Hex()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.ledger.Total()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	next, err := s.ledger.NextID()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.TotalResponse{Total: total, NextID: next})
}

func (s *Server) handleGetSwap(w http.ResponseWriter, r *http.Request) {
	id, err := swapIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	swap, err := s.ledger.Swap(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromSwap(id, swap))
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.ledger.Balance(addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AccountResponse{Address: addr.Hex(), Balance: balance.String()})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	holder, err := addressParam(r, "holder")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rawID := r.URL.Query().Get("id")
	id, err := api.ParseInt(rawID)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	balance, err := s.ledger.TokenBalance(token, holder, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.TokenBalanceResponse{
		Token:   token.Hex(),
		Holder:  holder.Hex(),
		ID:      rawID,
		Balance: balance.String(),
	})
}

func (s *Server) handleTokenOwner(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rawID := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := api.ParseInt(rawID)
	if err != nil || rawID == "" {
		s.writeError(w, r, fmt.Errorf("%w: invalid token id %q", errBadRequest, rawID))
		return
	}
	owner, err := s.ledger.OwnerOf(token, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.TokenOwnerResponse{
		Token: token.Hex(),
		ID:    id.String(),
		Owner: owner.Hex(),
	})
}

func (s *Server) handleConfigEncode(w http.ResponseWriter, r *http.Request) {
	var req api.ConfigWord
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	word, err := req.Encode()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromConfig(swaplace.DecodeConfig(word)))
}

func (s *Server) handleConfigDecode(w http.ResponseWriter, r *http.Request) {
	var req api.ConfigWord
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	word, err := api.ParseWord(req.Config)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromConfig(swaplace.DecodeConfig(word)))
}

func (s *Server) handleAssetEncode(w http.ResponseWriter, r *http.Request) {
	var req api.AssetWord
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := api.ParseInt(req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	qty, err := api.ParseInt(req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	word, err := swaplace.EncodeAsset(id, qty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AssetWord{AmountOrID: word.Dec(), ID: id.String(), Quantity: qty.String(), Packed: true})
}

func (s *Server) handleAssetDecode(w http.ResponseWriter, r *http.Request) {
	var req api.AssetWord
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	word, err := api.ParseWord(req.AmountOrID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.AssetWord{AmountOrID: word.Dec(), Packed: swaplace.IsQuantityPacked(word)}
	if resp.Packed {
		id, qty := swaplace.DecodeAsset(word)
		resp.ID = id.Dec()
		resp.Quantity = qty.Dec()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSwap(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSwapRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	from := caller(r)
	swap, err := req.Swap.ToSwap(from)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	attached, err := api.ParseInt(req.Attached)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.ledger.CreateSwap(from, swap, attached)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.CreateSwapResponse{ID: id})
}

func (s *Server) handleAcceptSwap(w http.ResponseWriter, r *http.Request) {
	id, err := swapIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.AcceptSwapRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	from := caller(r)
	receiver := from
	if strings.TrimSpace(req.Receiver) != "" {
		receiver, err = api.ParseAddress(req.Receiver)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	attached, err := api.ParseInt(req.Attached)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.AcceptSwap(from, id, receiver, attached); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.StatusResponse{Status: "accepted"})
}

func (s *Server) handleCancelSwap(w http.ResponseWriter, r *http.Request) {
	id, err := swapIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.CancelSwap(caller(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.StatusResponse{Status: "canceled"})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.ApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	spender := s.ledger.EngineAddress()
	if strings.TrimSpace(req.Spender) != "" {
		if spender, err = api.ParseAddress(req.Spender); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	amount, err := api.ParseInt(req.AmountOrID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.Approve(caller(r), token, spender, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.StatusResponse{Status: "approved"})
}

func (s *Server) handleApprovalForAll(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.ApprovalForAllRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	operator := s.ledger.EngineAddress()
	if strings.TrimSpace(req.Operator) != "" {
		if operator, err = api.ParseAddress(req.Operator); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.ledger.SetApprovalForAll(caller(r), token, operator, req.Approved); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.StatusResponse{Status: "ok"})
}
