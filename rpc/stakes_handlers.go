package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"linkstake/native/stakes"
)

type createStakeParams struct {
	Caller          string   `json:"caller"`
	ReferencedIDs   []string `json:"referencedIds"`
	Amount          string   `json:"amount"`
	Rationale       string   `json:"rationale"`
	AttachedPayment string   `json:"attachedPayment"`
}

type stakeIDParams struct {
	Caller  string `json:"caller"`
	StakeID uint64 `json:"stakeId"`
}

type slashParams struct {
	Caller  string `json:"caller"`
	StakeID uint64 `json:"stakeId"`
	Reason  string `json:"reason,omitempty"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type updateParamsParams struct {
	Caller              string `json:"caller"`
	MinStake            string `json:"minStake"`
	MaxStake            string `json:"maxStake"`
	RewardMultiplierBps uint32 `json:"rewardMultiplierBps"`
	SlashPenaltyBps     uint32 `json:"slashPenaltyBps"`
	LockDurationSeconds uint64 `json:"lockDurationSeconds"`
}

type fundReserveParams struct {
	Caller          string `json:"caller"`
	Amount          string `json:"amount"`
	AttachedPayment string `json:"attachedPayment"`
}

type setPausedParams struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

type slasherParams struct {
	Caller  string `json:"caller"`
	Slasher string `json:"slasher"`
}

type transferOwnershipParams struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner"`
}

type stakeResponse struct {
	ID            uint64   `json:"id"`
	Staker        string   `json:"staker"`
	ReferencedIDs []string `json:"referencedIds"`
	Amount        string   `json:"amount"`
	Rationale     string   `json:"rationale"`
	CreatedAt     int64    `json:"createdAt"`
	Status        string   `json:"status"`
	RewardAmount  string   `json:"rewardAmount"`
	SlashAmount   string   `json:"slashAmount"`
}

func stakeResponseFrom(s *stakes.Stake) stakeResponse {
	return stakeResponse{
		ID:            s.ID,
		Staker:        common.Address(s.Staker).Hex(),
		ReferencedIDs: s.ReferencedIDs,
		Amount:        s.Amount.String(),
		Rationale:     s.Rationale,
		CreatedAt:     s.CreatedAt,
		Status:        s.Status.String(),
		RewardAmount:  s.RewardAmount.String(),
		SlashAmount:   s.SlashAmount.String(),
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid parameter object")
	}
	return nil
}

func decodeAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return value, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, req *RPCRequest) {
	var params createStakeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payment, err := parseAmount(params.AttachedPayment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	stake, err := s.engine.Create(caller, params.ReferencedIDs, amount, params.Rationale, payment)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stakeResponseFrom(stake))
}

func (s *Server) resolve(w http.ResponseWriter, req *RPCRequest, successful bool) {
	var params stakeIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var stake *stakes.Stake
	if successful {
		stake, err = s.engine.ResolveSuccessful(caller, params.StakeID)
	} else {
		stake, err = s.engine.ResolveFailed(caller, params.StakeID)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stakeResponseFrom(stake))
}

func (s *Server) handleResolveSuccessful(w http.ResponseWriter, req *RPCRequest) {
	s.resolve(w, req, true)
}

func (s *Server) handleResolveFailed(w http.ResponseWriter, req *RPCRequest) {
	s.resolve(w, req, false)
}

func (s *Server) handleSlash(w http.ResponseWriter, req *RPCRequest) {
	var params slashParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	stake, err := s.engine.Slash(caller, params.StakeID, params.Reason)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stakeResponseFrom(stake))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params stakeIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	stake, err := s.engine.Withdraw(caller, params.StakeID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stakeResponseFrom(stake))
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	paid, err := s.engine.Claim(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"paid": paid.String()})
}

func (s *Server) handleUpdateParams(w http.ResponseWriter, req *RPCRequest) {
	var params updateParamsParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	minStake, err := parseAmount(params.MinStake)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	maxStake, err := parseAmount(params.MaxStake)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	update := &stakes.Params{
		MinStake:            minStake,
		MaxStake:            maxStake,
		RewardMultiplierBps: params.RewardMultiplierBps,
		SlashPenaltyBps:     params.SlashPenaltyBps,
		LockDuration:        params.LockDurationSeconds,
	}
	if err := s.engine.UpdateParams(caller, update); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleFundReserve(w http.ResponseWriter, req *RPCRequest) {
	var params fundReserveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payment, err := parseAmount(params.AttachedPayment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.FundReserve(caller, amount, payment); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"funded": true})
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	drained, err := s.engine.EmergencyWithdraw(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.log.Warn("emergency withdrawal executed", "drained", drained.String())
	writeResult(w, req.ID, map[string]string{"drained": drained.String()})
}

func (s *Server) handleSetCreationPaused(w http.ResponseWriter, req *RPCRequest) {
	var params setPausedParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetCreationPaused(caller, params.Paused); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": params.Paused})
}

func (s *Server) slasherChange(w http.ResponseWriter, req *RPCRequest, add bool) {
	var params slasherParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	slasher, err := decodeAddress(params.Slasher)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if add {
		err = s.engine.AddSlasher(caller, slasher)
	} else {
		err = s.engine.RemoveSlasher(caller, slasher)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAddSlasher(w http.ResponseWriter, req *RPCRequest) {
	s.slasherChange(w, req, true)
}

func (s *Server) handleRemoveSlasher(w http.ResponseWriter, req *RPCRequest) {
	s.slasherChange(w, req, false)
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, req *RPCRequest) {
	var params transferOwnershipParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	next, err := decodeAddress(params.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.TransferOwnership(caller, next); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"transferred": true})
}
