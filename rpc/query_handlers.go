package rpc

import (
	"net/http"
)

type getStakeParams struct {
	StakeID uint64 `json:"stakeId"`
}

type referenceParams struct {
	ReferencedID string `json:"referencedId"`
}

type participantParams struct {
	Participant string `json:"participant"`
}

type participantStatsResponse struct {
	ActiveStaked     string `json:"activeStaked"`
	ClaimableRewards string `json:"claimableRewards"`
	ActiveStakeCount int    `json:"activeStakeCount"`
}

type totalsResponse struct {
	TotalActiveStaked  string `json:"totalActiveStaked"`
	RewardsReserve     string `json:"rewardsReserve"`
	RewardsDistributed string `json:"rewardsDistributed"`
	HeldBalance        string `json:"heldBalance"`
}

type paramsResponse struct {
	MinStake            string `json:"minStake"`
	MaxStake            string `json:"maxStake"`
	RewardMultiplierBps uint32 `json:"rewardMultiplierBps"`
	SlashPenaltyBps     uint32 `json:"slashPenaltyBps"`
	LockDurationSeconds uint64 `json:"lockDurationSeconds"`
	CreationPaused      bool   `json:"creationPaused"`
}

func (s *Server) handleGetStake(w http.ResponseWriter, req *RPCRequest) {
	var params getStakeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	stake, err := s.engine.GetStake(params.StakeID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stakeResponseFrom(stake))
}

func (s *Server) handleListByReference(w http.ResponseWriter, req *RPCRequest) {
	var params referenceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	list, err := s.engine.StakesForReference(params.ReferencedID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]stakeResponse, 0, len(list))
	for _, stake := range list {
		out = append(out, stakeResponseFrom(stake))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleListByParticipant(w http.ResponseWriter, req *RPCRequest) {
	var params participantParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := decodeAddress(params.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	list, err := s.engine.StakesForParticipant(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]stakeResponse, 0, len(list))
	for _, stake := range list {
		out = append(out, stakeResponseFrom(stake))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleParticipantStats(w http.ResponseWriter, req *RPCRequest) {
	var params participantParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := decodeAddress(params.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	stats, err := s.engine.ParticipantStats(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, participantStatsResponse{
		ActiveStaked:     stats.ActiveStaked.String(),
		ClaimableRewards: stats.ClaimableRewards.String(),
		ActiveStakeCount: stats.ActiveStakeCount,
	})
}

func (s *Server) handleTotals(w http.ResponseWriter, req *RPCRequest) {
	totals, err := s.engine.Totals()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, totalsResponse{
		TotalActiveStaked:  totals.TotalActiveStaked.String(),
		RewardsReserve:     totals.RewardsReserve.String(),
		RewardsDistributed: totals.RewardsDistributed.String(),
		HeldBalance:        totals.HeldBalance.String(),
	})
}

func (s *Server) handleParams(w http.ResponseWriter, req *RPCRequest) {
	params, err := s.engine.Params()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	paused, err := s.engine.CreationPaused()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, paramsResponse{
		MinStake:            params.MinStake.String(),
		MaxStake:            params.MaxStake.String(),
		RewardMultiplierBps: params.RewardMultiplierBps,
		SlashPenaltyBps:     params.SlashPenaltyBps,
		LockDurationSeconds: params.LockDuration,
		CreationPaused:      paused,
	})
}
