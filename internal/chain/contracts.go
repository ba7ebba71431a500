package chain

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Minimal ABIs covering only the events and methods the pipelines use.
const (
	identityABIJSON = `[
		{"anonymous":false,"inputs":[
			{"indexed":true,"name":"agentId","type":"uint256"},
			{"indexed":false,"name":"agentURI","type":"string"},
			{"indexed":true,"name":"owner","type":"address"}
		],"name":"Registered","type":"event"},
		{"anonymous":false,"inputs":[
			{"indexed":true,"name":"agentId","type":"uint256"},
			{"indexed":false,"name":"agentURI","type":"string"}
		],"name":"AgentURIUpdated","type":"event"}
	]`

	reputationABIJSON = `[
		{"anonymous":false,"inputs":[
			{"indexed":true,"name":"agentId","type":"uint256"},
			{"indexed":true,"name":"clientAddress","type":"address"},
			{"indexed":false,"name":"feedbackIndex","type":"uint64"},
			{"indexed":false,"name":"value","type":"int128"},
			{"indexed":false,"name":"valueDecimals","type":"uint8"},
			{"indexed":false,"name":"tag1","type":"string"},
			{"indexed":false,"name":"tag2","type":"string"},
			{"indexed":false,"name":"endpoint","type":"string"},
			{"indexed":false,"name":"feedbackURI","type":"string"},
			{"indexed":false,"name":"feedbackHash","type":"bytes32"}
		],"name":"NewFeedback","type":"event"},
		{"anonymous":false,"inputs":[
			{"indexed":true,"name":"agentId","type":"uint256"},
			{"indexed":true,"name":"clientAddress","type":"address"},
			{"indexed":true,"name":"feedbackIndex","type":"uint64"}
		],"name":"FeedbackRevoked","type":"event"}
	]`

	oracleABIJSON = `[
		{"inputs":[
			{"name":"agentId","type":"uint256"},
			{"name":"score","type":"uint256"}
		],"name":"updateScore","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[
			{"name":"agentIds","type":"uint256[]"},
			{"name":"newScores","type":"uint256[]"}
		],"name":"updateScoreBatch","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"agentId","type":"uint256"}],
		"name":"getScoreView","outputs":[
			{"name":"score","type":"uint256"},
			{"name":"lastUpdated","type":"uint256"},
			{"name":"exists","type":"bool"}
		],"stateMutability":"view","type":"function"}
	]`
)

var (
	identityABI   = mustParseABI(identityABIJSON)
	reputationABI = mustParseABI(reputationABIJSON)
	oracleABI     = mustParseABI(oracleABIJSON)

	// Event topic hashes used in log filter queries.
	RegisteredTopic      = identityABI.Events["Registered"].ID
	AgentURIUpdatedTopic = identityABI.Events["AgentURIUpdated"].ID
	NewFeedbackTopic     = reputationABI.Events["NewFeedback"].ID
	FeedbackRevokedTopic = reputationABI.Events["FeedbackRevoked"].ID
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// RegisteredEvent is a decoded identity-registry Registered log.
type RegisteredEvent struct {
	AgentID  *big.Int
	Owner    common.Address
	AgentURI string
	Raw      types.Log
}

// ParseRegistered decodes a Registered log entry.
func ParseRegistered(lg types.Log) (*RegisteredEvent, error) {
	if len(lg.Topics) < 3 {
		return nil, fmt.Errorf("registered log %s: expected 3 topics, got %d", lg.TxHash, len(lg.Topics))
	}
	data := map[string]any{}
	if err := identityABI.UnpackIntoMap(data, "Registered", lg.Data); err != nil {
		return nil, fmt.Errorf("unpack Registered: %w", err)
	}
	uri, _ := data["agentURI"].(string)
	return &RegisteredEvent{
		AgentID:  new(big.Int).SetBytes(lg.Topics[1].Bytes()),
		Owner:    common.BytesToAddress(lg.Topics[2].Bytes()),
		AgentURI: uri,
		Raw:      lg,
	}, nil
}

// URIUpdatedEvent is a decoded AgentURIUpdated log.
type URIUpdatedEvent struct {
	AgentID  *big.Int
	AgentURI string
	Raw      types.Log
}

// ParseAgentURIUpdated decodes an AgentURIUpdated log entry.
func ParseAgentURIUpdated(lg types.Log) (*URIUpdatedEvent, error) {
	if len(lg.Topics) < 2 {
		return nil, fmt.Errorf("uri-updated log %s: expected 2 topics, got %d", lg.TxHash, len(lg.Topics))
	}
	data := map[string]any{}
	if err := identityABI.UnpackIntoMap(data, "AgentURIUpdated", lg.Data); err != nil {
		return nil, fmt.Errorf("unpack AgentURIUpdated: %w", err)
	}
	uri, _ := data["agentURI"].(string)
	return &URIUpdatedEvent{
		AgentID:  new(big.Int).SetBytes(lg.Topics[1].Bytes()),
		AgentURI: uri,
		Raw:      lg,
	}, nil
}

// NewFeedbackEvent is a decoded reputation-registry NewFeedback log.
type NewFeedbackEvent struct {
	AgentID       *big.Int
	ClientAddress common.Address
	FeedbackIndex uint64
	Value         int64
	ValueDecimals int
	Tag1          string
	Tag2          string
	Endpoint      string
	FeedbackURI   string
	Raw           types.Log
}

// ParseNewFeedback decodes a NewFeedback log entry. int128 values outside
// the int64 range saturate rather than wrap; the scoring engine clamps
// to [-100, 100] downstream anyway.
func ParseNewFeedback(lg types.Log) (*NewFeedbackEvent, error) {
	if len(lg.Topics) < 3 {
		return nil, fmt.Errorf("new-feedback log %s: expected 3 topics, got %d", lg.TxHash, len(lg.Topics))
	}
	data := map[string]any{}
	if err := reputationABI.UnpackIntoMap(data, "NewFeedback", lg.Data); err != nil {
		return nil, fmt.Errorf("unpack NewFeedback: %w", err)
	}

	ev := &NewFeedbackEvent{
		AgentID:       new(big.Int).SetBytes(lg.Topics[1].Bytes()),
		ClientAddress: common.BytesToAddress(lg.Topics[2].Bytes()),
		Raw:           lg,
	}

	if idx, ok := data["feedbackIndex"].(uint64); ok {
		ev.FeedbackIndex = idx
	}
	if v, ok := data["value"].(*big.Int); ok {
		ev.Value = saturateInt64(v)
	}
	if d, ok := data["valueDecimals"].(uint8); ok {
		ev.ValueDecimals = int(d)
	}
	ev.Tag1, _ = data["tag1"].(string)
	ev.Tag2, _ = data["tag2"].(string)
	ev.Endpoint, _ = data["endpoint"].(string)
	ev.FeedbackURI, _ = data["feedbackURI"].(string)
	return ev, nil
}

// FeedbackRevokedEvent is a decoded FeedbackRevoked log. All fields are
// indexed on this event, so everything comes from topics.
type FeedbackRevokedEvent struct {
	AgentID       *big.Int
	ClientAddress common.Address
	FeedbackIndex uint64
	Raw           types.Log
}

// ParseFeedbackRevoked decodes a FeedbackRevoked log entry.
func ParseFeedbackRevoked(lg types.Log) (*FeedbackRevokedEvent, error) {
	if len(lg.Topics) < 4 {
		return nil, fmt.Errorf("feedback-revoked log %s: expected 4 topics, got %d", lg.TxHash, len(lg.Topics))
	}
	return &FeedbackRevokedEvent{
		AgentID:       new(big.Int).SetBytes(lg.Topics[1].Bytes()),
		ClientAddress: common.BytesToAddress(lg.Topics[2].Bytes()),
		FeedbackIndex: new(big.Int).SetBytes(lg.Topics[3].Bytes()).Uint64(),
		Raw:           lg,
	}, nil
}

// PackUpdateScoreBatch builds the calldata for updateScoreBatch.
func PackUpdateScoreBatch(agentIDs []*big.Int, scores []*big.Int) ([]byte, error) {
	return oracleABI.Pack("updateScoreBatch", agentIDs, scores)
}

// PackGetScoreView builds the calldata for the getScoreView view call.
func PackGetScoreView(agentID *big.Int) ([]byte, error) {
	return oracleABI.Pack("getScoreView", agentID)
}

// UnpackScoreView decodes a getScoreView result into the scaled score and
// an existence flag.
func UnpackScoreView(result []byte) (score *big.Int, exists bool, err error) {
	outs, err := oracleABI.Unpack("getScoreView", result)
	if err != nil {
		return nil, false, fmt.Errorf("unpack getScoreView: %w", err)
	}
	if len(outs) != 3 {
		return nil, false, fmt.Errorf("unpack getScoreView: expected 3 outputs, got %d", len(outs))
	}
	score, ok := outs[0].(*big.Int)
	if !ok {
		return nil, false, fmt.Errorf("unpack getScoreView: score is %T", outs[0])
	}
	exists, ok = outs[2].(bool)
	if !ok {
		return nil, false, fmt.Errorf("unpack getScoreView: exists is %T", outs[2])
	}
	return score, exists, nil
}

func saturateInt64(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}
	if v.Sign() < 0 {
		return math.MinInt64
	}
	return math.MaxInt64
}
