package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"mycelhub/pkg/wire"
)

// Client -> server command protocol

type CommandType string

const (
	CmdSendChat         CommandType = "send_chat"
	CmdGetPeers         CommandType = "get_peers"
	CmdGetStats         CommandType = "get_stats"
	CmdSubscribe        CommandType = "subscribe"
	CmdSendVouch        CommandType = "send_vouch"
	CmdRespondVouch     CommandType = "respond_vouch"
	CmdCreateCreditLine CommandType = "create_credit_line"
	CmdTransferCredit   CommandType = "transfer_credit"
	CmdCreateProposal   CommandType = "create_proposal"
	CmdCastVote         CommandType = "cast_vote"
	CmdReportResource   CommandType = "report_resource"
)

// ClientCommand carries user intent only. Ids and timestamps are added by the Translator.
type ClientCommand interface {
	CommandType() CommandType
}

type SendChat struct {
	Content string  `json:"content"`
	To      *string `json:"to"`
}

type GetPeers struct{}

type GetStats struct{}

type SubscribeTopic struct {
	Topic string `json:"topic"`
}

type SendVouch struct {
	Vouchee string  `json:"vouchee"`
	Weight  float64 `json:"weight"`
	Message *string `json:"message"`
}

type RespondVouch struct {
	RequestID string `json:"request_id"`
	Accept    bool   `json:"accept"`
}

type CreateCreditLine struct {
	Debtor string  `json:"debtor"`
	Limit  float64 `json:"limit"`
}

type TransferCredit struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
	Memo   *string `json:"memo"`
}

type CreateProposal struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ProposalType string `json:"proposal_type"`
}

type CastVote struct {
	ProposalID string `json:"proposal_id"`
	Vote       string `json:"vote"`
}

type ReportResource struct {
	ResourceType string  `json:"resource_type"`
	Amount       float64 `json:"amount"`
	Unit         string  `json:"unit"`
}

func (SendChat) CommandType() CommandType         { return CmdSendChat }
func (GetPeers) CommandType() CommandType         { return CmdGetPeers }
func (GetStats) CommandType() CommandType         { return CmdGetStats }
func (SubscribeTopic) CommandType() CommandType   { return CmdSubscribe }
func (SendVouch) CommandType() CommandType        { return CmdSendVouch }
func (RespondVouch) CommandType() CommandType     { return CmdRespondVouch }
func (CreateCreditLine) CommandType() CommandType { return CmdCreateCreditLine }
func (TransferCredit) CommandType() CommandType   { return CmdTransferCredit }
func (CreateProposal) CommandType() CommandType   { return CmdCreateProposal }
func (CastVote) CommandType() CommandType         { return CmdCastVote }
func (ReportResource) CommandType() CommandType   { return CmdReportResource }

// required lists the non-optional fields of each command
var required = map[CommandType][]string{
	CmdSendChat:         {"content"},
	CmdGetPeers:         nil,
	CmdGetStats:         nil,
	CmdSubscribe:        {"topic"},
	CmdSendVouch:        {"vouchee", "weight"},
	CmdRespondVouch:     {"request_id", "accept"},
	CmdCreateCreditLine: {"debtor", "limit"},
	CmdTransferCredit:   {"to", "amount"},
	CmdCreateProposal:   {"title", "description", "proposal_type"},
	CmdCastVote:         {"proposal_id", "vote"},
	CmdReportResource:   {"resource_type", "amount", "unit"},
}

// ParseCommand decodes one inbound text frame. Every failure is a
// *MalformedCommandError carrying the frame.
func ParseCommand(data []byte) (ClientCommand, error) {
	malformed := func(err error) error {
		return &MalformedCommandError{Raw: string(data), Err: err}
	}

	tag, fields, err := wire.Fields(data)
	if err != nil {
		return nil, malformed(err)
	}
	names, ok := required[CommandType(tag)]
	if !ok {
		return nil, malformed(fmt.Errorf("unknown variant `%s`", tag))
	}
	if err := wire.Require(fields, names...); err != nil {
		return nil, malformed(err)
	}

	var cmd ClientCommand
	switch CommandType(tag) {
	case CmdSendChat:
		cmd, err = decodeFields[SendChat](fields)
	case CmdGetPeers:
		cmd = GetPeers{}
	case CmdGetStats:
		cmd = GetStats{}
	case CmdSubscribe:
		cmd, err = decodeFields[SubscribeTopic](fields)
	case CmdSendVouch:
		cmd, err = decodeFields[SendVouch](fields)
	case CmdRespondVouch:
		cmd, err = decodeFields[RespondVouch](fields)
	case CmdCreateCreditLine:
		cmd, err = decodeFields[CreateCreditLine](fields)
	case CmdTransferCredit:
		cmd, err = decodeFields[TransferCredit](fields)
	case CmdCreateProposal:
		cmd, err = decodeFields[CreateProposal](fields)
	case CmdCastVote:
		cmd, err = decodeFields[CastVote](fields)
	case CmdReportResource:
		cmd, err = decodeFields[ReportResource](fields)
	default:
		err = errors.New("unhandled variant")
	}
	if err != nil {
		return nil, malformed(err)
	}
	return cmd, nil
}

func decodeFields[T ClientCommand](fields map[string]json.RawMessage) (ClientCommand, error) {
	var cmd T
	if err := wire.DecodeFields(fields, &cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// EncodeCommand is used by the CLI client.
func EncodeCommand(cmd ClientCommand) ([]byte, error) {
	return wire.MarshalTagged(string(cmd.CommandType()), cmd)
}
