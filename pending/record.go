// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package pending

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/ord/inscriptions"
)

var (
	// ErrInvalidRecord defines that record breaks its invariants.
	ErrInvalidRecord = errors.New("invalid transfer record")
	// ErrInvalidTransition defines that event could not be applied to the record status.
	ErrInvalidTransition = errors.New("invalid record transition")
)

// Status defines transfer record lifecycle status.
type Status string

const (
	// StatusPrepared defines inscription revealed on the owner wallet, not yet sent.
	StatusPrepared Status = "prepared"
	// StatusSent defines inscription sent to the destination.
	StatusSent Status = "sent"
)

// Mode defines batch mode which produced the record.
type Mode string

const (
	// ModeFanout defines one wallet inscribing transfers for many destinations.
	ModeFanout Mode = "fanout"
	// ModeCollect defines many source wallets inscribing transfers for one destination.
	ModeCollect Mode = "collect"
)

// Record describes transfer inscription waiting to be sent.
// Timestamps are stored as unix milliseconds.
type Record struct {
	OrdinalID     string    `json:"ordinalId"`
	Label         string    `json:"label,omitempty"`
	Tick          string    `json:"tick"`
	Amt           string    `json:"amt"`
	Address       string    `json:"address"`
	Owner         string    `json:"owner,omitempty"`
	CommitTxID    string    `json:"commitTxId"`
	CommitAmount  int64     `json:"commitAmount,omitempty"`
	RevealTxID    string    `json:"revealTxId"`
	RevealFee     int64     `json:"revealFee,omitempty"`
	RevealVout    uint32    `json:"revealVout"`
	ChangeVout    *uint32   `json:"changeVout"`
	ChangeAmount  int64     `json:"changeAmount"`
	ChangeAddress string    `json:"changeAddress,omitempty"`
	OutputValue   int64     `json:"revealOutputValue,omitempty"`
	Mode          Mode      `json:"mode,omitempty"`
	SourceIndex   *int      `json:"sourceIndex,omitempty"`
	SourceAddress string    `json:"sourceAddress,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
	SendTxID      string    `json:"sendTxId,omitempty"`
	SendFee       int64     `json:"sendFee,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
}

type recordFields Record

// recordJSON overrides fields whose stored form differs from Record.
type recordJSON struct {
	recordFields
	Amt       amount      `json:"amt"`
	CreatedAt unixMillis  `json:"createdAt"`
	UpdatedAt *unixMillis `json:"updatedAt,omitempty"`

	// LegacyOutputValue is the reveal output value written under its former key.
	LegacyOutputValue int64 `json:"outputValue,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	stored := recordJSON{
		recordFields: recordFields(r),
		Amt:          amount(r.Amt),
		CreatedAt:    unixMillis(r.CreatedAt),
	}
	if !r.UpdatedAt.IsZero() {
		updatedAt := unixMillis(r.UpdatedAt)
		stored.UpdatedAt = &updatedAt
	}

	return json.Marshal(stored)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var stored recordJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}

	*r = Record(stored.recordFields)
	r.Amt = string(stored.Amt)
	r.CreatedAt = time.Time(stored.CreatedAt)
	if stored.UpdatedAt != nil {
		r.UpdatedAt = time.Time(*stored.UpdatedAt)
	}
	if r.OutputValue == 0 {
		r.OutputValue = stored.LegacyOutputValue
	}

	return nil
}

// unixMillis is a time stored as unix milliseconds, RFC3339 strings are accepted on read.
type unixMillis time.Time

func (t unixMillis) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}

	return strconv.AppendInt(nil, time.Time(t).UnixMilli(), 10), nil
}

func (t *unixMillis) UnmarshalJSON(data []byte) error {
	switch {
	case string(data) == "null":
		return nil
	case len(data) > 0 && data[0] == '"':
		var parsed time.Time
		if err := parsed.UnmarshalJSON(data); err != nil {
			return err
		}

		*t = unixMillis(parsed.UTC())
		return nil
	}

	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	*t = unixMillis(time.UnixMilli(millis).UTC())

	return nil
}

// amount is a decimal amount stored as string, JSON numbers are accepted on read.
type amount string

func (a *amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*a = amount(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = amount(n)

	return nil
}

// NewPrepared returns prepared record for the inscription revealed at revealTxID:revealVout.
func NewPrepared(revealTxID string, revealVout uint32, now time.Time) Record {
	return Record{
		OrdinalID:  inscriptions.FormatID(revealTxID, revealVout),
		RevealTxID: revealTxID,
		RevealVout: revealVout,
		Status:     StatusPrepared,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks record invariants.
func (r Record) Validate() error {
	switch {
	case r.OrdinalID == "":
		return fmt.Errorf("%w: empty ordinal id", ErrInvalidRecord)
	case r.Status == StatusPrepared && r.RevealTxID == "":
		return fmt.Errorf("%w: prepared record without reveal tx", ErrInvalidRecord)
	case r.Status == StatusSent && r.SendTxID == "":
		return fmt.Errorf("%w: sent record without send tx", ErrInvalidRecord)
	case r.Status != StatusPrepared && r.Status != StatusSent:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, r.Status)
	case r.ChangeAmount != 0 && r.ChangeAmount < bitcoin.DustLimit:
		return fmt.Errorf("%w: dust change %d", ErrInvalidRecord, r.ChangeAmount)
	}

	id, err := inscriptions.ParseID(r.OrdinalID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if r.RevealTxID != "" && (id.TxID.String() != r.RevealTxID || id.Index != r.RevealVout) {
		return fmt.Errorf("%w: ordinal id %s is not reveal output %s:%d", ErrInvalidRecord, r.OrdinalID, r.RevealTxID, r.RevealVout)
	}

	return nil
}

// InscriptionUTXO returns inscribed output reference.
func (r Record) InscriptionUTXO(script []byte) bitcoin.UTXO {
	return bitcoin.NewUTXO(r.RevealTxID, r.RevealVout, r.OutputValue, script, r.Owner)
}

// ChangeUTXO returns reveal change output reference or nil if there is no change.
func (r Record) ChangeUTXO(script []byte) *bitcoin.UTXO {
	if r.ChangeVout == nil || r.ChangeAmount == 0 {
		return nil
	}

	utxo := bitcoin.NewUTXO(r.RevealTxID, *r.ChangeVout, r.ChangeAmount, script, r.Owner)
	return &utxo
}

// EventKind defines kind of lifecycle event.
type EventKind string

const (
	// EventSendSucceeded defines send transaction broadcasted.
	EventSendSucceeded EventKind = "send_succeeded"
	// EventSendFailed defines send attempt failure.
	EventSendFailed EventKind = "send_failed"
)

// Event describes lifecycle event applied to the record.
type Event struct {
	Kind     EventKind
	SendTxID string
	SendFee  int64
	Err      error
	At       time.Time
}

// Transition applies event to the record and returns updated copy.
// Failed send keeps record prepared with the failure reason.
func Transition(r Record, e Event) (Record, error) {
	if r.Status != StatusPrepared {
		return r, fmt.Errorf("%w: %s on %s record", ErrInvalidTransition, e.Kind, r.Status)
	}

	switch e.Kind {
	case EventSendSucceeded:
		if e.SendTxID == "" {
			return r, fmt.Errorf("%w: no send tx id", ErrInvalidTransition)
		}

		r.Status = StatusSent
		r.SendTxID = e.SendTxID
		r.SendFee = e.SendFee
		r.LastError = ""
	case EventSendFailed:
		r.LastError = "unknown error"
		if e.Err != nil {
			r.LastError = e.Err.Error()
		}
	default:
		return r, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, e.Kind)
	}

	r.UpdatedAt = e.At

	return r, nil
}
