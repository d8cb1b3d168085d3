// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package pending_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/pending"
)

const testRevealTxID = "5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c"

var testTime = time.Date(2024, 4, 20, 0, 9, 27, 0, time.UTC)

func TestNewPrepared(t *testing.T) {
	record := pending.NewPrepared(testRevealTxID, 0, testTime)
	require.Equal(t, testRevealTxID+"i0", record.OrdinalID)
	require.Equal(t, pending.StatusPrepared, record.Status)
	require.NoError(t, record.Validate())
}

func TestRecordValidate(t *testing.T) {
	valid := pending.NewPrepared(testRevealTxID, 0, testTime)

	tests := []struct {
		name   string
		modify func(r *pending.Record)
		valid  bool
	}{
		{"valid", func(r *pending.Record) {}, true},
		{"change above dust", func(r *pending.Record) { r.ChangeAmount = 546 }, true},
		{"dust change", func(r *pending.Record) { r.ChangeAmount = 300 }, false},
		{"no ordinal id", func(r *pending.Record) { r.OrdinalID = "" }, false},
		{"malformed ordinal id", func(r *pending.Record) { r.OrdinalID = "ordinal" }, false},
		{"ordinal id of another output", func(r *pending.Record) { r.RevealVout = 1 }, false},
		{"prepared without reveal", func(r *pending.Record) { r.RevealTxID = "" }, false},
		{"sent without send tx", func(r *pending.Record) { r.Status = pending.StatusSent }, false},
		{"unknown status", func(r *pending.Record) { r.Status = "lost" }, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			record := valid
			test.modify(&record)

			err := record.Validate()
			if test.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, pending.ErrInvalidRecord)
		})
	}
}

func TestTransition(t *testing.T) {
	prepared := pending.NewPrepared(testRevealTxID, 0, testTime)
	later := testTime.Add(time.Hour)

	t.Run("send succeeded", func(t *testing.T) {
		sent, err := pending.Transition(prepared, pending.Event{
			Kind:     pending.EventSendSucceeded,
			SendTxID: "send",
			SendFee:  424,
			At:       later,
		})
		require.NoError(t, err)
		require.Equal(t, pending.StatusSent, sent.Status)
		require.Equal(t, "send", sent.SendTxID)
		require.EqualValues(t, 424, sent.SendFee)
		require.Equal(t, later, sent.UpdatedAt)
		require.NoError(t, sent.Validate())

		require.Equal(t, pending.StatusPrepared, prepared.Status)

		_, err = pending.Transition(sent, pending.Event{Kind: pending.EventSendFailed})
		require.ErrorIs(t, err, pending.ErrInvalidTransition)
	})

	t.Run("send failed keeps record prepared", func(t *testing.T) {
		failed, err := pending.Transition(prepared, pending.Event{
			Kind: pending.EventSendFailed,
			Err:  errors.New("broadcast rejected"),
			At:   later,
		})
		require.NoError(t, err)
		require.Equal(t, pending.StatusPrepared, failed.Status)
		require.Equal(t, "broadcast rejected", failed.LastError)
		require.Empty(t, failed.SendTxID)
	})

	t.Run("succeeded without tx id", func(t *testing.T) {
		_, err := pending.Transition(prepared, pending.Event{Kind: pending.EventSendSucceeded})
		require.ErrorIs(t, err, pending.ErrInvalidTransition)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := pending.Transition(prepared, pending.Event{Kind: "confirmed"})
		require.ErrorIs(t, err, pending.ErrInvalidTransition)
	})
}

func TestRecordUTXOs(t *testing.T) {
	record := pending.NewPrepared(testRevealTxID, 0, testTime)
	record.OutputValue = 546
	record.Owner = "owner"

	inscription := record.InscriptionUTXO([]byte{0x51})
	require.Equal(t, testRevealTxID+":0", inscription.Outpoint())
	require.EqualValues(t, 546, inscription.Satoshi())
	require.Nil(t, record.ChangeUTXO(nil))

	changeVout := uint32(1)
	record.ChangeVout, record.ChangeAmount = &changeVout, 9000
	change := record.ChangeUTXO([]byte{0x51})
	require.NotNil(t, change)
	require.Equal(t, testRevealTxID+":1", change.Outpoint())
	require.EqualValues(t, 9000, change.Satoshi())
}

func TestRecordJSON(t *testing.T) {
	t.Run("timestamps are unix millis", func(t *testing.T) {
		record := pending.NewPrepared(testRevealTxID, 0, testTime)
		record.UpdatedAt = time.Time{}
		record.OutputValue = 546

		data, err := json.Marshal(record)
		require.NoError(t, err)
		require.Contains(t, string(data), `"createdAt":1713571767000`)
		require.Contains(t, string(data), `"revealOutputValue":546`)
		require.Contains(t, string(data), `"changeVout":null`)
		require.NotContains(t, string(data), `"updatedAt"`)
	})

	t.Run("accepts former encodings", func(t *testing.T) {
		var record pending.Record
		err := json.Unmarshal([]byte(`{
			"ordinalId": "`+testRevealTxID+`i0",
			"amt": 12.5,
			"outputValue": 600,
			"createdAt": "2024-04-20T00:09:27Z",
			"updatedAt": 1713571767123
		}`), &record)
		require.NoError(t, err)
		require.Equal(t, "12.5", record.Amt)
		require.EqualValues(t, 600, record.OutputValue)
		require.Equal(t, testTime, record.CreatedAt)
		require.Equal(t, testTime.Add(123*time.Millisecond), record.UpdatedAt)
	})

	t.Run("malformed timestamp", func(t *testing.T) {
		var record pending.Record
		require.Error(t, json.Unmarshal([]byte(`{"createdAt":"yesterday"}`), &record))
		require.Error(t, json.Unmarshal([]byte(`{"createdAt":true}`), &record))
	})
}
