package poller

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonforge/jetton-credit-service/internal/models"
)

func TestMatchTransfer(t *testing.T) {
	tests := []struct {
		name    string
		event   models.AccountEvent
		want    int64
		wantErr error
	}{
		{
			name:  "string amount",
			event: transferEvent("e1", "ok", "2500000000"),
			want:  2500000000,
		},
		{
			name: "numeric amount",
			event: models.AccountEvent{
				EventID: "e1",
				Actions: []models.Action{{
					Status:         models.ActionOK,
					JettonTransfer: &models.JettonTransfer{Amount: json.Number("42")},
				}},
			},
			want: 42,
		},
		{
			name:  "zero amount",
			event: transferEvent("e1", "ok", "0"),
			want:  0,
		},
		{
			name:    "failed action",
			event:   transferEvent("e1", "failed", "2500000000"),
			wantErr: ErrActionNotSuccessful,
		},
		{
			name:    "no actions",
			event:   models.AccountEvent{EventID: "e1"},
			wantErr: ErrMalformedTransfer,
		},
		{
			name: "no transfer payload",
			event: models.AccountEvent{
				EventID: "e1",
				Actions: []models.Action{{Status: models.ActionOK}},
			},
			wantErr: ErrMalformedTransfer,
		},
		{
			name:    "unparsable amount",
			event:   transferEvent("e1", "ok", "lots"),
			wantErr: ErrMalformedTransfer,
		},
		{
			name:    "negative amount",
			event:   transferEvent("e1", "ok", "-5"),
			wantErr: ErrMalformedTransfer,
		},
		{
			name: "only first action is inspected",
			event: models.AccountEvent{
				EventID: "e1",
				Actions: []models.Action{
					{Status: models.ActionOK, JettonTransfer: &models.JettonTransfer{Amount: json.Number("7")}},
					{Status: "failed"},
				},
			},
			want: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchTransfer(tt.event)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
