package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanotel/internal/pattern"
)

func TestDeactivateDataCall(t *testing.T) {
	tests := []struct {
		name     string
		events   []pattern.Event
		status   Status
		duration *int
		missing  []pattern.Kind
	}{
		{
			name: "completes on unsol naming the cid",
			events: tagged(
				rec(0, "0300", "RILJ: [0300]> DEACTIVATE_DATA_CALL cid=7 reason=1 [PHONE0]"),
				rec(80, "0300", "RILJ: [0300]< DEACTIVATE_DATA_CALL [PHONE0]"),
				rec(120, "", "RILJ: [UNSL]< UNSOL_DATA_CALL_LIST_CHANGED [DataCallResponse: { cid=9 }]"),
				rec(150, "", "RILJ: [UNSL]< UNSOL_DATA_CALL_LIST_CHANGED [DataCallResponse: { cid=7 active=0 }]"),
			),
			status:   StatusSuccess,
			duration: intp(150),
		},
		{
			name: "unsol before response does not complete",
			events: tagged(
				rec(0, "0300", "RILJ: [0300]> DEACTIVATE_DATA_CALL cid=7"),
				rec(50, "", "RILJ: [UNSL]< UNSOL_DATA_CALL_LIST_CHANGED [DataCallResponse: { cid=7 }]"),
				rec(80, "0300", "RILJ: [0300]< DEACTIVATE_DATA_CALL"),
			),
			status:  StatusIncomplete,
			missing: []pattern.Kind{pattern.UnsolDataCallListChanged},
		},
		{
			name: "no response",
			events: tagged(
				rec(0, "0300", "RILJ: [0300]> DEACTIVATE_DATA_CALL cid=7"),
			),
			status:  StatusIncomplete,
			missing: []pattern.Kind{pattern.DeactivateDataCallResponse},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ReconstructDeactivateDataCall(tt.events, DeactivateOptions{})
			require.Len(t, out.Transactions, 1)
			tx := out.Transactions[0]
			assert.Equal(t, FamilyDeactivate, tx.Family)
			assert.Equal(t, tt.status, tx.Status)
			if tt.duration != nil {
				require.NotNil(t, tx.Duration)
				assert.Equal(t, ms(*tt.duration), *tx.Duration)
			} else {
				assert.Nil(t, tx.Duration)
			}
			assert.Equal(t, tt.missing, tx.Missing)
		})
	}
}

func TestDeactivateDataCallOrphanResponse(t *testing.T) {
	out := ReconstructDeactivateDataCall(tagged(
		rec(80, "0300", "RILJ: [0300]< DEACTIVATE_DATA_CALL"),
		rec(90, "", "RILJ: [0301]< DEACTIVATE_DATA_CALL"),
	), DeactivateOptions{})

	assert.Empty(t, out.Transactions)
	require.Len(t, out.Diagnostics, 2)
	assert.Equal(t, 0, out.Diagnostics[0].Index)
	assert.Equal(t, 1, out.Diagnostics[1].Index)
}

func TestDeactivateDataCallWithoutCID(t *testing.T) {
	out := ReconstructDeactivateDataCall(tagged(
		rec(0, "0300", "RILJ: [0300]> DEACTIVATE_DATA_CALL reason=1"),
		rec(80, "0300", "RILJ: [0300]< DEACTIVATE_DATA_CALL"),
	), DeactivateOptions{})

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.True(t, tx.HasNote(MissingEvent))
	assert.Equal(t, StatusIncomplete, tx.Status)
}

func intp(n int) *int {
	return &n
}
