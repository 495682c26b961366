package api_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedicationFlow(t *testing.T) {
	// Create medication
	createResp := makeRequest("POST", "/medications", map[string]interface{}{
		"name":          "Metformin",
		"dosage_amount": 500,
		"dosage_unit":   "mg",
		"frequency":     "twice-daily",
		"times":         []string{"08:00", "20:00"},
		"start_date":    time.Now().AddDate(0, 0, -1).Format(time.RFC3339),
	}, authToken)
	require.True(t, createResp.IsSuccess(), "Failed to create medication: %s", createResp.Message)

	medID := createResp.GetString("id")
	require.NotEmpty(t, medID)

	// Get medication
	getResp := makeRequest("GET", fmt.Sprintf("/medications/%s", medID), nil, authToken)
	assert.True(t, getResp.IsSuccess())
	assert.Equal(t, "Metformin", getResp.Data["name"])

	// List medications
	listResp := makeRequest("GET", "/medications", nil, authToken)
	assert.True(t, listResp.IsSuccess())
	var meds []interface{}
	json.Unmarshal([]byte(listResp.RawData), &meds)
	assert.NotEmpty(t, meds)

	// Update medication
	updateResp := makeRequest("PUT", fmt.Sprintf("/medications/%s", medID), map[string]interface{}{
		"name": "Metformin ER",
	}, authToken)
	assert.True(t, updateResp.IsSuccess(), "Failed to update medication: %s", updateResp.Message)
	assert.Equal(t, "Metformin ER", updateResp.Data["name"])

	// Delete medication
	deleteResp := makeRequest("DELETE", fmt.Sprintf("/medications/%s", medID), nil, authToken)
	assert.True(t, deleteResp.IsSuccess())

	// Verify deletion
	verifyResp := makeRequest("GET", fmt.Sprintf("/medications/%s", medID), nil, authToken)
	assert.False(t, verifyResp.IsSuccess())
}

func TestDoseFlow(t *testing.T) {
	createResp := makeRequest("POST", "/medications", map[string]interface{}{
		"name":          "Lisinopril",
		"dosage_amount": 10,
		"dosage_unit":   "mg",
		"frequency":     "once-daily",
		"times":         []string{"09:00"},
		"start_date":    time.Now().AddDate(0, 0, -1).Format(time.RFC3339),
	}, authToken)
	require.True(t, createResp.IsSuccess(), "Failed to create medication: %s", createResp.Message)
	medID := createResp.GetString("id")

	// Record an ad-hoc dose event
	doseResp := makeRequest("POST", fmt.Sprintf("/medications/%s/dose", medID), map[string]interface{}{
		"notes": "with breakfast",
	}, authToken)
	assert.True(t, doseResp.IsSuccess(), "Failed to record dose: %s", doseResp.Message)

	// Mark the scheduled slot taken
	takenResp := makeRequest("POST", fmt.Sprintf("/medications/%s/schedule/0/taken", medID), nil, authToken)
	assert.True(t, takenResp.IsSuccess(), "Failed to mark dose taken: %s", takenResp.Message)

	// Out-of-range slot index is rejected
	badResp := makeRequest("POST", fmt.Sprintf("/medications/%s/schedule/5/taken", medID), nil, authToken)
	assert.False(t, badResp.IsSuccess())

	// Skip the slot with a reason
	skipResp := makeRequest("POST", fmt.Sprintf("/medications/%s/schedule/0/skipped", medID), map[string]interface{}{
		"reason": "felt unwell",
	}, authToken)
	assert.True(t, skipResp.IsSuccess(), "Failed to skip dose: %s", skipResp.Message)

	makeRequest("DELETE", fmt.Sprintf("/medications/%s", medID), nil, authToken)
}

func TestScheduleAndAdherence(t *testing.T) {
	createResp := makeRequest("POST", "/medications", map[string]interface{}{
		"name":          "Atorvastatin",
		"dosage_amount": 20,
		"dosage_unit":   "mg",
		"frequency":     "once-daily",
		"times":         []string{"21:00"},
		"start_date":    time.Now().AddDate(0, 0, -7).Format(time.RFC3339),
	}, authToken)
	require.True(t, createResp.IsSuccess(), "Failed to create medication: %s", createResp.Message)
	medID := createResp.GetString("id")

	// Today's schedule includes the new medication
	scheduleResp := makeRequest("GET", "/schedule/today", nil, authToken)
	assert.True(t, scheduleResp.IsSuccess())
	assert.NotEmpty(t, scheduleResp.GetString("date"))

	// Next dose is computed
	nextResp := makeRequest("GET", fmt.Sprintf("/medications/%s/next-dose", medID), nil, authToken)
	assert.True(t, nextResp.IsSuccess())

	// Adherence over the default window
	adherenceResp := makeRequest("GET", fmt.Sprintf("/medications/%s/adherence", medID), nil, authToken)
	assert.True(t, adherenceResp.IsSuccess())

	// Rolling selection mode
	rollingResp := makeRequest("GET", fmt.Sprintf("/medications/%s/adherence?mode=rolling", medID), nil, authToken)
	assert.True(t, rollingResp.IsSuccess())

	// Bad window parameter is rejected
	badResp := makeRequest("GET", fmt.Sprintf("/medications/%s/adherence?days=-1", medID), nil, authToken)
	assert.False(t, badResp.IsSuccess())

	// Due-now listing
	dueResp := makeRequest("GET", "/medications/due?window=30", nil, authToken)
	assert.True(t, dueResp.IsSuccess())

	makeRequest("DELETE", fmt.Sprintf("/medications/%s", medID), nil, authToken)
}

func TestAuthRequired(t *testing.T) {
	resp := makeRequest("GET", "/medications", nil, "")
	assert.False(t, resp.IsSuccess())
}
