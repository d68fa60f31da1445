package lifecycle_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/lifecycle"
)

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	require.NoError(t, dec.Decode(&out))
	return out
}

func TestCoerceKeepsNullAndNormalizes(t *testing.T) {
	vals, err := lifecycle.ClaimSchema.Coerce(decode(t, `{
		"careType": "AMBULATORY",
		"amountSubmitted": 100.456,
		"incidentDate": " 2024-03-01 ",
		"description": null
	}`))
	require.NoError(t, err)
	assert.Equal(t, "AMBULATORY", vals[lifecycle.FieldCareType])
	assert.Equal(t, 100.46, vals[lifecycle.FieldAmountSubmitted])
	assert.Equal(t, "2024-03-01", vals[lifecycle.FieldIncidentDate])
	assert.True(t, vals.Has(lifecycle.FieldDescription))
	assert.Nil(t, vals[lifecycle.FieldDescription])
	assert.False(t, vals.Has(lifecycle.FieldPolicyID))
}

func TestCoerceRejectsUnknownFields(t *testing.T) {
	_, err := lifecycle.ClaimSchema.Coerce(decode(t, `{"careType":"DENTAL","colour":"red","zeta":1}`))
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "colour, zeta")
}

func TestCoerceTypeErrors(t *testing.T) {
	cases := map[string]string{
		`{"incidentDate":"03/01/2024"}`: "incidentDate",
		`{"amountSubmitted":"100"}`:     "amountSubmitted",
		`{"amountSubmitted":-1}`:        "amountSubmitted",
		`{"careType":"SPA"}`:            "careType",
		`{"description":12}`:            "description",
	}
	for body, field := range cases {
		_, err := lifecycle.ClaimSchema.Coerce(decode(t, body))
		require.Error(t, err, body)
		assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
		assert.Equal(t, field, apperr.DetailsOf(err)["field"], body)
	}

	_, err := lifecycle.InvoiceSchema.Coerce(decode(t, `{"affiliateCount":2.5}`))
	require.Error(t, err)
	_, err = lifecycle.InvoiceSchema.Coerce(decode(t, `{"billingPeriod":"2024-13"}`))
	require.Error(t, err)

	vals, err := lifecycle.InvoiceSchema.Coerce(decode(t, `{"affiliateCount":12,"billingPeriod":"2024-05"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(12), vals[lifecycle.FieldAffiliateCount])
}

func TestCoerceNotNullFields(t *testing.T) {
	_, err := lifecycle.PolicySchema.Coerce(decode(t, `{"policyNumber":null}`))
	require.Error(t, err)
	assert.Equal(t, "policyNumber", apperr.DetailsOf(err)["field"])

	_, err = lifecycle.TicketSchema.Coerce(decode(t, `{"subject":"  "}`))
	require.Error(t, err)

	vals, err := lifecycle.PolicySchema.Coerce(decode(t, `{"notes":null}`))
	require.NoError(t, err)
	assert.True(t, vals.Has(lifecycle.FieldNotes))
}
