// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package adx

import (
	"errors"
	"strings"
	"testing"

	kustoerrors "github.com/Azure/azure-kusto-go/kusto/data/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/submitter"
)

func TestDataPayload_StripsHeader(t *testing.T) {
	payload, err := dataPayload(strings.NewReader("id,name\n1,alpha\n2,beta\n"))
	require.NoError(t, err)
	assert.Equal(t, "1,alpha\n2,beta\n", string(payload))
}

func TestDataPayload_HeaderOnly(t *testing.T) {
	payload, err := dataPayload(strings.NewReader("id,name\n"))
	require.NoError(t, err)
	assert.Empty(t, payload)

	payload, err = dataPayload(strings.NewReader("id,name"))
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestDataPayload_PreservesRowBytes(t *testing.T) {
	payload, err := dataPayload(strings.NewReader("id,name\r\n1,\"a,b\"\r\n2,c"))
	require.NoError(t, err)
	assert.Equal(t, "1,\"a,b\"\r\n2,c", string(payload))
}

func TestClassifyTargetError(t *testing.T) {
	dbGone := kustoerrors.ES(kustoerrors.OpMgmt, kustoerrors.KDBNotExist, "database Default not found")
	err := classifyTargetError(dbGone)
	assert.ErrorIs(t, err, submitter.ErrTargetUnusable)

	entityGone := errors.New("request failed: BadRequest_EntityNotFound: table was dropped")
	err = classifyTargetError(entityGone)
	assert.ErrorIs(t, err, submitter.ErrTargetUnusable)

	throttled := kustoerrors.ES(kustoerrors.OpIngestStream, kustoerrors.KHTTPError, "too many requests")
	err = classifyTargetError(throttled)
	assert.NotErrorIs(t, err, submitter.ErrTargetUnusable)
	assert.Equal(t, throttled, err)

	assert.NoError(t, classifyTargetError(nil))
}

func TestPolicyEnabled(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		want    bool
		wantErr bool
	}{
		{name: "enabled", policy: `{"IsEnabled": true, "HintAllocatedRate": null}`, want: true},
		{name: "disabled", policy: `{"IsEnabled": false}`, want: false},
		{name: "empty", policy: "", want: false},
		{name: "null document", policy: "null", want: false},
		{name: "garbage", policy: "{not json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policyEnabled(tt.policy)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
