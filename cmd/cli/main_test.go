package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--url", srv.URL}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestConsistencyCommand(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantOut  string
		wantErr  bool
		errMatch error
	}{
		{
			name:    "consistent",
			status:  http.StatusOK,
			body:    `{"consistent":true,"total_accounts":2,"discrepancies":[]}`,
			wantOut: "Consistency check PASSED\nAccounts checked: 2\n",
		},
		{
			name:     "drift",
			status:   http.StatusConflict,
			body:     `{"consistent":false,"total_accounts":3,"discrepancies":[{"account_number":"ACC_DRIFT","difference":"5"}]}`,
			wantOut:  "Consistency check FAILED\nAccounts checked: 3\n  ACC_DRIFT off by 5\n",
			wantErr:  true,
			errMatch: errInconsistent,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":"internal server error"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/ledger/consistency", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			out, err := execute(t, srv, "ledger", "consistency")
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMatch != nil {
					assert.ErrorIs(t, err, tt.errMatch)
				}
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantOut, out)
		})
	}
}

func TestGetCommandsPrintJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/accounts/ACC_ALICE":
			_, _ = w.Write([]byte(`{"account_number":"ACC_ALICE","balance":"900"}`))
		case "/api/v1/transactions/R1":
			_, _ = w.Write([]byte(`{"reference_id":"R1","status":"COMPLETED"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	defer srv.Close()

	out, err := execute(t, srv, "account", "get", "ACC_ALICE")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"account_number\": \"ACC_ALICE\",\n  \"balance\": \"900\"\n}\n", out)

	out, err = execute(t, srv, "transaction", "get", "R1")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "COMPLETED"`)

	_, err = execute(t, srv, "account", "get", "ACC_GHOST")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestGetCommandRequiresArgument(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := execute(t, srv, "account", "get")
	assert.Error(t, err)
}

func TestTransferCommand(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Transfer initiated successfully","reference_id":"R1"}`))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "transfer", "--ref", "R1", "--from", "ACC_ALICE", "--to", "ACC_BOB", "--amount", "100.00")
	require.NoError(t, err)
	assert.Contains(t, out, "Transfer initiated successfully")
	assert.Equal(t, map[string]string{
		"idempotency_key": "R1",
		"source_account":  "ACC_ALICE",
		"target_account":  "ACC_BOB",
		"amount":          "100.00",
	}, got)
}

func TestTransferCommandRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid amount"}`))
	}))
	defer srv.Close()

	_, err := execute(t, srv, "transfer", "--ref", "R1", "--from", "A", "--to", "B", "--amount", "-1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 400"), err.Error())
}

func TestTransferCommandRequiresFlags(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := execute(t, srv, "transfer", "--ref", "R1")
	assert.Error(t, err)
}

func TestPrintJSONRejectsGarbage(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, printJSON(&buf, []byte("not json")))
	assert.Empty(t, buf.String())
}
