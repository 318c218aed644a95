package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/swapforge/internal/errors"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []any           `json:"params"`
}

// fakeRPC answers JSON-RPC calls from a method -> result (or error) table.
func fakeRPC(t *testing.T, handlers map[string]func(req rpcRequest) (any, map[string]any)) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		handler, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			return
		}
		result, rpcErr := handler(req)

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func withContext(value any) any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value":   value,
	}
}

func TestClientGetBalance(t *testing.T) {
	server := fakeRPC(t, map[string]func(rpcRequest) (any, map[string]any){
		"getBalance": func(req rpcRequest) (any, map[string]any) {
			return withContext(2_500_000_000), nil
		},
	})

	client := NewClient(server.URL)
	pub := NewWallet().PublicKey()

	lamports, err := client.GetBalance(context.Background(), pub)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), lamports)
}

func TestClientGetLatestBlockhashAndRent(t *testing.T) {
	hash := solana.HashFromBytes(make([]byte, 32))
	hash[0] = 7

	server := fakeRPC(t, map[string]func(rpcRequest) (any, map[string]any){
		"getLatestBlockhash": func(req rpcRequest) (any, map[string]any) {
			return withContext(map[string]any{
				"blockhash":            hash.String(),
				"lastValidBlockHeight": 150,
			}), nil
		},
		"getMinimumBalanceForRentExemption": func(req rpcRequest) (any, map[string]any) {
			require.Len(t, req.Params, 2)
			assert.EqualValues(t, 400, req.Params[0])
			return 3_674_160, nil
		},
	})

	client := NewClient(server.URL)

	got, err := client.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, got)

	rent, err := client.GetMinimumBalanceForRentExemption(context.Background(), 400)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_674_160), rent)
}

func TestClientGetAccount(t *testing.T) {
	owner := solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	data := []byte{1, 2, 3, 4}
	missing := NewWallet().PublicKey()

	server := fakeRPC(t, map[string]func(rpcRequest) (any, map[string]any){
		"getAccountInfo": func(req rpcRequest) (any, map[string]any) {
			if req.Params[0] == missing.String() {
				return withContext(nil), nil
			}
			return withContext(map[string]any{
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": false,
				"lamports":   1_000,
				"owner":      owner.String(),
				"rentEpoch":  0,
			}), nil
		},
	})

	client := NewClient(server.URL)

	acc, err := client.GetAccount(context.Background(), NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, owner, acc.Owner)
	assert.Equal(t, data, acc.Data)
	assert.Equal(t, uint64(1_000), acc.Lamports)

	_, err = client.GetAccount(context.Background(), missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccountNotFound))
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestClientClassifiesErrors(t *testing.T) {
	server := fakeRPC(t, map[string]func(rpcRequest) (any, map[string]any){
		"getBalance": func(req rpcRequest) (any, map[string]any) {
			return nil, map[string]any{"code": -32603, "message": "internal error"}
		},
	})

	_, err := NewClient(server.URL).GetBalance(context.Background(), NewWallet().PublicKey())
	require.Error(t, err)
	assert.Equal(t, errors.KindUpstream, errors.KindOf(err))

	tests := []struct {
		code int
		want errors.Kind
	}{
		{-32002, errors.KindOnChain},
		{-32003, errors.KindOnChain},
		{-32013, errors.KindOnChain},
		{-32008, errors.KindUpstream},
		{-32005, errors.KindUpstream},
	}
	for _, tt := range tests {
		err := classify("send transaction", &jsonrpc.RPCError{Code: tt.code, Message: "rejected"})
		assert.Equal(t, tt.want, errors.KindOf(err), "code %d", tt.code)
	}
	assert.Equal(t, errors.KindUpstream, errors.KindOf(classify("send transaction", context.DeadlineExceeded)))
}

func TestClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url).GetLatestBlockhash(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindUpstream, errors.KindOf(err))
}

func TestSendAndConfirmRequiresWebsocket(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").SendAndConfirmTransaction(context.Background(), &solana.Transaction{})
	require.Error(t, err)
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
}
