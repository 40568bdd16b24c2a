package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"AgentKit-Chain/sdk/go/agentkit"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/actions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"actions": []agentkit.ActionSpec{{
			Name:        "WalletActionProvider_get_wallet_details",
			Description: "This tool returns the details of the connected wallet.",
			Parameters:  json.RawMessage(`{"type":"object"}`),
		}}})
	})
	mux.HandleFunc("POST /api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(agentkit.Task{
			ID:         "task-demo",
			Goal:       "check my balance",
			Status:     agentkit.StatusPending,
			MaxRetries: 3,
			CreatedAt:  time.Now().Unix(),
		})
	})
	mux.HandleFunc("GET /api/v1/tasks/task-demo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(agentkit.Task{
			ID:       "task-demo",
			Goal:     "check my balance",
			Status:   agentkit.StatusSucceeded,
			Attempts: 1,
			Result: &agentkit.TaskResult{
				Reply:   "Your wallet holds 0.42 ETH on base-sepolia.",
				Network: "evm:base-sepolia",
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := agentkit.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}
	client.SetAccessToken("demo-token")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	actions, err := client.ListActions(ctx)
	if err != nil {
		panic(err)
	}
	for _, a := range actions {
		fmt.Printf("action %s: %s\n", a.Name, a.Description)
	}

	submitted, err := client.SubmitTask(ctx, agentkit.ChatRequest{Goal: "check my balance"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("submitted task %s (status=%s)\n", submitted.ID, submitted.Status)

	done, err := client.WaitForTask(ctx, submitted.ID, 100*time.Millisecond)
	if err != nil {
		panic(err)
	}
	fmt.Printf("task %s finished: %s\n", done.ID, done.Result.Reply)
}
