package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/meridiandb/hexad/pkg/types"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a federated query against a running node",
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().String("addr", "", "Target node's bind address (required)")
	queryCmd.Flags().String("text", "", "Text query")
	queryCmd.Flags().StringSlice("modalities", nil, "Modalities to query (graph, vector, tensor, semantic, document, temporal, provenance, spatial)")
	queryCmd.Flags().String("store-pattern", "*", "Glob pattern selecting eligible stores")
	queryCmd.Flags().String("drift-policy", "tolerate", "Drift policy: tolerate or strict")
	queryCmd.Flags().Int("limit", 0, "Result limit (0 = adapter default)")
	_ = queryCmd.MarkFlagRequired("addr")
}

// queryRequest mirrors transport.queryRequest's wire shape.
type queryRequest struct {
	Query        types.NeutralQuery `json:"query"`
	StorePattern string             `json:"store_pattern"`
	DriftPolicy  types.DriftPolicy  `json:"drift_policy"`
	Options      types.QueryOptions `json:"options"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	text, _ := cmd.Flags().GetString("text")
	modalityNames, _ := cmd.Flags().GetStringSlice("modalities")
	storePattern, _ := cmd.Flags().GetString("store-pattern")
	driftPolicy, _ := cmd.Flags().GetString("drift-policy")
	limit, _ := cmd.Flags().GetInt("limit")

	modalities := make([]types.Modality, 0, len(modalityNames))
	for _, name := range modalityNames {
		mod, err := types.ParseModality(name)
		if err != nil {
			return fmt.Errorf("modality %q: %w", name, err)
		}
		modalities = append(modalities, mod)
	}

	req := queryRequest{
		Query: types.NeutralQuery{
			Modalities: modalities,
			TextQuery:  text,
			Limit:      limit,
		},
		StorePattern: storePattern,
		DriftPolicy:  types.DriftPolicy(driftPolicy),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}

	resp, err := http.Post("http://"+addr+"/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query failed (%d): %v", resp.StatusCode, out)
	}
	encoded, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(encoded))
	return nil
}
