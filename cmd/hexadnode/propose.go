package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/spf13/cobra"
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Submit a registry command to a running node's Raft leader",
	RunE:  runPropose,
}

func init() {
	proposeCmd.Flags().String("addr", "", "Target node's bind address (required)")
	proposeCmd.Flags().String("op", "", "Command op: register_store, unregister_store, map_hexad, unmap_hexad, update_trust (required)")
	proposeCmd.Flags().String("data", "{}", "Command payload as a JSON object")
	_ = proposeCmd.MarkFlagRequired("addr")
	_ = proposeCmd.MarkFlagRequired("op")
}

func runPropose(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	op, _ := cmd.Flags().GetString("op")
	data, _ := cmd.Flags().GetString("data")

	command := registry.Command{Op: registry.Op(op), Data: json.RawMessage(data)}
	body, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	resp, err := http.Post("http://"+addr+"/raft/propose", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("propose: %w", err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("propose rejected (%d): %v", resp.StatusCode, out)
	}
	encoded, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(encoded))
	return nil
}
