package cli

import (
	"encoding/json"
	"fmt"
)

// printJSON renders a result to stdout
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("render result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
