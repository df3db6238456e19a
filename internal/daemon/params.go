package daemon

import (
	"encoding/json"
	"fmt"
)

// decodeParams converts a decoded Request.Params (typically a
// map[string]interface{} from the generic JSON envelope) into the typed
// params struct T, round-tripping through JSON since encoding/json
// decodes `any` fields into maps rather than concrete structs.
func decodeParams[T any](params any) (T, error) {
	var out T
	if params == nil {
		return out, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return out, fmt.Errorf("marshal params: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("unmarshal params: %w", err)
	}
	return out, nil
}
