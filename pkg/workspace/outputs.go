package workspace

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

// rawOutput mirrors the {value, type} shape `terraform output -json`
// emits for each output key.
type rawOutput struct {
	Sensitive bool            `json:"sensitive"`
	Type      json.RawMessage `json:"type"`
	Value     any             `json:"value"`
}

// ParseOutputs decodes `terraform output -json` and projects values down
// to plain strings keyed by output name. declaredOutputs lists the keys
// a partition promises to produce; any missing key is a driver error
// naming every missing key at once.
func ParseOutputs(jsonBytes []byte, declaredOutputs []string) (map[string]string, error) {
	var raw map[string]rawOutput
	if err := json.Unmarshal(jsonBytes, &raw); err != nil {
		return nil, nclaverr.NewIacError("parsing terraform output -json").WithErr(err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = stringifyValue(v.Value)
	}

	var missing []string
	for _, key := range declaredOutputs {
		if _, ok := out[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, nclaverr.NewDriverError(nclaverr.DriverProvisionFailed,
			"terraform output missing declared keys: %s", strings.Join(missing, ", "))
	}

	return out, nil
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
